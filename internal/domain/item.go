package domain

// Item is the immutable marketplace identity of a tradable asset.
// The remote catalog is the source of truth; the core only caches values.
type Item struct {
	ItemID   string // marketplace item identifier (UUID)
	Name     string
	Type     string
	AssetURL string
}

// Quote is a point-in-time market snapshot for an item.
// All fields are optional: absence means the order book side is empty or the
// remote omitted the value, which is not the same as zero.
type Quote struct {
	LowestSellPrice *int // lowest active sell order price, credits
	HighestBuyPrice *int // highest active buy order price, credits
	SellOrderCount  *int
	BuyOrderCount   *int
	LastSoldPrice   *int // most recent completed sale, credits
}

// Complete reports whether the quote carries both sides needed for scoring.
// Incomplete quotes exclude the item from ranking entirely.
func (q Quote) Complete() bool {
	return q.LowestSellPrice != nil && q.HighestBuyPrice != nil
}

// Candidate is an item plus its current quote, produced by the catalog scan.
type Candidate struct {
	Item  Item
	Quote Quote
}
