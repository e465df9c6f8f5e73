package domain

import "time"

// TradeCategory distinguishes the two order directions in the trade log.
type TradeCategory string

const (
	CategoryBuy  TradeCategory = "Buy"
	CategorySell TradeCategory = "Sell"
)

// Trade lifecycle states as reported by the marketplace.
const (
	StateSucceeded = "Succeeded"
	StateCancelled = "Cancelled"
	StateExpired   = "Expired"
	StateFailed    = "Failed"
)

// TradeEvent is one entry of the operator's trade log. Events arrive in
// retrieval order, not chronological order; LastModifiedAt is the
// load-bearing ordering key for ledger reconstruction.
type TradeEvent struct {
	EventID        string // deterministic hash, set by the collector
	ItemID         string
	Name           string
	AssetURL       string
	Category       TradeCategory
	Price          *int // settlement price in credits; nil when the remote omitted payment info
	State          string
	LastModifiedAt time.Time
}

// HoldingEntry is a currently-open position: it exists between a successful
// Buy and the next successful Sell of the same item. Ownership is exclusive,
// one entry per item at a time.
type HoldingEntry struct {
	ItemID         string
	Name           string
	AssetURL       string
	CostBasisPrice int
	AcquiredAt     time.Time
}
