package ubi

import (
	"encoding/json"
	"fmt"
	"time"

	"siege-market-lab/internal/domain"
)

// Raw response shapes. Optional fields decode to pointers so that a missing
// key stays a typed absence instead of a silent zero.

type rawStats struct {
	LowestPrice  *int `json:"lowestPrice"`
	HighestPrice *int `json:"highestPrice"`
	ActiveCount  *int `json:"activeCount"`
}

type rawLastSold struct {
	Price *int `json:"price"`
}

type rawMarketData struct {
	SellStats  []rawStats    `json:"sellStats"`
	BuyStats   []rawStats    `json:"buyStats"`
	LastSoldAt []rawLastSold `json:"lastSoldAt"`
}

type rawItem struct {
	ItemID   string `json:"itemId"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	AssetURL string `json:"assetUrl"`
}

type rawMarketableItem struct {
	Item         *rawItem          `json:"item"`
	MarketData   *rawMarketData    `json:"marketData"`
	PriceHistory []rawHistoryPoint `json:"priceHistory"`
}

type rawHistoryPoint struct {
	Date         string   `json:"date"`
	AveragePrice *float64 `json:"averagePrice"`
	HighestPrice *float64 `json:"highestPrice"`
	ItemsCount   *int     `json:"itemsCount"`
}

type rawTradePayment struct {
	Price *int `json:"price"`
}

type rawTradeItem struct {
	Item *rawItem `json:"item"`
}

type rawTrade struct {
	TradeID        string           `json:"tradeId"`
	State          string           `json:"state"`
	Category       string           `json:"category"`
	LastModifiedAt string           `json:"lastModifiedAt"`
	TradeItems     []rawTradeItem   `json:"tradeItems"`
	Payment        *rawTradePayment `json:"payment"`
}

// CatalogPage is one decoded page of the catalog scan. NodeCount is the raw
// node count before decode drops anything; pagination must advance by it,
// not by len(Candidates), or a single dropped node reads as a short page.
type CatalogPage struct {
	Candidates []domain.Candidate
	NodeCount  int
	TotalCount int
}

// TradesPage is one decoded page of the trade log. NodeCount is the raw node
// count before decode drops anything.
type TradesPage struct {
	Events     []domain.TradeEvent
	NodeCount  int
	TotalCount int
}

func quoteFromMarketData(md *rawMarketData) domain.Quote {
	var q domain.Quote
	if md == nil {
		return q
	}
	if len(md.SellStats) > 0 {
		q.LowestSellPrice = md.SellStats[0].LowestPrice
		q.SellOrderCount = md.SellStats[0].ActiveCount
	}
	if len(md.BuyStats) > 0 {
		q.HighestBuyPrice = md.BuyStats[0].HighestPrice
		q.BuyOrderCount = md.BuyStats[0].ActiveCount
	}
	if len(md.LastSoldAt) > 0 {
		q.LastSoldPrice = md.LastSoldAt[0].Price
	}
	return q
}

func itemFromRaw(it *rawItem) domain.Item {
	if it == nil {
		return domain.Item{}
	}
	return domain.Item{
		ItemID:   it.ItemID,
		Name:     it.Name,
		Type:     it.Type,
		AssetURL: it.AssetURL,
	}
}

// DecodeMarketableItems decodes one GetMarketableItems payload.
// Nodes without an item ID or market data are dropped.
func DecodeMarketableItems(data json.RawMessage) (*CatalogPage, error) {
	var payload struct {
		Game struct {
			MarketableItems struct {
				Nodes []struct {
					Item       *rawItem       `json:"item"`
					MarketData *rawMarketData `json:"marketData"`
				} `json:"nodes"`
				TotalCount int `json:"totalCount"`
			} `json:"marketableItems"`
		} `json:"game"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode marketable items: %w", err)
	}

	page := &CatalogPage{
		NodeCount:  len(payload.Game.MarketableItems.Nodes),
		TotalCount: payload.Game.MarketableItems.TotalCount,
	}
	for _, node := range payload.Game.MarketableItems.Nodes {
		if node.Item == nil || node.Item.ItemID == "" || node.MarketData == nil {
			continue
		}
		page.Candidates = append(page.Candidates, domain.Candidate{
			Item:  itemFromRaw(node.Item),
			Quote: quoteFromMarketData(node.MarketData),
		})
	}
	return page, nil
}

// DecodeItemDetails decodes one GetItemDetails payload into the item's
// current quote.
func DecodeItemDetails(data json.RawMessage) (domain.Item, domain.Quote, error) {
	var payload struct {
		Game struct {
			MarketableItem *rawMarketableItem `json:"marketableItem"`
		} `json:"game"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.Item{}, domain.Quote{}, fmt.Errorf("decode item details: %w", err)
	}
	mi := payload.Game.MarketableItem
	if mi == nil {
		return domain.Item{}, domain.Quote{}, nil
	}
	return itemFromRaw(mi.Item), quoteFromMarketData(mi.MarketData), nil
}

// DecodePriceHistory decodes one GetItemPriceHistory payload. Days whose
// date field is absent or malformed are dropped; null prices within a valid
// day are preserved as typed absence.
func DecodePriceHistory(data json.RawMessage) ([]domain.PriceHistoryPoint, error) {
	var payload struct {
		Game struct {
			MarketableItem *rawMarketableItem `json:"marketableItem"`
		} `json:"game"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode price history: %w", err)
	}
	mi := payload.Game.MarketableItem
	if mi == nil {
		return nil, nil
	}

	var points []domain.PriceHistoryPoint
	for _, raw := range mi.PriceHistory {
		day, err := time.ParseInLocation("2006-01-02", raw.Date, time.UTC)
		if err != nil {
			continue
		}
		points = append(points, domain.PriceHistoryPoint{
			Date:         day,
			AveragePrice: raw.AveragePrice,
			HighestPrice: raw.HighestPrice,
			ItemsCount:   raw.ItemsCount,
		})
	}
	return points, nil
}

// DecodeTransactions decodes one GetTransactionsHistory payload. Trades
// without an item or a parsable timestamp are dropped; EventID is left for
// the collector to assign.
func DecodeTransactions(data json.RawMessage) (*TradesPage, error) {
	var payload struct {
		Game struct {
			Viewer struct {
				Meta struct {
					Trades struct {
						Nodes      []rawTrade `json:"nodes"`
						TotalCount int        `json:"totalCount"`
					} `json:"trades"`
				} `json:"meta"`
			} `json:"viewer"`
		} `json:"game"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}

	page := &TradesPage{
		NodeCount:  len(payload.Game.Viewer.Meta.Trades.Nodes),
		TotalCount: payload.Game.Viewer.Meta.Trades.TotalCount,
	}
	for _, raw := range payload.Game.Viewer.Meta.Trades.Nodes {
		if len(raw.TradeItems) == 0 || raw.TradeItems[0].Item == nil || raw.TradeItems[0].Item.ItemID == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw.LastModifiedAt)
		if err != nil {
			continue
		}
		item := raw.TradeItems[0].Item
		event := domain.TradeEvent{
			ItemID:         item.ItemID,
			Name:           item.Name,
			AssetURL:       item.AssetURL,
			Category:       domain.TradeCategory(raw.Category),
			State:          raw.State,
			LastModifiedAt: ts.UTC(),
		}
		if raw.Payment != nil {
			event.Price = raw.Payment.Price
		}
		page.Events = append(page.Events, event)
	}
	return page, nil
}
