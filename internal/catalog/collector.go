// Package catalog discovers marketable items worth analyzing. It walks the
// paginated marketplace listing and keeps candidates that pass liquidity
// and price-band admission filters.
package catalog

import (
	"context"
	"fmt"
	"log"
	"time"

	"siege-market-lab/internal/domain"
	"siege-market-lab/internal/observability"
	"siege-market-lab/internal/ubi"
)

// Config holds the scan parameters.
type Config struct {
	SpaceID       string
	PageSize      int           // listing page size (default 50)
	TargetCount   int           // stop once this many candidates pass the filters
	MinSellPrice  int           // inclusive lower bound on lowest sell price
	MaxSellPrice  int           // inclusive upper bound on lowest sell price, 0 = unbounded
	MinSellOrders int           // minimum open sell orders
	MinBuyOrders  int           // minimum open buy orders
	PageDelay     time.Duration // pause between listing pages
}

// DefaultConfig returns the default scan parameters.
func DefaultConfig(spaceID string) Config {
	return Config{
		SpaceID:       spaceID,
		PageSize:      50,
		TargetCount:   100,
		MinSellPrice:  10,
		MaxSellPrice:  0,
		MinSellOrders: 1,
		MinBuyOrders:  1,
		PageDelay:     time.Second,
	}
}

// Sender issues one batch of marketplace requests. Satisfied by
// *ubi.HTTPClient.
type Sender interface {
	Send(ctx context.Context, reqs []ubi.Request) ([]ubi.Response, error)
}

// Collector pages through the marketplace listing.
type Collector struct {
	config Config
	sender Sender
	logger *log.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewCollector creates a catalog collector. logger may be nil.
func NewCollector(config Config, sender Sender, logger *log.Logger) *Collector {
	if config.PageSize <= 0 {
		config.PageSize = 50
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[catalog] ", log.LstdFlags)
	}
	return &Collector{
		config: config,
		sender: sender,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Collect walks listing pages until TargetCount candidates pass the filters
// or the listing is exhausted. Candidates are returned in listing order.
func (c *Collector) Collect(ctx context.Context) ([]domain.Candidate, error) {
	var (
		accepted []domain.Candidate
		offset   int
		seen     int
	)

	for {
		req := ubi.NewMarketableItemsRequest(c.config.SpaceID, c.config.PageSize, offset)
		resps, err := c.sender.Send(ctx, []ubi.Request{req})
		if err != nil {
			return nil, fmt.Errorf("catalog: fetch page at offset %d: %w", offset, err)
		}
		if rerr := resps[0].Err(); rerr != nil {
			return nil, fmt.Errorf("catalog: fetch page at offset %d: %w", offset, rerr)
		}

		page, err := ubi.DecodeMarketableItems(resps[0].Data)
		if err != nil {
			return nil, fmt.Errorf("catalog: decode page at offset %d: %w", offset, err)
		}
		observability.RecordCatalogPage()
		seen += page.NodeCount

		for _, cand := range page.Candidates {
			if !c.admit(cand) {
				continue
			}
			accepted = append(accepted, cand)
			if c.config.TargetCount > 0 && len(accepted) >= c.config.TargetCount {
				observability.RecordCandidatesAdmitted(len(accepted))
				c.logger.Printf("collected %d candidates after scanning %d listings", len(accepted), seen)
				return accepted, nil
			}
		}

		// Paginate on the raw node count: decode drops nodes without an
		// item ID or market data, and those still occupy listing slots.
		offset += page.NodeCount
		if page.NodeCount < c.config.PageSize || (page.TotalCount > 0 && offset >= page.TotalCount) {
			break
		}

		if c.config.PageDelay > 0 {
			if err := c.sleep(ctx, c.config.PageDelay); err != nil {
				return nil, err
			}
		}
	}

	observability.RecordCandidatesAdmitted(len(accepted))
	c.logger.Printf("listing exhausted: %d candidates from %d listings", len(accepted), seen)
	return accepted, nil
}

// admit applies the liquidity and price-band filters. Items missing either
// side of the order book never pass.
func (c *Collector) admit(cand domain.Candidate) bool {
	q := cand.Quote
	if !q.Complete() {
		return false
	}
	if q.SellOrderCount == nil || *q.SellOrderCount < c.config.MinSellOrders {
		return false
	}
	if q.BuyOrderCount == nil || *q.BuyOrderCount < c.config.MinBuyOrders {
		return false
	}
	sell := *q.LowestSellPrice
	if sell < c.config.MinSellPrice {
		return false
	}
	if c.config.MaxSellPrice > 0 && sell > c.config.MaxSellPrice {
		return false
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
