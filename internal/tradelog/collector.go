// Package tradelog retrieves the operator's full marketplace transaction
// history. Pages arrive in the API's retrieval order; chronology is the
// ledger's problem, not ours.
package tradelog

import (
	"context"
	"fmt"
	"log"
	"time"

	"siege-market-lab/internal/domain"
	"siege-market-lab/internal/idhash"
	"siege-market-lab/internal/observability"
	"siege-market-lab/internal/ubi"
)

// Config holds the retrieval parameters.
type Config struct {
	SpaceID   string
	PageSize  int           // trade page size (default 100)
	PageDelay time.Duration // pause between pages
}

// DefaultConfig returns the default retrieval parameters.
func DefaultConfig(spaceID string) Config {
	return Config{
		SpaceID:   spaceID,
		PageSize:  100,
		PageDelay: time.Second,
	}
}

// Sender issues one batch of marketplace requests. Satisfied by
// *ubi.HTTPClient.
type Sender interface {
	Send(ctx context.Context, reqs []ubi.Request) ([]ubi.Response, error)
}

// Collector pages through the transaction history.
type Collector struct {
	config Config
	sender Sender
	logger *log.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewCollector creates a trade log collector. logger may be nil.
func NewCollector(config Config, sender Sender, logger *log.Logger) *Collector {
	if config.PageSize <= 0 {
		config.PageSize = 100
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[tradelog] ", log.LstdFlags)
	}
	return &Collector{
		config: config,
		sender: sender,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Collect retrieves every page of the transaction history. totalCount from
// the first page bounds the walk; a short page also terminates it. Each
// event gets a deterministic ID so repeated imports deduplicate.
func (c *Collector) Collect(ctx context.Context) ([]domain.TradeEvent, error) {
	var (
		events []domain.TradeEvent
		offset int
		total  = -1
	)

	for {
		req := ubi.NewTransactionsRequest(c.config.SpaceID, c.config.PageSize, offset)
		resps, err := c.sender.Send(ctx, []ubi.Request{req})
		if err != nil {
			return nil, fmt.Errorf("tradelog: fetch page at offset %d: %w", offset, err)
		}
		if rerr := resps[0].Err(); rerr != nil {
			return nil, fmt.Errorf("tradelog: fetch page at offset %d: %w", offset, rerr)
		}

		page, err := ubi.DecodeTransactions(resps[0].Data)
		if err != nil {
			return nil, fmt.Errorf("tradelog: decode page at offset %d: %w", offset, err)
		}
		if total < 0 {
			total = page.TotalCount
		}
		observability.RecordTradeLogPage(len(page.Events))

		for _, ev := range page.Events {
			ev.EventID = idhash.ComputeTradeEventID(ev.ItemID, ev.Name, ev.Category, ev.Price, ev.LastModifiedAt)
			events = append(events, ev)
		}

		// Advance by the raw node count, not by decoded events: malformed
		// nodes are dropped during decode but still occupy listing slots.
		// An empty raw page is a hard stop even below totalCount.
		offset += page.NodeCount
		if offset >= total || page.NodeCount == 0 {
			break
		}

		if c.config.PageDelay > 0 {
			if err := c.sleep(ctx, c.config.PageDelay); err != nil {
				return nil, err
			}
		}
	}

	c.logger.Printf("retrieved %d trade events (reported total %d)", len(events), total)
	return events, nil
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
