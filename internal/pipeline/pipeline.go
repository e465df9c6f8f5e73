// Package pipeline coordinates full analysis runs.
// Flow: collect → resolve → aggregate → rank → report
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"siege-market-lab/internal/aggregate"
	"siege-market-lab/internal/catalog"
	"siege-market-lab/internal/domain"
	"siege-market-lab/internal/idhash"
	"siege-market-lab/internal/ledger"
	"siege-market-lab/internal/observability"
	"siege-market-lab/internal/rank"
	"siege-market-lab/internal/reporting"
	"siege-market-lab/internal/resolver"
	"siege-market-lab/internal/storage"
	"siege-market-lab/internal/tradelog"
	"siege-market-lab/internal/ubi"
)

// Options for creating a Pipeline. Sender is required; stores are optional
// and a nil store simply skips that persistence step.
type Options struct {
	Sender  resolver.Transport
	SpaceID string

	// Stage configs
	Catalog  catalog.Config
	TradeLog tradelog.Config
	Resolver resolver.Options // Transport is filled from Sender
	Ranking  rank.Config

	// Optional stores
	EventStore   storage.TradeEventStore
	ResultStore  storage.ScoredResultStore
	HistoryStore storage.PriceHistoryStore

	Logger *log.Logger

	// Now overrides the run clock (tests pin it).
	Now func() time.Time
}

// Pipeline runs the two analysis modes against one marketplace space.
type Pipeline struct {
	catalog  *catalog.Collector
	tradelog *tradelog.Collector
	resolver *resolver.Resolver[string]
	ranking  rank.Config
	spaceID  string

	eventStore   storage.TradeEventStore
	resultStore  storage.ScoredResultStore
	historyStore storage.PriceHistoryStore

	logger *log.Logger
	now    func() time.Time
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[pipeline] ", log.LstdFlags)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	resolverOpts := opts.Resolver
	resolverOpts.Transport = opts.Sender
	if resolverOpts.Logger == nil {
		resolverOpts.Logger = logger
	}

	return &Pipeline{
		catalog:      catalog.NewCollector(opts.Catalog, opts.Sender, opts.Logger),
		tradelog:     tradelog.NewCollector(opts.TradeLog, opts.Sender, opts.Logger),
		resolver:     resolver.New[string](resolverOpts),
		ranking:      opts.Ranking,
		spaceID:      opts.SpaceID,
		eventStore:   opts.EventStore,
		resultStore:  opts.ResultStore,
		historyStore: opts.HistoryStore,
		logger:       logger,
		now:          now,
	}
}

// RunMarketScan executes one market-scan pass: walk the catalog, resolve
// each candidate's price history, aggregate, rank, and assemble the report.
// Candidates whose history failed to resolve are counted in the summary and
// excluded from the ranking; only a fatal transport condition (invalid
// credentials, cancelled context) aborts the run without a report.
func (p *Pipeline) RunMarketScan(ctx context.Context) (*reporting.Report, error) {
	start := p.now()
	p.logger.Printf("market scan: collecting catalog")

	candidates, err := p.catalog.Collect(ctx)
	if err != nil {
		return p.fail(reporting.ModeMarketScan, start, fmt.Errorf("collect catalog: %w", err))
	}
	p.logger.Printf("market scan: %d candidates admitted", len(candidates))

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Item.ItemID
	}

	res, err := p.resolver.Resolve(ctx, ids, func(itemID string) ubi.Request {
		return ubi.NewItemPriceHistoryRequest(p.spaceID, itemID)
	})
	if err != nil {
		return p.fail(reporting.ModeMarketScan, start, fmt.Errorf("resolve price history: %w", err))
	}

	inputs := make([]rank.ScanInput, 0, len(candidates))
	for _, cand := range candidates {
		history, ok := p.decodeHistory(ctx, cand.Item.ItemID, res)
		if !ok {
			continue
		}
		inputs = append(inputs, rank.ScanInput{
			Candidate: cand,
			Windows:   p.aggregateWindows(history, cand.Quote, start),
		})
	}

	results := rank.MarketScan(inputs, p.ranking)
	summary := reporting.Summary{
		ItemsRequested: len(candidates),
		ItemsResolved:  len(inputs),
		ItemsFailed:    len(candidates) - len(inputs),
	}
	return p.finish(ctx, reporting.ModeMarketScan, start, summary, results)
}

// RunHoldings executes one holdings pass: fetch the trade log, reconstruct
// open positions, resolve each held item's live quote and price history, and
// rank by estimated profit. An item enters the ranking only when both
// lookups succeeded.
func (p *Pipeline) RunHoldings(ctx context.Context) (*reporting.Report, error) {
	start := p.now()
	p.logger.Printf("holdings: collecting trade log")

	events, err := p.tradelog.Collect(ctx)
	if err != nil {
		return p.fail(reporting.ModeHoldings, start, fmt.Errorf("collect trade log: %w", err))
	}
	events = p.persistEvents(ctx, events)

	holdings := ledger.Reconstruct(events)
	p.logger.Printf("holdings: %d events folded into %d open positions", len(events), len(holdings))

	ids := make([]string, 0, len(holdings))
	for id := range holdings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	histRes, err := p.resolver.Resolve(ctx, ids, func(itemID string) ubi.Request {
		return ubi.NewItemPriceHistoryRequest(p.spaceID, itemID)
	})
	if err != nil {
		return p.fail(reporting.ModeHoldings, start, fmt.Errorf("resolve price history: %w", err))
	}
	detailRes, err := p.resolver.Resolve(ctx, ids, func(itemID string) ubi.Request {
		return ubi.NewItemDetailsRequest(p.spaceID, itemID)
	})
	if err != nil {
		return p.fail(reporting.ModeHoldings, start, fmt.Errorf("resolve item details: %w", err))
	}

	inputs := make([]rank.HoldingInput, 0, len(ids))
	for _, id := range ids {
		history, ok := p.decodeHistory(ctx, id, histRes)
		if !ok {
			continue
		}
		raw, ok := detailRes.Resolved[id]
		if !ok {
			p.logger.Printf("holdings: item %s details failed: %v", id, detailRes.Failed[id])
			continue
		}
		item, quote, err := ubi.DecodeItemDetails(raw)
		if err != nil {
			p.logger.Printf("holdings: item %s details undecodable: %v", id, err)
			continue
		}
		if item.ItemID == "" {
			item = domain.Item{
				ItemID:   id,
				Name:     holdings[id].Name,
				AssetURL: holdings[id].AssetURL,
			}
		}
		inputs = append(inputs, rank.HoldingInput{
			Holding: holdings[id],
			Item:    item,
			Quote:   quote,
			Windows: p.aggregateWindows(history, quote, start),
		})
	}

	results := rank.Holdings(inputs, p.ranking)
	summary := reporting.Summary{
		ItemsRequested: len(holdings),
		ItemsResolved:  len(inputs),
		ItemsFailed:    len(holdings) - len(inputs),
	}
	return p.finish(ctx, reporting.ModeHoldings, start, summary, results)
}

// decodeHistory extracts and decodes one item's price history from a resolve
// result, snapshotting the points to the history store when one is wired.
func (p *Pipeline) decodeHistory(ctx context.Context, itemID string, res *resolver.Result[string]) ([]domain.PriceHistoryPoint, bool) {
	raw, ok := res.Resolved[itemID]
	if !ok {
		p.logger.Printf("item %s history failed: %v", itemID, res.Failed[itemID])
		return nil, false
	}
	history, err := ubi.DecodePriceHistory(raw)
	if err != nil {
		p.logger.Printf("item %s history undecodable: %v", itemID, err)
		return nil, false
	}
	if p.historyStore != nil && len(history) > 0 {
		points := make([]*domain.PriceHistoryPoint, len(history))
		for i := range history {
			points[i] = &history[i]
		}
		if err := p.historyStore.InsertBulk(ctx, itemID, points); err != nil {
			p.logger.Printf("item %s history snapshot failed: %v", itemID, err)
		}
	}
	return history, true
}

// aggregateWindows summarizes one item's history over the configured
// lookback windows, using its current lowest sell price as the empty-window
// fallback mean.
func (p *Pipeline) aggregateWindows(history []domain.PriceHistoryPoint, quote domain.Quote, asOf time.Time) map[int]domain.AggregatedWindow {
	windows := p.ranking.Windows
	if len(windows) == 0 {
		windows = aggregate.DefaultWindows
	}
	var fallback float64
	if quote.LowestSellPrice != nil {
		fallback = float64(*quote.LowestSellPrice)
	}
	return aggregate.Aggregate(history, windows, asOf, fallback)
}

// persistEvents appends freshly collected events to the event store, then
// reloads the full log so previously imported events (pasted page imports,
// earlier runs) also feed the ledger. Without a store the collected slice is
// the log.
func (p *Pipeline) persistEvents(ctx context.Context, events []domain.TradeEvent) []domain.TradeEvent {
	if p.eventStore == nil {
		return events
	}
	for i := range events {
		err := p.eventStore.Insert(ctx, &events[i])
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			p.logger.Printf("holdings: persist event %s: %v", events[i].EventID, err)
		}
	}
	stored, err := p.eventStore.GetAll(ctx)
	if err != nil {
		p.logger.Printf("holdings: reload trade log: %v", err)
		return events
	}
	full := make([]domain.TradeEvent, len(stored))
	for i, e := range stored {
		full[i] = *e
	}
	return full
}

// finish assembles the report, saves the run when a result store is wired,
// and records run metrics.
func (p *Pipeline) finish(ctx context.Context, mode string, start time.Time, summary reporting.Summary, results []domain.ScoredResult) (*reporting.Report, error) {
	runID := idhash.ComputeRunID(mode, start)
	if p.resultStore != nil {
		if err := p.resultStore.SaveRun(ctx, runID, mode, start, results); err != nil {
			p.logger.Printf("%s: save run %s: %v", mode, runID, err)
		}
	}

	windows := p.ranking.Windows
	if len(windows) == 0 {
		windows = aggregate.DefaultWindows
	}

	duration := p.now().Sub(start).Seconds()
	observability.RecordPipelineRun(mode, "success", duration)
	observability.RecordItemsScored(mode, len(results))
	observability.RecordReportGenerated(mode, float64(start.Unix()))
	p.logger.Printf("%s: run %s scored %d of %d items", mode, runID, len(results), summary.ItemsRequested)

	return reporting.NewReport(runID, mode, start, windows, summary, results), nil
}

// fail records a failed run and propagates the error. No report is produced.
func (p *Pipeline) fail(mode string, start time.Time, err error) (*reporting.Report, error) {
	observability.RecordPipelineRun(mode, "error", p.now().Sub(start).Seconds())
	p.logger.Printf("%s: run aborted: %v", mode, err)
	return nil, err
}
