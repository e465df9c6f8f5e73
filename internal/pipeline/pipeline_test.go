package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"siege-market-lab/internal/catalog"
	"siege-market-lab/internal/domain"
	"siege-market-lab/internal/idhash"
	"siege-market-lab/internal/rank"
	"siege-market-lab/internal/reporting"
	"siege-market-lab/internal/resolver"
	"siege-market-lab/internal/storage/memory"
	"siege-market-lab/internal/tradelog"
	"siege-market-lab/internal/ubi"
)

const testSpaceID = "space-1"

// stubTransport answers batched requests from canned per-operation payloads.
// A missing entry yields a per-item GraphQL error so partial failure paths
// stay exercisable.
type stubTransport struct {
	catalogPage string
	tradesPage  string
	histories   map[string]string // itemID -> GetItemPriceHistory data
	details     map[string]string // itemID -> GetItemDetails data

	unauthorized bool
}

func (s *stubTransport) Send(_ context.Context, reqs []ubi.Request) ([]ubi.Response, error) {
	if s.unauthorized {
		return nil, ubi.ErrUnauthorized
	}
	responses := make([]ubi.Response, len(reqs))
	for i, req := range reqs {
		var payload string
		switch req.OperationName {
		case ubi.OpMarketableItems:
			payload = s.catalogPage
		case ubi.OpTransactionsHistory:
			payload = s.tradesPage
		case ubi.OpItemPriceHistory:
			payload = s.histories[req.Variables["itemId"].(string)]
		case ubi.OpItemDetails:
			payload = s.details[req.Variables["itemId"].(string)]
		}
		if payload == "" {
			responses[i] = ubi.Response{Errors: []ubi.GraphQLError{{Message: "no data"}}}
			continue
		}
		responses[i] = ubi.Response{Data: json.RawMessage(payload)}
	}
	return responses, nil
}

func catalogPage(nodes ...string) string {
	return fmt.Sprintf(`{"game": {"marketableItems": {"nodes": [%s], "totalCount": %d}}}`,
		strings.Join(nodes, ","), len(nodes))
}

func catalogNode(itemID, name string, sell, buy int) string {
	return fmt.Sprintf(`{
		"item": {"itemId": %q, "name": %q, "type": "WeaponSkin", "assetUrl": "https://img/%s"},
		"marketData": {
			"sellStats": [{"lowestPrice": %d, "activeCount": 12}],
			"buyStats": [{"highestPrice": %d, "activeCount": 8}],
			"lastSoldAt": [{"price": %d}]
		}
	}`, itemID, name, itemID, sell, buy, sell)
}

func historyPayload(days map[string]float64) string {
	points := make([]string, 0, len(days))
	for date, avg := range days {
		points = append(points, fmt.Sprintf(
			`{"date": %q, "averagePrice": %g, "highestPrice": %g, "itemsCount": 3}`, date, avg, avg))
	}
	return fmt.Sprintf(`{"game": {"marketableItem": {"priceHistory": [%s]}}}`,
		strings.Join(points, ","))
}

func detailsPayload(itemID, name string, sell, buy int) string {
	return fmt.Sprintf(`{"game": {"marketableItem": %s}}`, catalogNode(itemID, name, sell, buy))
}

func tradesPayload(nodes ...string) string {
	return fmt.Sprintf(`{"game": {"viewer": {"meta": {"trades": {"nodes": [%s], "totalCount": %d}}}}}`,
		strings.Join(nodes, ","), len(nodes))
}

func tradeNode(itemID, name, category string, price int, at string) string {
	return fmt.Sprintf(`{
		"tradeId": "t-%s-%s",
		"state": "Succeeded",
		"category": %q,
		"lastModifiedAt": %q,
		"tradeItems": [{"item": {"itemId": %q, "name": %q, "assetUrl": ""}}],
		"payment": {"price": %d}
	}`, itemID, category, category, at, itemID, name, price)
}

func newTestPipeline(transport *stubTransport, asOf time.Time) *Pipeline {
	return New(Options{
		Sender:  transport,
		SpaceID: testSpaceID,
		Catalog: catalog.Config{
			SpaceID:       testSpaceID,
			PageSize:      50,
			TargetCount:   10,
			MinSellPrice:  1,
			MinSellOrders: 1,
			MinBuyOrders:  1,
		},
		TradeLog: tradelog.Config{SpaceID: testSpaceID, PageSize: 100},
		Resolver: resolver.Options{
			BatchSize:   10,
			MaxAttempts: 1,
		},
		Ranking: rank.Config{
			FeeRate:               0.10,
			SpreadProfitThreshold: 0.10,
			Windows:               []int{7, 14},
		},
		Now: func() time.Time { return asOf },
	})
}

func dateDaysAgo(asOf time.Time, days int) string {
	return asOf.AddDate(0, 0, -days).UTC().Format("2006-01-02")
}

func tradeEventFixture(t *testing.T, itemID, name, category string, price int, at string) domain.TradeEvent {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, at)
	require.NoError(t, err)
	ev := domain.TradeEvent{
		ItemID:         itemID,
		Name:           name,
		Category:       domain.TradeCategory(category),
		Price:          &price,
		State:          domain.StateSucceeded,
		LastModifiedAt: ts.UTC(),
	}
	ev.EventID = idhash.ComputeTradeEventID(ev.ItemID, ev.Name, ev.Category, ev.Price, ev.LastModifiedAt)
	return ev
}

func TestPipeline_MarketScan_RanksProfitableSpreadFirst(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// Item A: mean 120, sell 100, buy 130. Fee-adjusted flip nets 17 > 12,
	// so the spread is profitable despite the shallower discount.
	// Item B: mean 125, sell 100, buy 105. Flip nets -5.5, not profitable.
	transport := &stubTransport{
		catalogPage: catalogPage(
			catalogNode("item-b", "Deep Discount", 100, 105),
			catalogNode("item-a", "Live Flip", 100, 130),
		),
		histories: map[string]string{
			"item-a": historyPayload(map[string]float64{
				dateDaysAgo(asOf, 1): 110,
				dateDaysAgo(asOf, 2): 130,
			}),
			"item-b": historyPayload(map[string]float64{
				dateDaysAgo(asOf, 1): 120,
				dateDaysAgo(asOf, 2): 130,
			}),
		},
	}

	report, err := newTestPipeline(transport, asOf).RunMarketScan(context.Background())
	require.NoError(t, err)

	require.Equal(t, reporting.ModeMarketScan, report.Mode)
	require.Len(t, report.RunID, 64)
	require.Equal(t, []int{7, 14}, report.Windows)
	require.Equal(t, 2, report.Summary.ItemsRequested)
	require.Equal(t, 2, report.Summary.ItemsResolved)
	require.Equal(t, 0, report.Summary.ItemsFailed)

	require.Len(t, report.Results, 2)
	require.Equal(t, "item-a", report.Results[0].Item.ItemID)
	require.True(t, report.Results[0].SpreadProfitable[7])
	require.Equal(t, "item-b", report.Results[1].Item.ItemID)
	require.False(t, report.Results[1].SpreadProfitable[7])
}

func TestPipeline_MarketScan_FailedHistoryExcludedNotPlaceholder(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	transport := &stubTransport{
		catalogPage: catalogPage(
			catalogNode("item-a", "Resolves", 100, 130),
			catalogNode("item-x", "Never Resolves", 100, 130),
		),
		histories: map[string]string{
			"item-a": historyPayload(map[string]float64{dateDaysAgo(asOf, 1): 120}),
		},
	}

	report, err := newTestPipeline(transport, asOf).RunMarketScan(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, report.Summary.ItemsRequested)
	require.Equal(t, 1, report.Summary.ItemsResolved)
	require.Equal(t, 1, report.Summary.ItemsFailed)
	require.Len(t, report.Results, 1)
	require.Equal(t, "item-a", report.Results[0].Item.ItemID)
}

func TestPipeline_MarketScan_UnauthorizedAbortsWithoutReport(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	transport := &stubTransport{unauthorized: true}

	report, err := newTestPipeline(transport, asOf).RunMarketScan(context.Background())
	require.ErrorIs(t, err, ubi.ErrUnauthorized)
	require.Nil(t, report)
}

func TestPipeline_MarketScan_SnapshotsHistoryAndRun(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	transport := &stubTransport{
		catalogPage: catalogPage(catalogNode("item-a", "Live Flip", 100, 130)),
		histories: map[string]string{
			"item-a": historyPayload(map[string]float64{dateDaysAgo(asOf, 1): 120}),
		},
	}

	historyStore := memory.NewPriceHistoryStore()
	resultStore := memory.NewScoredResultStore()

	p := newTestPipeline(transport, asOf)
	p.historyStore = historyStore
	p.resultStore = resultStore

	report, err := p.RunMarketScan(context.Background())
	require.NoError(t, err)

	points, err := historyStore.GetByItemID(context.Background(), "item-a")
	require.NoError(t, err)
	require.Len(t, points, 1)

	runID, results, err := resultStore.LatestRun(context.Background(), reporting.ModeMarketScan)
	require.NoError(t, err)
	require.Equal(t, report.RunID, runID)
	require.Len(t, results, 1)
	require.Equal(t, "item-a", results[0].Item.ItemID)
}

func TestPipeline_Holdings_RanksOpenPositionsByProfit(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// item-w bought at 100, sells now at 200: a clear winner.
	// item-l bought at 300, sells now at 200: underwater.
	// item-s was bought and then sold, so it is no longer held.
	transport := &stubTransport{
		tradesPage: tradesPayload(
			tradeNode("item-w", "Winner", "Buy", 100, "2026-03-01T10:00:00Z"),
			tradeNode("item-l", "Loser", "Buy", 300, "2026-03-02T10:00:00Z"),
			tradeNode("item-s", "Flipped", "Buy", 50, "2026-03-03T10:00:00Z"),
			tradeNode("item-s", "Flipped", "Sell", 80, "2026-03-04T10:00:00Z"),
		),
		histories: map[string]string{
			"item-w": historyPayload(map[string]float64{dateDaysAgo(asOf, 1): 190}),
			"item-l": historyPayload(map[string]float64{dateDaysAgo(asOf, 1): 210}),
		},
		details: map[string]string{
			"item-w": detailsPayload("item-w", "Winner", 200, 180),
			"item-l": detailsPayload("item-l", "Loser", 200, 180),
		},
	}

	report, err := newTestPipeline(transport, asOf).RunHoldings(context.Background())
	require.NoError(t, err)

	require.Equal(t, reporting.ModeHoldings, report.Mode)
	require.Equal(t, 2, report.Summary.ItemsRequested)
	require.Equal(t, 2, report.Summary.ItemsResolved)

	require.Len(t, report.Results, 2)
	require.Equal(t, "item-w", report.Results[0].Item.ItemID)
	require.NotNil(t, report.Results[0].Holding)
	require.Equal(t, 100, report.Results[0].Holding.CostBasisPrice)
	require.NotNil(t, report.Results[0].ProfitByCurrent)
	// Sell at 200 with 10% fee recovers 180 against a 100 cost basis.
	require.InDelta(t, 80.0, report.Results[0].ProfitByCurrent.NetProfit, 1e-9)
	require.True(t, report.Results[0].ProfitByCurrent.Profitable)

	require.Equal(t, "item-l", report.Results[1].Item.ItemID)
	require.InDelta(t, -120.0, report.Results[1].ProfitByCurrent.NetProfit, 1e-9)
	require.False(t, report.Results[1].ProfitByCurrent.Profitable)
}

func TestPipeline_Holdings_RequiresBothLookups(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// History resolves but the details lookup fails; the item must drop out
	// of the ranking rather than score against a partial view.
	transport := &stubTransport{
		tradesPage: tradesPayload(
			tradeNode("item-w", "Winner", "Buy", 100, "2026-03-01T10:00:00Z"),
		),
		histories: map[string]string{
			"item-w": historyPayload(map[string]float64{dateDaysAgo(asOf, 1): 190}),
		},
	}

	report, err := newTestPipeline(transport, asOf).RunHoldings(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Summary.ItemsRequested)
	require.Equal(t, 0, report.Summary.ItemsResolved)
	require.Equal(t, 1, report.Summary.ItemsFailed)
	require.Empty(t, report.Results)
}

func TestPipeline_Holdings_MergesStoredEvents(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// The remote log only shows the Buy; a previously imported Sell sits in
	// the event store. The merged log closes the position.
	transport := &stubTransport{
		tradesPage: tradesPayload(
			tradeNode("item-s", "Flipped", "Buy", 50, "2026-03-03T10:00:00Z"),
		),
	}

	eventStore := memory.NewTradeEventStore()
	p := newTestPipeline(transport, asOf)
	p.eventStore = eventStore

	// Seed the later Sell as an import would.
	sell := tradeEventFixture(t, "item-s", "Flipped", "Sell", 80, "2026-03-04T10:00:00Z")
	require.NoError(t, eventStore.Insert(context.Background(), &sell))

	report, err := p.RunHoldings(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, report.Summary.ItemsRequested)
	require.Empty(t, report.Results)

	// The collected Buy is now persisted alongside the seeded Sell.
	all, err := eventStore.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
}
