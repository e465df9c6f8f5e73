package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"siege-market-lab/internal/domain"
	"siege-market-lab/internal/storage"
	"siege-market-lab/internal/storage/postgres"
)

func scoredResult(itemID string, spread int) domain.ScoredResult {
	return domain.ScoredResult{
		Item:             domain.Item{ItemID: itemID, Name: "Item " + itemID},
		Quote:            domain.Quote{LowestSellPrice: ptr(100), HighestBuyPrice: ptr(100 + spread)},
		Spread:           spread,
		Undervaluation:   map[int]float64{7: 12.5},
		SpreadProfitable: map[int]bool{7: spread > 10},
	}
}

func TestScoredResultStore_SaveAndGetRunPreservesOrderAndPayload(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewScoredResultStore(pool)
	ctx := context.Background()

	results := []domain.ScoredResult{
		scoredResult("a", 30),
		scoredResult("b", 5),
	}
	generated := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(ctx, "run1", "market-scan", generated, results))

	got, err := store.GetRun(ctx, "run1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].Item.ItemID)
	require.Equal(t, 30, got[0].Spread)
	require.Equal(t, 12.5, got[0].Undervaluation[7])
	require.True(t, got[0].SpreadProfitable[7])
	require.False(t, got[1].SpreadProfitable[7])
	require.NotNil(t, got[0].Quote.HighestBuyPrice)
	require.Equal(t, 130, *got[0].Quote.HighestBuyPrice)
}

func TestScoredResultStore_DuplicateRun(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewScoredResultStore(pool)
	ctx := context.Background()

	generated := time.Now().UTC()
	require.NoError(t, store.SaveRun(ctx, "run1", "market-scan", generated, []domain.ScoredResult{scoredResult("a", 30)}))

	err := store.SaveRun(ctx, "run1", "market-scan", generated, []domain.ScoredResult{scoredResult("b", 5)})
	require.True(t, errors.Is(err, storage.ErrDuplicateKey), "expected ErrDuplicateKey, got %v", err)
}

func TestScoredResultStore_GetRunNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewScoredResultStore(pool)

	_, err := store.GetRun(context.Background(), "missing")
	require.True(t, errors.Is(err, storage.ErrNotFound), "expected ErrNotFound, got %v", err)
}

func TestScoredResultStore_LatestRunPerMode(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewScoredResultStore(pool)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(ctx, "scan-old", "market-scan", base, []domain.ScoredResult{scoredResult("a", 30)}))
	require.NoError(t, store.SaveRun(ctx, "scan-new", "market-scan", base.Add(time.Hour), []domain.ScoredResult{scoredResult("b", 5)}))
	require.NoError(t, store.SaveRun(ctx, "hold-1", "holdings", base.Add(2*time.Hour), []domain.ScoredResult{scoredResult("c", 1)}))

	runID, results, err := store.LatestRun(ctx, "market-scan")
	require.NoError(t, err)
	require.Equal(t, "scan-new", runID)
	require.Len(t, results, 1)
	require.Equal(t, "b", results[0].Item.ItemID)
}

func TestScoredResultStore_EmptyRunIsValid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewScoredResultStore(pool)
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, "run1", "market-scan", time.Now().UTC(), nil))

	got, err := store.GetRun(ctx, "run1")
	require.NoError(t, err)
	require.Empty(t, got)
}
