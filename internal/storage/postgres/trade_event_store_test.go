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

func tradeEvent(eventID, itemID string, category domain.TradeCategory, price int, modified time.Time) *domain.TradeEvent {
	return &domain.TradeEvent{
		EventID:        eventID,
		ItemID:         itemID,
		Name:           "Item " + itemID,
		AssetURL:       "https://assets.example/" + itemID,
		Category:       category,
		Price:          ptr(price),
		State:          domain.StateSucceeded,
		LastModifiedAt: modified,
	}
}

func TestTradeEventStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTradeEventStore(pool)
	ctx := context.Background()

	modified := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ev := tradeEvent("ev1", "item1", domain.CategoryBuy, 12500, modified)
	require.NoError(t, store.Insert(ctx, ev))

	got, err := store.GetByID(ctx, "ev1")
	require.NoError(t, err)
	require.Equal(t, "item1", got.ItemID)
	require.Equal(t, domain.CategoryBuy, got.Category)
	require.NotNil(t, got.Price)
	require.Equal(t, 12500, *got.Price)
	require.True(t, got.LastModifiedAt.Equal(modified))
}

func TestTradeEventStore_NullPriceRoundTrips(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTradeEventStore(pool)
	ctx := context.Background()

	ev := tradeEvent("ev1", "item1", domain.CategoryBuy, 0, time.Now().UTC())
	ev.Price = nil
	require.NoError(t, store.Insert(ctx, ev))

	got, err := store.GetByID(ctx, "ev1")
	require.NoError(t, err)
	require.Nil(t, got.Price)
}

func TestTradeEventStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTradeEventStore(pool)
	ctx := context.Background()

	ev := tradeEvent("ev1", "item1", domain.CategoryBuy, 100, time.Now().UTC())
	require.NoError(t, store.Insert(ctx, ev))

	err := store.Insert(ctx, ev)
	require.True(t, errors.Is(err, storage.ErrDuplicateKey), "expected ErrDuplicateKey, got %v", err)
}

func TestTradeEventStore_InsertBulkRollsBackOnDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTradeEventStore(pool)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, tradeEvent("ev1", "item1", domain.CategoryBuy, 100, base)))

	batch := []*domain.TradeEvent{
		tradeEvent("ev2", "item1", domain.CategorySell, 150, base.Add(time.Hour)),
		tradeEvent("ev1", "item2", domain.CategoryBuy, 200, base.Add(2*time.Hour)), // duplicate
	}
	err := store.InsertBulk(ctx, batch)
	require.True(t, errors.Is(err, storage.ErrDuplicateKey), "expected ErrDuplicateKey, got %v", err)

	_, err = store.GetByID(ctx, "ev2")
	require.True(t, errors.Is(err, storage.ErrNotFound), "failed batch must not leave partial rows")
}

func TestTradeEventStore_GetAllOrderedByModifiedAt(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTradeEventStore(pool)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	batch := []*domain.TradeEvent{
		tradeEvent("ev3", "item1", domain.CategoryBuy, 300, base.Add(2*time.Hour)),
		tradeEvent("ev1", "item1", domain.CategoryBuy, 100, base),
		tradeEvent("ev2", "item2", domain.CategorySell, 200, base.Add(time.Hour)),
	}
	require.NoError(t, store.InsertBulk(ctx, batch))

	got, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "ev1", got[0].EventID)
	require.Equal(t, "ev2", got[1].EventID)
	require.Equal(t, "ev3", got[2].EventID)
}

func TestTradeEventStore_GetByItemID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTradeEventStore(pool)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, tradeEvent("ev1", "item1", domain.CategoryBuy, 100, base)))
	require.NoError(t, store.Insert(ctx, tradeEvent("ev2", "item2", domain.CategoryBuy, 200, base)))
	require.NoError(t, store.Insert(ctx, tradeEvent("ev3", "item1", domain.CategorySell, 300, base.Add(time.Hour))))

	got, err := store.GetByItemID(ctx, "item1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "ev1", got[0].EventID)
	require.Equal(t, "ev3", got[1].EventID)
}
