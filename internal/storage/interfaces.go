package storage

import (
	"context"
	"time"

	"siege-market-lab/internal/domain"
)

// TradeEventStore provides access to the persisted trade log.
// The log is append-only: an event, once written, never changes.
type TradeEventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.TradeEvent) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.TradeEvent) error

	// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, eventID string) (*domain.TradeEvent, error)

	// GetByItemID retrieves all events for an item, ordered by last_modified_at ASC.
	GetByItemID(ctx context.Context, itemID string) ([]*domain.TradeEvent, error)

	// GetAll retrieves the full log, ordered by last_modified_at ASC.
	GetAll(ctx context.Context) ([]*domain.TradeEvent, error)
}

// ScoredResultStore provides access to ranked analysis runs. Results are
// keyed by (run_id, rank) in their final sorted order.
type ScoredResultStore interface {
	// SaveRun stores one complete ranked run. Returns ErrDuplicateKey if run_id exists.
	SaveRun(ctx context.Context, runID, mode string, generatedAt time.Time, results []domain.ScoredResult) error

	// GetRun retrieves a run's results in rank order. Returns ErrNotFound if not exists.
	GetRun(ctx context.Context, runID string) ([]domain.ScoredResult, error)

	// LatestRun retrieves the most recent run for a mode, by generated_at.
	// Returns ErrNotFound when no run of that mode exists.
	LatestRun(ctx context.Context, mode string) (string, []domain.ScoredResult, error)
}

// PriceHistoryStore caches fetched daily price points between runs, keyed by
// (item_id, date). Re-inserting an existing day replaces it, so repeated
// fetches of overlapping ranges stay idempotent.
type PriceHistoryStore interface {
	// InsertBulk stores points for one item.
	InsertBulk(ctx context.Context, itemID string, points []*domain.PriceHistoryPoint) error

	// GetByItemID retrieves all points for an item, ordered by date ASC.
	GetByItemID(ctx context.Context, itemID string) ([]*domain.PriceHistoryPoint, error)

	// GetByDateRange retrieves points for an item within [from, to] (inclusive).
	GetByDateRange(ctx context.Context, itemID string, from, to time.Time) ([]*domain.PriceHistoryPoint, error)
}
