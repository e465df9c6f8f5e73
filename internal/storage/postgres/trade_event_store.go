package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"siege-market-lab/internal/domain"
	"siege-market-lab/internal/storage"
)

// TradeEventStore implements storage.TradeEventStore using PostgreSQL.
type TradeEventStore struct {
	pool *Pool
}

// NewTradeEventStore creates a new TradeEventStore.
func NewTradeEventStore(pool *Pool) *TradeEventStore {
	return &TradeEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeEventStore = (*TradeEventStore)(nil)

const insertTradeEventQuery = `
	INSERT INTO trade_events (
		event_id, item_id, name, asset_url,
		category, price, state, last_modified_at
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8
	)
`

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *TradeEventStore) Insert(ctx context.Context, e *domain.TradeEvent) error {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTradeEventQuery,
		e.EventID, e.ItemID, e.Name, e.AssetURL,
		string(e.Category), e.Price, e.State, e.LastModifiedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade event: %w", err)
	}
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *TradeEventStore) InsertBulk(ctx context.Context, events []*domain.TradeEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertTradeEventQuery,
			e.EventID, e.ItemID, e.Name, e.AssetURL,
			string(e.Category), e.Price, e.State, e.LastModifiedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade event in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const selectTradeEventColumns = `
	SELECT event_id, item_id, name, asset_url,
	       category, price, state, last_modified_at
	FROM trade_events
`

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *TradeEventStore) GetByID(ctx context.Context, eventID string) (*domain.TradeEvent, error) {
	row := s.pool.QueryRow(ctx, selectTradeEventColumns+` WHERE event_id = $1`, eventID)

	e, err := scanTradeEvent(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade event by id: %w", err)
	}
	return e, nil
}

// GetByItemID retrieves all events for an item, ordered by last_modified_at ASC.
func (s *TradeEventStore) GetByItemID(ctx context.Context, itemID string) ([]*domain.TradeEvent, error) {
	rows, err := s.pool.Query(ctx, selectTradeEventColumns+` WHERE item_id = $1 ORDER BY last_modified_at ASC, event_id ASC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query trade events by item: %w", err)
	}
	defer rows.Close()

	return scanTradeEvents(rows)
}

// GetAll retrieves the full log, ordered by last_modified_at ASC.
func (s *TradeEventStore) GetAll(ctx context.Context) ([]*domain.TradeEvent, error) {
	rows, err := s.pool.Query(ctx, selectTradeEventColumns+` ORDER BY last_modified_at ASC, event_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query all trade events: %w", err)
	}
	defer rows.Close()

	return scanTradeEvents(rows)
}

func scanTradeEvent(row pgx.Row) (*domain.TradeEvent, error) {
	var (
		e        domain.TradeEvent
		category string
	)
	err := row.Scan(
		&e.EventID, &e.ItemID, &e.Name, &e.AssetURL,
		&category, &e.Price, &e.State, &e.LastModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Category = domain.TradeCategory(category)
	e.LastModifiedAt = e.LastModifiedAt.UTC()
	return &e, nil
}

func scanTradeEvents(rows pgx.Rows) ([]*domain.TradeEvent, error) {
	var result []*domain.TradeEvent
	for rows.Next() {
		e, err := scanTradeEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade event: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade events: %w", err)
	}
	return result, nil
}
