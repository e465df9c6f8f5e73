package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"siege-market-lab/internal/domain"
	"siege-market-lab/internal/storage"
)

// PriceHistoryStore implements storage.PriceHistoryStore using ClickHouse.
// The ReplacingMergeTree engine collapses re-fetched (item_id, date) pairs,
// so reads must query with FINAL to see one row per day.
type PriceHistoryStore struct {
	conn *Conn
}

// NewPriceHistoryStore creates a new PriceHistoryStore.
func NewPriceHistoryStore(conn *Conn) *PriceHistoryStore {
	return &PriceHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// InsertBulk stores points for one item.
func (s *PriceHistoryStore) InsertBulk(ctx context.Context, itemID string, points []*domain.PriceHistoryPoint) error {
	if itemID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_history (
			item_id, date, average_price, highest_price, items_count
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			itemID, p.Date.UTC(), p.AveragePrice, p.HighestPrice, itemsCountValue(p.ItemsCount),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByItemID retrieves all points for an item, ordered by date ASC.
func (s *PriceHistoryStore) GetByItemID(ctx context.Context, itemID string) ([]*domain.PriceHistoryPoint, error) {
	query := `
		SELECT date, average_price, highest_price, items_count
		FROM price_history FINAL
		WHERE item_id = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("query by item id: %w", err)
	}
	defer rows.Close()

	return scanPriceHistory(rows)
}

// GetByDateRange retrieves points for an item within [from, to] (inclusive).
func (s *PriceHistoryStore) GetByDateRange(ctx context.Context, itemID string, from, to time.Time) ([]*domain.PriceHistoryPoint, error) {
	query := `
		SELECT date, average_price, highest_price, items_count
		FROM price_history FINAL
		WHERE item_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, itemID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	return scanPriceHistory(rows)
}

func scanPriceHistory(rows driver.Rows) ([]*domain.PriceHistoryPoint, error) {
	var result []*domain.PriceHistoryPoint
	for rows.Next() {
		var (
			p     domain.PriceHistoryPoint
			count *uint32
		)
		if err := rows.Scan(&p.Date, &p.AveragePrice, &p.HighestPrice, &count); err != nil {
			return nil, fmt.Errorf("scan price history row: %w", err)
		}
		if count != nil {
			v := int(*count)
			p.ItemsCount = &v
		}
		p.Date = p.Date.UTC()
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price history rows: %w", err)
	}
	return result, nil
}

func itemsCountValue(v *int) *uint32 {
	if v == nil {
		return nil
	}
	u := uint32(*v)
	return &u
}
