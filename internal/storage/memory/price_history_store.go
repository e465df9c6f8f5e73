package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"siege-market-lab/internal/domain"
	"siege-market-lab/internal/storage"
)

type dayKey struct {
	itemID string
	day    string // yyyy-mm-dd in UTC
}

// PriceHistoryStore is an in-memory implementation of storage.PriceHistoryStore.
// Re-inserting an existing (item_id, date) pair replaces the stored point.
type PriceHistoryStore struct {
	mu   sync.RWMutex
	data map[dayKey]*domain.PriceHistoryPoint
}

// NewPriceHistoryStore creates a new in-memory price history store.
func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{
		data: make(map[dayKey]*domain.PriceHistoryPoint),
	}
}

// InsertBulk stores points for one item.
func (s *PriceHistoryStore) InsertBulk(_ context.Context, itemID string, points []*domain.PriceHistoryPoint) error {
	if itemID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		copy := *p
		copy.Date = copy.Date.UTC()
		s.data[dayKey{itemID, copy.Date.Format("2006-01-02")}] = &copy
	}
	return nil
}

// GetByItemID retrieves all points for an item, ordered by date ASC.
func (s *PriceHistoryStore) GetByItemID(_ context.Context, itemID string) ([]*domain.PriceHistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceHistoryPoint
	for k, p := range s.data {
		if k.itemID == itemID {
			copy := *p
			result = append(result, &copy)
		}
	}

	sortByDate(result)
	return result, nil
}

// GetByDateRange retrieves points for an item within [from, to] (inclusive).
func (s *PriceHistoryStore) GetByDateRange(_ context.Context, itemID string, from, to time.Time) ([]*domain.PriceHistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceHistoryPoint
	for k, p := range s.data {
		if k.itemID != itemID {
			continue
		}
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		copy := *p
		result = append(result, &copy)
	}

	sortByDate(result)
	return result, nil
}

func sortByDate(points []*domain.PriceHistoryPoint) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
}

var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)
