package memory

import (
	"context"
	"sync"
	"time"

	"siege-market-lab/internal/domain"
	"siege-market-lab/internal/storage"
)

type runRecord struct {
	runID       string
	mode        string
	generatedAt time.Time
	results     []domain.ScoredResult
}

// ScoredResultStore is an in-memory implementation of storage.ScoredResultStore.
type ScoredResultStore struct {
	mu   sync.RWMutex
	runs map[string]*runRecord // keyed by run_id
}

// NewScoredResultStore creates a new in-memory scored result store.
func NewScoredResultStore() *ScoredResultStore {
	return &ScoredResultStore{
		runs: make(map[string]*runRecord),
	}
}

// SaveRun stores one complete ranked run. Returns ErrDuplicateKey if run_id exists.
func (s *ScoredResultStore) SaveRun(_ context.Context, runID, mode string, generatedAt time.Time, results []domain.ScoredResult) error {
	if runID == "" || mode == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[runID]; exists {
		return storage.ErrDuplicateKey
	}

	s.runs[runID] = &runRecord{
		runID:       runID,
		mode:        mode,
		generatedAt: generatedAt,
		results:     copyResults(results),
	}
	return nil
}

// GetRun retrieves a run's results in rank order. Returns ErrNotFound if not exists.
func (s *ScoredResultStore) GetRun(_ context.Context, runID string) ([]domain.ScoredResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyResults(run.results), nil
}

// LatestRun retrieves the most recent run for a mode, by generated_at.
func (s *ScoredResultStore) LatestRun(_ context.Context, mode string) (string, []domain.ScoredResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *runRecord
	for _, run := range s.runs {
		if run.mode != mode {
			continue
		}
		if latest == nil || run.generatedAt.After(latest.generatedAt) {
			latest = run
		}
	}
	if latest == nil {
		return "", nil, storage.ErrNotFound
	}
	return latest.runID, copyResults(latest.results), nil
}

func copyResults(results []domain.ScoredResult) []domain.ScoredResult {
	out := make([]domain.ScoredResult, len(results))
	copy(out, results)
	return out
}

var _ storage.ScoredResultStore = (*ScoredResultStore)(nil)
