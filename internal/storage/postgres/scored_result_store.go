package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"siege-market-lab/internal/domain"
	"siege-market-lab/internal/storage"
)

// ScoredResultStore implements storage.ScoredResultStore using PostgreSQL.
// The run header lives in scored_runs; each ranked entry is one row of
// scored_results with the full result serialized as JSONB.
type ScoredResultStore struct {
	pool *Pool
}

// NewScoredResultStore creates a new ScoredResultStore.
func NewScoredResultStore(pool *Pool) *ScoredResultStore {
	return &ScoredResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ScoredResultStore = (*ScoredResultStore)(nil)

// SaveRun stores one complete ranked run. Returns ErrDuplicateKey if run_id exists.
func (s *ScoredResultStore) SaveRun(ctx context.Context, runID, mode string, generatedAt time.Time, results []domain.ScoredResult) error {
	if runID == "" || mode == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO scored_runs (run_id, mode, generated_at) VALUES ($1, $2, $3)`,
		runID, mode, generatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run header: %w", err)
	}

	for rank, r := range results {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal result at rank %d: %w", rank, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO scored_results (run_id, rank, item_id, name, payload) VALUES ($1, $2, $3, $4, $5)`,
			runID, rank, r.Item.ItemID, r.Item.Name, payload,
		)
		if err != nil {
			return fmt.Errorf("insert result at rank %d: %w", rank, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetRun retrieves a run's results in rank order. Returns ErrNotFound if not exists.
func (s *ScoredResultStore) GetRun(ctx context.Context, runID string) ([]domain.ScoredResult, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM scored_runs WHERE run_id = $1)`, runID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check run exists: %w", err)
	}
	if !exists {
		return nil, storage.ErrNotFound
	}

	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM scored_results WHERE run_id = $1 ORDER BY rank ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run results: %w", err)
	}
	defer rows.Close()

	var results []domain.ScoredResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan result payload: %w", err)
		}
		var r domain.ScoredResult
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("unmarshal result payload: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run results: %w", err)
	}
	return results, nil
}

// LatestRun retrieves the most recent run for a mode, by generated_at.
func (s *ScoredResultStore) LatestRun(ctx context.Context, mode string) (string, []domain.ScoredResult, error) {
	var runID string
	err := s.pool.QueryRow(ctx,
		`SELECT run_id FROM scored_runs WHERE mode = $1 ORDER BY generated_at DESC LIMIT 1`, mode,
	).Scan(&runID)
	if err != nil {
		if isNotFoundError(err) {
			return "", nil, storage.ErrNotFound
		}
		return "", nil, fmt.Errorf("query latest run: %w", err)
	}

	results, err := s.GetRun(ctx, runID)
	if err != nil {
		return "", nil, err
	}
	return runID, results, nil
}
