// Package reporting renders ranked analysis runs for humans and machines.
// A report carries only fully-scored entries; items that failed to resolve
// show up in the summary counts, never as placeholder rows.
package reporting

import (
	"time"

	"siege-market-lab/internal/domain"
)

// Run modes.
const (
	ModeMarketScan = "market-scan"
	ModeHoldings   = "holdings"
)

// Report is one complete analysis run in its final ranked order.
type Report struct {
	RunID       string
	Mode        string
	GeneratedAt time.Time
	Windows     []int // lookback windows used for aggregation, days
	Summary     Summary
	Results     []domain.ScoredResult
}

// Summary counts what the run touched and what survived to scoring.
type Summary struct {
	ItemsRequested int // candidates (or holdings) entering resolution
	ItemsResolved  int
	ItemsFailed    int
}

// NewReport assembles a report from a finished run.
func NewReport(runID, mode string, generatedAt time.Time, windows []int, summary Summary, results []domain.ScoredResult) *Report {
	return &Report{
		RunID:       runID,
		Mode:        mode,
		GeneratedAt: generatedAt,
		Windows:     windows,
		Summary:     summary,
		Results:     results,
	}
}
