package domain

// ProfitEstimate measures a holding against one reference sell price,
// after the marketplace transaction fee.
type ProfitEstimate struct {
	ReferencePrice float64
	NetProfit      float64
	ProfitRatio    float64 // percent of cost basis; 0 when cost basis <= 0
	Profitable     bool
}

// ScoredResult is one fully-scored entry of the final report. It is created
// once per ranking pass and immutable afterwards; the report's order is the
// ranking order.
type ScoredResult struct {
	Item  Item
	Quote Quote

	// Windows in the configured lookback order. The maps below are keyed by
	// WindowDays; iteration for output must follow Windows, not map order.
	Windows []AggregatedWindow

	Spread           int             // HighestBuyPrice - LowestSellPrice
	Undervaluation   map[int]float64 // percent discount vs window mean
	SpreadProfitable map[int]bool    // fee-adjusted spread clears the threshold

	// Holdings mode only: the ledger entry this score is relative to and the
	// per-reference-price profit estimates. Nil/empty in market-scan mode.
	Holding         *HoldingEntry
	ProfitByCurrent *ProfitEstimate
	ProfitByWindow  map[int]ProfitEstimate
}
