package domain

import "time"

// PriceHistoryPoint is one calendar day of marketplace price history, as
// produced by the remote service. Days may be missing entirely and either
// price may be null within an otherwise present day.
type PriceHistoryPoint struct {
	Date         time.Time // calendar day, UTC midnight
	AveragePrice *float64
	HighestPrice *float64
	ItemsCount   *int // trades settled that day
}

// AggregatedWindow is the windowed summary of a price-history series for one
// lookback length. SampleCount is the number of in-window points; when the
// mean had no usable samples it holds the caller-supplied fallback price
// instead, so SampleCount == 0 is how callers tell real data from fallback.
type AggregatedWindow struct {
	WindowDays    int
	MeanOfAverage float64
	MeanOfHighest float64
	SampleCount   int
}
