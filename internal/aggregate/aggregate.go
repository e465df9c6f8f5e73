// Package aggregate computes time-bounded statistical summaries of a price
// history series.
package aggregate

import (
	"time"

	"siege-market-lab/internal/domain"
)

// Default lookback windows, in days.
var DefaultWindows = []int{7, 14}

// Aggregate summarizes history for each lookback window, evaluated as of the
// given day. Window membership is strict: a point exactly windowDays old is
// excluded. A point may count toward several overlapping windows.
//
// fallback is the item's current lowest sell price. When a window's mean has
// no usable samples the mean takes the fallback instead of zero, so a
// missing history reads as "no discount" downstream rather than "free".
// SampleCount stays 0 in that case so callers can tell the two apart.
func Aggregate(history []domain.PriceHistoryPoint, windows []int, asOf time.Time, fallback float64) map[int]domain.AggregatedWindow {
	asOfDay := toUTCDay(asOf)

	result := make(map[int]domain.AggregatedWindow, len(windows))
	for _, w := range windows {
		var (
			samples   int
			avgSum    float64
			avgCount  int
			highSum   float64
			highCount int
		)
		for _, p := range history {
			if ageDays(asOfDay, p.Date) >= w {
				continue
			}
			samples++
			if p.AveragePrice != nil {
				avgSum += *p.AveragePrice
				avgCount++
			}
			if p.HighestPrice != nil {
				highSum += *p.HighestPrice
				highCount++
			}
		}

		agg := domain.AggregatedWindow{
			WindowDays:    w,
			MeanOfAverage: fallback,
			MeanOfHighest: fallback,
			SampleCount:   samples,
		}
		if avgCount > 0 {
			agg.MeanOfAverage = avgSum / float64(avgCount)
		}
		if highCount > 0 {
			agg.MeanOfHighest = highSum / float64(highCount)
		}
		result[w] = agg
	}
	return result
}

// ageDays returns the whole-day distance from the point's day to asOf.
// Future-dated points report a negative age and therefore fall inside every
// window, matching how the remote reports a partially-elapsed current day.
func ageDays(asOfDay, pointDate time.Time) int {
	return int(asOfDay.Sub(toUTCDay(pointDate)).Hours() / 24)
}

func toUTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
