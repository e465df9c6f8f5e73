// Package rank scores candidates and holdings into a deterministic total
// order. All metrics treat "no data" as an explicit fallback, never as a
// computed zero that would rank as highly profitable.
package rank

import (
	"sort"

	"siege-market-lab/internal/domain"
)

// Default scoring parameters.
const (
	DefaultFeeRate               = 0.10
	DefaultSpreadProfitThreshold = 0.10
)

// Config carries the immutable scoring parameters. Windows is the ordered
// lookback set; its first element is the primary sort window.
type Config struct {
	FeeRate               float64
	SpreadProfitThreshold float64
	Windows               []int
}

// PrimaryWindow returns the window used as the market-scan sort key.
func (c Config) PrimaryWindow() int {
	if len(c.Windows) == 0 {
		return 7
	}
	return c.Windows[0]
}

// ScanInput is one market-scan candidate with its aggregated windows.
type ScanInput struct {
	Candidate domain.Candidate
	Windows   map[int]domain.AggregatedWindow
}

// HoldingInput is one held item with its live quote and aggregated windows.
type HoldingInput struct {
	Holding domain.HoldingEntry
	Item    domain.Item
	Quote   domain.Quote
	Windows map[int]domain.AggregatedWindow
}

// Undervaluation is the percent discount of the current sell price against a
// window mean. Defined as 0 when the mean is not positive.
func Undervaluation(mean float64, currentSell int) float64 {
	if mean <= 0 {
		return 0
	}
	return (mean - float64(currentSell)) / mean * 100
}

// SpreadProfitable reports whether flipping at the top of the buy book,
// after the marketplace levy, clears the configured fraction of the window
// mean. False when the mean is not positive.
func SpreadProfitable(mean float64, currentSell, currentBuy int, feeRate, threshold float64) bool {
	if mean <= 0 {
		return false
	}
	net := float64(currentBuy)*(1-feeRate) - float64(currentSell)
	return net > mean*threshold
}

// EstimateProfit measures a cost basis against one reference sell price,
// after fees. Ratio is 0 when the cost basis is not positive.
func EstimateProfit(referencePrice float64, costBasis int, feeRate float64) domain.ProfitEstimate {
	net := referencePrice*(1-feeRate) - float64(costBasis)
	est := domain.ProfitEstimate{
		ReferencePrice: referencePrice,
		NetProfit:      net,
		Profitable:     net > 0,
	}
	if costBasis > 0 {
		est.ProfitRatio = net / float64(costBasis) * 100
	}
	return est
}

// MarketScan scores candidates and orders them primarily by spread
// profitability in the primary window, then by undervaluation in the same
// window, both descending. The sort is stable: ties keep input order, so
// identical inputs always produce identical output.
//
// Candidates lacking either side of the quote are excluded, never scored
// with a placeholder.
func MarketScan(inputs []ScanInput, cfg Config) []domain.ScoredResult {
	results := make([]domain.ScoredResult, 0, len(inputs))
	for _, in := range inputs {
		if !in.Candidate.Quote.Complete() {
			continue
		}
		results = append(results, score(in.Candidate.Item, in.Candidate.Quote, in.Windows, cfg))
	}

	primary := cfg.PrimaryWindow()
	sort.SliceStable(results, func(i, j int) bool {
		pi, pj := results[i].SpreadProfitable[primary], results[j].SpreadProfitable[primary]
		if pi != pj {
			return pi
		}
		return results[i].Undervaluation[primary] > results[j].Undervaluation[primary]
	})
	return results
}

// Holdings scores held items against their cost basis and orders them by
// profit ratio at the current price, descending, stable. Entries whose
// current-price estimate is unavailable sort last.
func Holdings(inputs []HoldingInput, cfg Config) []domain.ScoredResult {
	results := make([]domain.ScoredResult, 0, len(inputs))
	for _, in := range inputs {
		if !in.Quote.Complete() {
			continue
		}
		r := score(in.Item, in.Quote, in.Windows, cfg)

		holding := in.Holding
		r.Holding = &holding

		current := EstimateProfit(float64(*in.Quote.LowestSellPrice), holding.CostBasisPrice, cfg.FeeRate)
		r.ProfitByCurrent = &current

		r.ProfitByWindow = make(map[int]domain.ProfitEstimate, len(cfg.Windows))
		for _, w := range cfg.Windows {
			agg, ok := in.Windows[w]
			if !ok {
				continue
			}
			r.ProfitByWindow[w] = EstimateProfit(agg.MeanOfAverage, holding.CostBasisPrice, cfg.FeeRate)
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		ri, iOK := currentRatio(results[i])
		rj, jOK := currentRatio(results[j])
		if iOK != jOK {
			return iOK // present ratios before missing ones
		}
		if !iOK {
			return false
		}
		return ri > rj
	})
	return results
}

func currentRatio(r domain.ScoredResult) (float64, bool) {
	if r.ProfitByCurrent == nil {
		return 0, false
	}
	return r.ProfitByCurrent.ProfitRatio, true
}

// score computes the window-relative metrics shared by both modes.
// The quote must be complete.
func score(item domain.Item, quote domain.Quote, windows map[int]domain.AggregatedWindow, cfg Config) domain.ScoredResult {
	sell := *quote.LowestSellPrice
	buy := *quote.HighestBuyPrice

	r := domain.ScoredResult{
		Item:             item,
		Quote:            quote,
		Spread:           buy - sell,
		Undervaluation:   make(map[int]float64, len(cfg.Windows)),
		SpreadProfitable: make(map[int]bool, len(cfg.Windows)),
	}
	for _, w := range cfg.Windows {
		agg, ok := windows[w]
		if !ok {
			continue
		}
		r.Windows = append(r.Windows, agg)
		r.Undervaluation[w] = Undervaluation(agg.MeanOfAverage, sell)
		r.SpreadProfitable[w] = SpreadProfitable(agg.MeanOfAverage, sell, buy, cfg.FeeRate, cfg.SpreadProfitThreshold)
	}
	return r
}
