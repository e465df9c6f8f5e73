// Package ledger reconstructs current holdings from the raw trade log.
package ledger

import (
	"sort"

	"siege-market-lab/internal/domain"
)

// Reconstruct folds the trade log into the currently-open positions.
//
// Only events with state Succeeded participate; everything else (cancelled,
// expired, failed, pending) is discarded before folding. Events are sorted
// by LastModifiedAt ascending first, since replaying Buy/Sell out of order
// corrupts the cost basis. The sort is stable so equal timestamps keep
// retrieval order.
//
// Fold rules, per item:
//   - Buy sets or overwrites the entry with the event's price and timestamp.
//     A Buy directly after another Buy overwrites the prior entry; the log
//     is treated as a single-slot model, not per-lot. A Buy whose payment
//     price is missing is dropped as a data-quality gap.
//   - Sell deletes the entry. A Sell with no open entry is a no-op, which
//     tolerates a partial log.
func Reconstruct(events []domain.TradeEvent) map[string]domain.HoldingEntry {
	succeeded := make([]domain.TradeEvent, 0, len(events))
	for _, e := range events {
		if e.State == domain.StateSucceeded {
			succeeded = append(succeeded, e)
		}
	}

	sort.SliceStable(succeeded, func(i, j int) bool {
		return succeeded[i].LastModifiedAt.Before(succeeded[j].LastModifiedAt)
	})

	holdings := make(map[string]domain.HoldingEntry)
	for _, e := range succeeded {
		switch e.Category {
		case domain.CategoryBuy:
			if e.Price == nil {
				continue
			}
			holdings[e.ItemID] = domain.HoldingEntry{
				ItemID:         e.ItemID,
				Name:           e.Name,
				AssetURL:       e.AssetURL,
				CostBasisPrice: *e.Price,
				AcquiredAt:     e.LastModifiedAt,
			}
		case domain.CategorySell:
			delete(holdings, e.ItemID)
		}
	}
	return holdings
}
