package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders a report's ranked results as CSV string. Columns for
// window metrics follow the report's window order.
func RenderCSV(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("rank,item_id,name,lowest_sell,highest_buy,spread")
	for _, w := range r.Windows {
		sb.WriteString(fmt.Sprintf(",undervaluation_%dd,spread_profitable_%dd", w, w))
	}
	if r.Mode == ModeHoldings {
		sb.WriteString(",cost_basis,net_profit,profit_ratio")
	}
	sb.WriteString("\n")

	// Rows
	for i, res := range r.Results {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%s,%s,%d",
			i+1,
			res.Item.ItemID,
			csvEscape(res.Item.Name),
			formatPrice(res.Quote.LowestSellPrice),
			formatPrice(res.Quote.HighestBuyPrice),
			res.Spread,
		))
		for _, w := range r.Windows {
			sb.WriteString(fmt.Sprintf(",%.4f,%t", res.Undervaluation[w], res.SpreadProfitable[w]))
		}
		if r.Mode == ModeHoldings {
			if res.Holding != nil && res.ProfitByCurrent != nil {
				sb.WriteString(fmt.Sprintf(",%d,%.4f,%.4f",
					res.Holding.CostBasisPrice,
					res.ProfitByCurrent.NetProfit,
					res.ProfitByCurrent.ProfitRatio))
			} else {
				sb.WriteString(",,,")
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
