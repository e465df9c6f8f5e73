package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	switch r.Mode {
	case ModeHoldings:
		sb.WriteString("# Holdings Report\n\n")
	default:
		sb.WriteString("# Market Scan Report\n\n")
	}
	sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Items: %d requested | %d resolved | %d failed\n\n",
		r.Summary.ItemsRequested, r.Summary.ItemsResolved, r.Summary.ItemsFailed))

	if len(r.Results) == 0 {
		sb.WriteString("No scored items.\n")
		return sb.String()
	}

	if r.Mode == ModeHoldings {
		renderHoldingsTable(&sb, r)
	} else {
		renderScanTable(&sb, r)
	}
	return sb.String()
}

func renderScanTable(sb *strings.Builder, r *Report) {
	sb.WriteString("## Ranked Candidates\n\n")
	sb.WriteString("| # | Item | Sell | Buy | Spread |")
	for _, w := range r.Windows {
		sb.WriteString(fmt.Sprintf(" Underval %dd | Flip %dd |", w, w))
	}
	sb.WriteString("\n|---|------|------|-----|--------|")
	for range r.Windows {
		sb.WriteString("-------------|---------|")
	}
	sb.WriteString("\n")

	for i, res := range r.Results {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %d |",
			i+1, res.Item.Name,
			formatPrice(res.Quote.LowestSellPrice),
			formatPrice(res.Quote.HighestBuyPrice),
			res.Spread))
		for _, w := range r.Windows {
			sb.WriteString(fmt.Sprintf(" %.1f%% | %s |", res.Undervaluation[w], formatFlag(res.SpreadProfitable[w])))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func renderHoldingsTable(sb *strings.Builder, r *Report) {
	sb.WriteString("## Holdings\n\n")
	sb.WriteString("| # | Item | Cost | Sell Now | Net Profit | Profit % |\n")
	sb.WriteString("|---|------|------|----------|------------|----------|\n")

	for i, res := range r.Results {
		cost := "-"
		if res.Holding != nil {
			cost = fmt.Sprintf("%d", res.Holding.CostBasisPrice)
		}
		net, ratio := "-", "-"
		if res.ProfitByCurrent != nil {
			net = fmt.Sprintf("%.1f", res.ProfitByCurrent.NetProfit)
			ratio = fmt.Sprintf("%.1f%%", res.ProfitByCurrent.ProfitRatio)
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s |\n",
			i+1, res.Item.Name, cost,
			formatPrice(res.Quote.LowestSellPrice), net, ratio))
	}
	sb.WriteString("\n")
}

func formatPrice(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}

func formatFlag(v bool) string {
	if v {
		return "YES"
	}
	return "no"
}
