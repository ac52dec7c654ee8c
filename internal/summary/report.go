package summary

import (
	"fmt"
	"math"
	"strings"
)

// RenderMarkdown produces a single-trader execution report, trimmed
// from teacher internal/report/report.go's renderMarkdown (no
// fast-vs-slow comparison table, no fairness explanation — one
// trader's own numbers).
func (s *Summary) RenderMarkdown() string {
	var sb strings.Builder

	sb.WriteString("# Run Execution Summary\n\n")

	sb.WriteString("## Orders\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Orders Sent | %d |\n", s.OrdersSent))
	sb.WriteString(fmt.Sprintf("| Limit Orders | %d |\n", s.LimitOrders))
	sb.WriteString(fmt.Sprintf("| Market Orders | %d |\n", s.MarketOrders))
	sb.WriteString(fmt.Sprintf("| Cancels Sent | %d |\n", s.CancelsSent))
	sb.WriteString(fmt.Sprintf("| Canceled Before Fill | %d |\n\n", s.CanceledBeforeFill))

	sb.WriteString("## Fills\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Fills | %d |\n", s.TotalFills))
	sb.WriteString(fmt.Sprintf("| Total Qty Filled | %d |\n", s.TotalQtyFilled))
	sb.WriteString(fmt.Sprintf("| Fill Rate | %.2f%% |\n", s.FillRate*100))
	sb.WriteString(fmt.Sprintf("| Avg Time-to-Fill (ms) | %.4f |\n", s.AvgTimeToFillMs))
	sb.WriteString(fmt.Sprintf("| Avg Queue Position at Placement | %.2f |\n\n", s.AvgQueuePosPlace))

	sb.WriteString("## Time-to-Fill Distribution (ms)\n\n")
	sb.WriteString("| Percentile | Value |\n")
	sb.WriteString("|------------|-------|\n")
	for _, p := range []float64{0.25, 0.50, 0.75, 0.90, 0.99} {
		v := percentile(s.TimeToFillDist, p)
		sb.WriteString(fmt.Sprintf("| P%.0f | %.4f |\n", p*100, v))
	}

	return sb.String()
}

// percentile linearly interpolates the p-th percentile of a
// pre-sorted slice, identical to teacher internal/report/report.go's helper.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
