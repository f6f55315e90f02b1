// Package insight implements the efficiency-scoring model behind algorithmic
// alerts: a 0-100 weighted score over aggregate performance plus a set of
// heuristic findings with fixed suggestions.
package insight

import (
	"fmt"

	"adalert/internal/domain"
)

// Score weighting and reference points. ROAS is "perfect" at 5x, conversion
// rate at 5%, CTR at 2%; CPC is inverted around a $10 "bad" reference.
const (
	roasReference     = 5.0
	roasWeight        = 40.0
	convRateReference = 5.0
	convRateWeight    = 30.0
	ctrReference      = 2.0
	ctrWeight         = 20.0
	cpcBadReference   = 10.0
	cpcWeight         = 10.0
)

// Summary is the aggregate input of the scoring model.
// Params: grand totals plus derived ROAS/CPC.
// Returns: one scoring unit per evaluation call.
type Summary struct {
	Spend       float64
	Revenue     float64
	Clicks      float64
	Conversions float64
	Impressions float64
	Roas        float64
	Cpc         float64
}

// Summarize folds one normalized batch into a scoring summary.
// Params: normalized metric batch.
// Returns: grand totals with zero-guarded derived ratios.
func Summarize(metrics []domain.NormalizedAdMetric) Summary {
	var summary Summary
	for _, metric := range metrics {
		summary.Spend += metric.Spend
		summary.Revenue += metric.Revenue
		summary.Clicks += metric.Clicks
		summary.Conversions += metric.Conversions
		summary.Impressions += metric.Impressions
	}
	summary.Roas = domain.SafeRatio(summary.Revenue, summary.Spend)
	summary.Cpc = domain.SafeRatio(summary.Spend, summary.Clicks)
	return summary
}

// ConversionRatePercent derives the summary conversion rate.
// Params: none.
// Returns: conversions/clicks as a percentage, 0 when clicks is 0.
func (s Summary) ConversionRatePercent() float64 {
	return domain.SafeRatio(s.Conversions, s.Clicks) * 100
}

// CtrPercent derives the summary click-through rate.
// Params: none.
// Returns: clicks/impressions as a percentage, 0 when impressions is 0.
func (s Summary) CtrPercent() float64 {
	return domain.SafeRatio(s.Clicks, s.Impressions) * 100
}

// CPA derives the summary cost per acquisition.
// Params: none.
// Returns: spend/conversions, 0 when conversions is 0.
func (s Summary) CPA() float64 {
	return domain.SafeRatio(s.Spend, s.Conversions)
}

// Score computes the 0-100 efficiency score from four weighted components.
// Params: aggregate summary.
// Returns: capped weighted sum of ROAS, conversion-rate, CTR, and CPC parts.
func Score(summary Summary) float64 {
	score := capRatio(summary.Roas, roasReference) * roasWeight
	score += capRatio(summary.ConversionRatePercent(), convRateReference) * convRateWeight
	score += capRatio(summary.CtrPercent(), ctrReference) * ctrWeight
	score += (1 - capRatio(summary.Cpc, cpcBadReference)) * cpcWeight
	return score
}

// capRatio normalizes value against a reference into [0,1].
// Params: value and positive reference point.
// Returns: value/reference clamped to 1.
func capRatio(value, reference float64) float64 {
	if value >= reference {
		return 1
	}
	if value <= 0 {
		return 0
	}
	return value / reference
}

// Insights runs the heuristic rules against one summary.
// Params: aggregate summary.
// Returns: findings in fixed rule order, each with a fixed suggestion.
func Insights(summary Summary) []domain.Insight {
	out := make([]domain.Insight, 0, 6)
	convRate := summary.ConversionRatePercent()

	if summary.Roas > 4 {
		out = append(out, domain.Insight{
			Type:       "efficiency",
			Level:      "success",
			Title:      "Strong return on ad spend",
			Message:    fmt.Sprintf("ROAS of %.2f is well above the 4.0 success mark", summary.Roas),
			Suggestion: "Scale budget on the current campaign mix while ROAS holds above 4.",
			Score:      summary.Roas,
		})
	}
	if summary.Roas < 1.5 && summary.Spend > 100 {
		out = append(out, domain.Insight{
			Type:       "efficiency",
			Level:      "critical",
			Title:      "Spend outpacing returns",
			Message:    fmt.Sprintf("ROAS of %.2f with %.2f spend is below the 1.5 viability line", summary.Roas, summary.Spend),
			Suggestion: "Pause the weakest ad sets and reallocate budget to campaigns with ROAS above 2.",
			Score:      summary.Roas,
		})
	}
	if summary.Cpc > 5 && convRate < 1 {
		out = append(out, domain.Insight{
			Type:       "creative",
			Level:      "warning",
			Title:      "Expensive clicks without conversions",
			Message:    fmt.Sprintf("CPC of %.2f with a %.2f%% conversion rate points at weak creative targeting", summary.Cpc, convRate),
			Suggestion: "Refresh ad creative and tighten keyword match to cut wasted clicks.",
			Score:      summary.Cpc,
		})
	}
	if summary.Clicks > 500 && convRate < 0.5 {
		out = append(out, domain.Insight{
			Type:       "audience",
			Level:      "warning",
			Title:      "Landing page friction",
			Message:    fmt.Sprintf("%.0f clicks converted at only %.2f%%", summary.Clicks, convRate),
			Suggestion: "Audit the landing page funnel; traffic volume is healthy but conversion is not.",
			Score:      convRate,
		})
	}
	if cpa := summary.CPA(); cpa > 50 && summary.Roas < 2 {
		out = append(out, domain.Insight{
			Type:       "budget",
			Level:      "info",
			Title:      "High acquisition cost",
			Message:    fmt.Sprintf("CPA of %.2f with ROAS %.2f leaves thin margins", cpa, summary.Roas),
			Suggestion: "Review bid strategy and audience overlap to bring CPA under 50.",
			Score:      cpa,
		})
	}
	if score := Score(summary); score < 40 && summary.Spend > 200 {
		out = append(out, domain.Insight{
			Type:       "efficiency",
			Level:      "critical",
			Title:      "Systemic efficiency problem",
			Message:    fmt.Sprintf("Overall efficiency score %.0f/100 across %.2f spend", score, summary.Spend),
			Suggestion: "Rebuild the account structure starting from the best-performing campaign.",
			Score:      score,
		})
	}
	return out
}
