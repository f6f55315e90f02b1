// Package formula implements the stateless numeric core of the analytics
// engine: weighted averages, trailing-window series, growth deltas,
// cross-platform benchmarks, KPI computation, and the restricted evaluator
// for user-authored formulas. Every function is referentially transparent.
package formula

import (
	"sort"

	"adalert/internal/domain"
)

// FieldValue reads one named metric field from a normalized record.
// Params: metric record and supported field name.
// Returns: field value, or 0 for unknown field names.
func FieldValue(metric domain.NormalizedAdMetric, field string) float64 {
	switch field {
	case "impressions":
		return metric.Impressions
	case "clicks":
		return metric.Clicks
	case "spend":
		return metric.Spend
	case "conversions":
		return metric.Conversions
	case "revenue":
		return metric.Revenue
	case "ctr":
		return metric.CTR
	case "cpc":
		return metric.CPC
	case "roas":
		return metric.ROAS
	}
	return 0
}

// WeightedRoas computes aggregate return on ad spend.
// Params: normalized metric batch.
// Returns: sum(revenue)/sum(spend), or 0 when total spend is 0 or batch is empty.
func WeightedRoas(metrics []domain.NormalizedAdMetric) float64 {
	var spend, revenue float64
	for _, metric := range metrics {
		spend += metric.Spend
		revenue += metric.Revenue
	}
	return domain.SafeRatio(revenue, spend)
}

// WeightedAverage computes the spend-weighted mean of one metric field.
// Params: normalized metric batch and field name.
// Returns: sum(field*spend)/sum(spend), or 0 when total spend is 0.
func WeightedAverage(metrics []domain.NormalizedAdMetric, field string) float64 {
	var spend, weighted float64
	for _, metric := range metrics {
		spend += metric.Spend
		weighted += FieldValue(metric, field) * metric.Spend
	}
	return domain.SafeRatio(weighted, spend)
}

// dailySum is one per-date aggregate used by the windowed series.
type dailySum struct {
	date    string
	value   float64
	spend   float64
	revenue float64
}

// groupByDate sums one field per calendar date and sorts dates ascending.
// Params: metric batch and field name.
// Returns: ascending per-date sums including spend/revenue companions.
func groupByDate(metrics []domain.NormalizedAdMetric, field string) []dailySum {
	byDate := make(map[string]*dailySum)
	for _, metric := range metrics {
		entry, ok := byDate[metric.Date]
		if !ok {
			entry = &dailySum{date: metric.Date}
			byDate[metric.Date] = entry
		}
		entry.value += FieldValue(metric, field)
		entry.spend += metric.Spend
		entry.revenue += metric.Revenue
	}

	out := make([]dailySum, 0, len(byDate))
	for _, entry := range byDate {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].date < out[j].date })
	return out
}

// MovingAverage computes a trailing-window mean series for one field.
// Params: metric batch, field name, and window length in distinct dates.
// Returns: one point per distinct date, window clipped at series start.
func MovingAverage(metrics []domain.NormalizedAdMetric, field string, windowDays int) []domain.MovingAveragePoint {
	if windowDays < 1 {
		windowDays = 1
	}
	days := groupByDate(metrics, field)
	points := make([]domain.MovingAveragePoint, 0, len(days))
	for i, day := range days {
		start := i - windowDays + 1
		if start < 0 {
			start = 0
		}
		var sum float64
		for _, windowDay := range days[start : i+1] {
			sum += windowDay.value
		}
		points = append(points, domain.MovingAveragePoint{
			Date:     day.date,
			Value:    sum / float64(i+1-start),
			RawValue: day.value,
		})
	}
	return points
}

// RoasMovingAverage computes a trailing-window ROAS series from window totals
// rather than averaging per-day ROAS values, so near-zero-spend days do not
// distort the series.
// Params: metric batch and window length in distinct dates.
// Returns: one point per distinct date; window ROAS is 0 on zero window spend.
func RoasMovingAverage(metrics []domain.NormalizedAdMetric, windowDays int) []domain.MovingAveragePoint {
	if windowDays < 1 {
		windowDays = 1
	}
	days := groupByDate(metrics, "spend")
	points := make([]domain.MovingAveragePoint, 0, len(days))
	for i, day := range days {
		start := i - windowDays + 1
		if start < 0 {
			start = 0
		}
		var spend, revenue float64
		for _, windowDay := range days[start : i+1] {
			spend += windowDay.spend
			revenue += windowDay.revenue
		}
		points = append(points, domain.MovingAveragePoint{
			Date:     day.date,
			Value:    domain.SafeRatio(revenue, spend),
			RawValue: domain.SafeRatio(day.revenue, day.spend),
		})
	}
	return points
}

// windowTotals sums spend/conversions/revenue over one inclusive date range.
// Params: metric batch and range bounds as date strings.
// Returns: per-field totals with windowed ROAS from range totals.
func windowTotals(metrics []domain.NormalizedAdMetric, from, to string) map[string]float64 {
	var spend, conversions, revenue float64
	for _, metric := range metrics {
		if metric.Date < from || metric.Date > to {
			continue
		}
		spend += metric.Spend
		conversions += metric.Conversions
		revenue += metric.Revenue
	}
	return map[string]float64{
		"spend":       spend,
		"conversions": conversions,
		"revenue":     revenue,
		"roas":        domain.SafeRatio(revenue, spend),
	}
}

// growthRate computes one percentage delta under the new-activity convention.
// Params: current and previous period values.
// Returns: (current-previous)/previous*100; nil when both are 0; +100 when
// previous is 0 and current is positive.
func growthRate(current, previous float64) *float64 {
	if previous == 0 {
		if current == 0 {
			return nil
		}
		rate := 100.0
		return &rate
	}
	rate := (current - previous) / previous * 100
	return &rate
}

// GrowthRates computes week-over-week and month-over-month deltas anchored on
// the maximum date present in the batch.
// Params: normalized metric batch.
// Returns: growth block; all-nil structure for an empty batch.
func GrowthRates(metrics []domain.NormalizedAdMetric) domain.GrowthRates {
	if len(metrics) == 0 {
		return domain.GrowthRates{}
	}

	anchor := metrics[0].Day()
	for _, metric := range metrics[1:] {
		if day := metric.Day(); day.After(anchor) {
			anchor = day
		}
	}

	rateSet := func(windowDays int) domain.GrowthRateSet {
		currentFrom := anchor.AddDate(0, 0, -(windowDays - 1))
		previousFrom := currentFrom.AddDate(0, 0, -windowDays)
		previousTo := currentFrom.AddDate(0, 0, -1)

		current := windowTotals(metrics, currentFrom.Format(domain.DateLayout), anchor.Format(domain.DateLayout))
		previous := windowTotals(metrics, previousFrom.Format(domain.DateLayout), previousTo.Format(domain.DateLayout))
		return domain.GrowthRateSet{
			Spend:       growthRate(current["spend"], previous["spend"]),
			Conversions: growthRate(current["conversions"], previous["conversions"]),
			Revenue:     growthRate(current["revenue"], previous["revenue"]),
			Roas:        growthRate(current["roas"], previous["roas"]),
		}
	}

	return domain.GrowthRates{
		WeekOverWeek:   rateSet(7),
		MonthOverMonth: rateSet(30),
	}
}

// providerTotals is one per-provider accumulator for benchmark ratios.
type providerTotals struct {
	spend       float64
	revenue     float64
	clicks      float64
	impressions float64
	conversions float64
}

// ratios derives the four benchmark ratios from accumulated totals.
// Params: none.
// Returns: roas/cpa/ctr/cpc with zero-denominator guards.
func (t providerTotals) ratios() (roas, cpa, ctr, cpc float64) {
	roas = domain.SafeRatio(t.revenue, t.spend)
	cpa = domain.SafeRatio(t.spend, t.conversions)
	ctr = domain.SafeRatio(t.clicks, t.impressions)
	cpc = domain.SafeRatio(t.spend, t.clicks)
	return roas, cpa, ctr, cpc
}

// deviationPercent reports percentage deviation from the blended value.
// Params: provider value and blended baseline.
// Returns: (value-blended)/blended*100, or 0 when blended is 0.
func deviationPercent(value, blended float64) float64 {
	if blended == 0 {
		return 0
	}
	return (value - blended) / blended * 100
}

// CrossPlatformBenchmarks compares each provider against the blended average.
// Params: normalized metric batch.
// Returns: one row per provider sorted by provider ID; empty slice for empty input.
func CrossPlatformBenchmarks(metrics []domain.NormalizedAdMetric) []domain.ProviderBenchmark {
	if len(metrics) == 0 {
		return []domain.ProviderBenchmark{}
	}

	var blended providerTotals
	byProvider := make(map[string]*providerTotals)
	for _, metric := range metrics {
		totals, ok := byProvider[metric.ProviderID]
		if !ok {
			totals = &providerTotals{}
			byProvider[metric.ProviderID] = totals
		}
		for _, target := range []*providerTotals{totals, &blended} {
			target.spend += metric.Spend
			target.revenue += metric.Revenue
			target.clicks += metric.Clicks
			target.impressions += metric.Impressions
			target.conversions += metric.Conversions
		}
	}

	blendedRoas, blendedCpa, blendedCtr, blendedCpc := blended.ratios()
	providers := make([]string, 0, len(byProvider))
	for providerID := range byProvider {
		providers = append(providers, providerID)
	}
	sort.Strings(providers)

	out := make([]domain.ProviderBenchmark, 0, len(providers))
	for _, providerID := range providers {
		roas, cpa, ctr, cpc := byProvider[providerID].ratios()
		out = append(out, domain.ProviderBenchmark{
			ProviderID:    providerID,
			Roas:          roas,
			Cpa:           cpa,
			Ctr:           ctr,
			Cpc:           cpc,
			RoasVsBlended: deviationPercent(roas, blendedRoas),
			CpaVsBlended:  deviationPercent(cpa, blendedCpa),
			CtrVsBlended:  deviationPercent(ctr, blendedCtr),
			CpcVsBlended:  deviationPercent(cpc, blendedCpc),
		})
	}
	return out
}

// DefaultTimeDecayFactor is the fallback recency discount for the timeDecay
// attribution model when configuration does not override it.
const DefaultTimeDecayFactor = 0.85

// KpiConfig tunes optional KPI computation inputs.
// Params: optional lifetime value, attribution model, and decay override.
// Returns: configuration consumed by CustomKPIs.
type KpiConfig struct {
	AverageLifetimeValue *float64
	AttributionModel     string
	TimeDecayFactor      float64
}

// CustomKPIs computes KPI values from batch grand totals.
// Params: normalized metric batch and optional config (nil for defaults).
// Returns: KPI block; every ratio is 0 on a zero denominator.
func CustomKPIs(metrics []domain.NormalizedAdMetric, config *KpiConfig) domain.CustomKpis {
	var spend, revenue, conversions, clicks float64
	for _, metric := range metrics {
		spend += metric.Spend
		revenue += metric.Revenue
		conversions += metric.Conversions
		clicks += metric.Clicks
	}

	profit := revenue - spend
	kpis := domain.CustomKpis{
		Cpa:          domain.SafeRatio(spend, conversions),
		Roi:          domain.SafeRatio(revenue-spend, spend) * 100,
		Mer:          domain.SafeRatio(revenue, spend),
		Aov:          domain.SafeRatio(revenue, conversions),
		Rpc:          domain.SafeRatio(revenue, clicks),
		Profit:       profit,
		ProfitMargin: domain.SafeRatio(profit, revenue) * 100,
	}
	if config == nil {
		return kpis
	}

	kpis.Ltv = config.AverageLifetimeValue
	if config.AttributionModel != "" {
		adjusted := adjustConversions(conversions, config.AttributionModel, config.TimeDecayFactor)
		kpis.AdjustedConversions = &adjusted
	}
	return kpis
}

// adjustConversions applies the configured attribution model to total
// conversions. Aggregated daily data carries no click paths, so single-touch
// and linear models pass the total through unchanged.
// Params: total conversions, model name, and decay factor (0 uses default).
// Returns: attribution-adjusted conversion total.
func adjustConversions(conversions float64, model string, decayFactor float64) float64 {
	switch model {
	case "timeDecay":
		if decayFactor <= 0 || decayFactor > 1 {
			decayFactor = DefaultTimeDecayFactor
		}
		return conversions * decayFactor
	default:
		// lastClick, firstClick, linear
		return conversions
	}
}
