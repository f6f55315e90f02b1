// Package derived orchestrates the formula engine into one consolidated
// metrics snapshot per invocation.
package derived

import (
	"time"

	"adalert/internal/domain"
	"adalert/internal/formula"
)

const (
	weekWindowDays  = 7
	monthWindowDays = 30
)

// Calculate produces the full derived-metrics snapshot.
// Params: normalized metric batch, optional KPI config, and snapshot time.
// Returns: weighted ROAS, 7/30-day series, growth deltas, benchmarks, KPIs.
func Calculate(metrics []domain.NormalizedAdMetric, kpiConfig *formula.KpiConfig, now time.Time) domain.DerivedMetricsResult {
	return domain.DerivedMetricsResult{
		WeightedRoas: formula.WeightedRoas(metrics),
		MovingAverages: domain.MovingAverages{
			Spend7d:        formula.MovingAverage(metrics, "spend", weekWindowDays),
			Spend30d:       formula.MovingAverage(metrics, "spend", monthWindowDays),
			Conversions7d:  formula.MovingAverage(metrics, "conversions", weekWindowDays),
			Conversions30d: formula.MovingAverage(metrics, "conversions", monthWindowDays),
			Revenue7d:      formula.MovingAverage(metrics, "revenue", weekWindowDays),
			Revenue30d:     formula.MovingAverage(metrics, "revenue", monthWindowDays),
			Roas7d:         formula.RoasMovingAverage(metrics, weekWindowDays),
			Roas30d:        formula.RoasMovingAverage(metrics, monthWindowDays),
		},
		GrowthRates:  formula.GrowthRates(metrics),
		Benchmarks:   formula.CrossPlatformBenchmarks(metrics),
		Kpis:         formula.CustomKPIs(metrics, kpiConfig),
		CalculatedAt: now,
	}
}

// CalculateLight produces the lightweight snapshot variant: weighted ROAS,
// 7-day series, and KPIs only. Growth rates and benchmarks are skipped so
// frequent dashboard refreshes stay cheap on large batches.
// Params: normalized metric batch, optional KPI config, and snapshot time.
// Returns: partial snapshot with empty growth/benchmark blocks.
func CalculateLight(metrics []domain.NormalizedAdMetric, kpiConfig *formula.KpiConfig, now time.Time) domain.DerivedMetricsResult {
	return domain.DerivedMetricsResult{
		WeightedRoas: formula.WeightedRoas(metrics),
		MovingAverages: domain.MovingAverages{
			Spend7d:       formula.MovingAverage(metrics, "spend", weekWindowDays),
			Conversions7d: formula.MovingAverage(metrics, "conversions", weekWindowDays),
			Revenue7d:     formula.MovingAverage(metrics, "revenue", weekWindowDays),
			Roas7d:        formula.RoasMovingAverage(metrics, weekWindowDays),
		},
		Benchmarks:   []domain.ProviderBenchmark{},
		Kpis:         formula.CustomKPIs(metrics, kpiConfig),
		CalculatedAt: now,
	}
}
