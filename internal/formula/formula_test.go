package formula

import (
	"math"
	"testing"

	"adalert/internal/domain"
)

func metric(providerID, date string, spend, revenue float64) domain.NormalizedAdMetric {
	return domain.NormalizedAdMetric{
		ProviderID: providerID,
		AdID:       "ad-1",
		Date:       date,
		Spend:      spend,
		Revenue:    revenue,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestWeightedRoasFromTotals(t *testing.T) {
	t.Parallel()

	metrics := []domain.NormalizedAdMetric{
		metric("google", "2026-01-01", 100, 300),
		metric("meta", "2026-01-01", 150, 550),
	}
	if got := WeightedRoas(metrics); !almostEqual(got, 3.4) {
		t.Fatalf("expected weighted roas 3.4, got %v", got)
	}
}

func TestWeightedRoasZeroSpendAndEmpty(t *testing.T) {
	t.Parallel()

	if got := WeightedRoas(nil); got != 0 {
		t.Fatalf("expected 0 for empty batch, got %v", got)
	}
	metrics := []domain.NormalizedAdMetric{metric("google", "2026-01-01", 0, 500)}
	if got := WeightedRoas(metrics); got != 0 {
		t.Fatalf("expected 0 for zero total spend, got %v", got)
	}
}

func TestWeightedAverageUsesSpendWeights(t *testing.T) {
	t.Parallel()

	metrics := []domain.NormalizedAdMetric{
		{ProviderID: "google", Date: "2026-01-01", Spend: 100, CTR: 0.02},
		{ProviderID: "google", Date: "2026-01-01", Spend: 300, CTR: 0.04},
	}
	// (0.02*100 + 0.04*300) / 400 = 0.035
	if got := WeightedAverage(metrics, "ctr"); !almostEqual(got, 0.035) {
		t.Fatalf("expected 0.035, got %v", got)
	}
}

func TestMovingAverageLengthAndWindowClip(t *testing.T) {
	t.Parallel()

	metrics := []domain.NormalizedAdMetric{
		metric("google", "2026-01-03", 30, 0),
		metric("google", "2026-01-01", 10, 0),
		metric("google", "2026-01-02", 20, 0),
		metric("google", "2026-01-02", 5, 0),
	}
	points := MovingAverage(metrics, "spend", 2)
	if len(points) != 3 {
		t.Fatalf("expected one point per distinct date, got %d", len(points))
	}
	if points[0].Date != "2026-01-01" || points[2].Date != "2026-01-03" {
		t.Fatalf("expected ascending dates, got %+v", points)
	}
	if !almostEqual(points[0].Value, 10) {
		t.Fatalf("expected clipped first window mean 10, got %v", points[0].Value)
	}
	if !almostEqual(points[1].Value, 17.5) || !almostEqual(points[1].RawValue, 25) {
		t.Fatalf("expected mean 17.5 raw 25 for day two, got %+v", points[1])
	}
	if !almostEqual(points[2].Value, 27.5) {
		t.Fatalf("expected mean 27.5 for day three, got %v", points[2].Value)
	}
}

func TestRoasMovingAverageFromWindowTotals(t *testing.T) {
	t.Parallel()

	metrics := []domain.NormalizedAdMetric{
		metric("google", "2026-01-01", 100, 100),
		metric("google", "2026-01-02", 100, 300),
	}
	points := RoasMovingAverage(metrics, 7)
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	// Window totals: 400 revenue over 200 spend, not mean of daily 1.0 and 3.0.
	if !almostEqual(points[1].Value, 2) {
		t.Fatalf("expected window roas 2, got %v", points[1].Value)
	}
	if !almostEqual(points[1].RawValue, 3) {
		t.Fatalf("expected daily roas 3, got %v", points[1].RawValue)
	}
}

func TestGrowthRatesEmptyBatch(t *testing.T) {
	t.Parallel()

	rates := GrowthRates(nil)
	if rates.WeekOverWeek.Spend != nil || rates.MonthOverMonth.Revenue != nil {
		t.Fatalf("expected all-nil rates for empty batch, got %+v", rates)
	}
}

func TestGrowthRatesWeekOverWeek(t *testing.T) {
	t.Parallel()

	metrics := []domain.NormalizedAdMetric{
		metric("google", "2026-01-08", 150, 0),
		metric("google", "2026-01-14", 150, 0),
		metric("google", "2026-01-01", 100, 0),
		metric("google", "2026-01-07", 100, 0),
	}
	rates := GrowthRates(metrics)
	if rates.WeekOverWeek.Spend == nil {
		t.Fatal("expected week-over-week spend rate")
	}
	// Current window 2026-01-08..14 = 300, previous 2026-01-01..07 = 200.
	if !almostEqual(*rates.WeekOverWeek.Spend, 50) {
		t.Fatalf("expected 50%% growth, got %v", *rates.WeekOverWeek.Spend)
	}
}

func TestGrowthRateNewActivityConvention(t *testing.T) {
	t.Parallel()

	if got := growthRate(0, 0); got != nil {
		t.Fatalf("expected nil for no activity, got %v", *got)
	}
	got := growthRate(40, 0)
	if got == nil || *got != 100 {
		t.Fatalf("expected +100 for new activity, got %v", got)
	}
	down := growthRate(50, 100)
	if down == nil || !almostEqual(*down, -50) {
		t.Fatalf("expected -50, got %v", down)
	}
}

func TestCrossPlatformBenchmarks(t *testing.T) {
	t.Parallel()

	if got := CrossPlatformBenchmarks(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", got)
	}

	metrics := []domain.NormalizedAdMetric{
		metric("meta", "2026-01-01", 100, 100),
		metric("google", "2026-01-01", 100, 300),
	}
	rows := CrossPlatformBenchmarks(metrics)
	if len(rows) != 2 {
		t.Fatalf("expected 2 provider rows, got %d", len(rows))
	}
	if rows[0].ProviderID != "google" || rows[1].ProviderID != "meta" {
		t.Fatalf("expected providers sorted by ID, got %+v", rows)
	}
	// Blended ROAS is 2; google sits at 3 (+50%), meta at 1 (-50%).
	if !almostEqual(rows[0].Roas, 3) || !almostEqual(rows[0].RoasVsBlended, 50) {
		t.Fatalf("unexpected google benchmark %+v", rows[0])
	}
	if !almostEqual(rows[1].RoasVsBlended, -50) {
		t.Fatalf("unexpected meta benchmark %+v", rows[1])
	}
}

func TestCustomKPIsDefaults(t *testing.T) {
	t.Parallel()

	metrics := []domain.NormalizedAdMetric{
		{ProviderID: "google", Date: "2026-01-01", Spend: 200, Revenue: 500, Conversions: 10, Clicks: 100},
	}
	kpis := CustomKPIs(metrics, nil)
	if !almostEqual(kpis.Cpa, 20) {
		t.Fatalf("expected cpa 20, got %v", kpis.Cpa)
	}
	if !almostEqual(kpis.Roi, 150) {
		t.Fatalf("expected roi 150, got %v", kpis.Roi)
	}
	if !almostEqual(kpis.Mer, 2.5) || !almostEqual(kpis.Aov, 50) || !almostEqual(kpis.Rpc, 5) {
		t.Fatalf("unexpected ratios %+v", kpis)
	}
	if !almostEqual(kpis.Profit, 300) || !almostEqual(kpis.ProfitMargin, 60) {
		t.Fatalf("unexpected profit block %+v", kpis)
	}
	if kpis.Ltv != nil || kpis.AdjustedConversions != nil {
		t.Fatalf("expected optional KPIs unset without config, got %+v", kpis)
	}
}

func TestCustomKPIsWithConfig(t *testing.T) {
	t.Parallel()

	ltv := 120.0
	metrics := []domain.NormalizedAdMetric{
		{ProviderID: "google", Date: "2026-01-01", Spend: 100, Revenue: 200, Conversions: 10},
	}
	kpis := CustomKPIs(metrics, &KpiConfig{
		AverageLifetimeValue: &ltv,
		AttributionModel:     "timeDecay",
	})
	if kpis.Ltv == nil || *kpis.Ltv != 120 {
		t.Fatalf("expected ltv passthrough, got %+v", kpis.Ltv)
	}
	if kpis.AdjustedConversions == nil || !almostEqual(*kpis.AdjustedConversions, 10*DefaultTimeDecayFactor) {
		t.Fatalf("expected default decay adjustment, got %+v", kpis.AdjustedConversions)
	}
}

func TestAdjustConversionsModels(t *testing.T) {
	t.Parallel()

	if got := adjustConversions(10, "lastClick", 0); got != 10 {
		t.Fatalf("expected single-touch passthrough, got %v", got)
	}
	if got := adjustConversions(10, "timeDecay", 0.5); !almostEqual(got, 5) {
		t.Fatalf("expected decayed total 5, got %v", got)
	}
	if got := adjustConversions(10, "timeDecay", 1.5); !almostEqual(got, 10*DefaultTimeDecayFactor) {
		t.Fatalf("expected default decay for out-of-range factor, got %v", got)
	}
}
