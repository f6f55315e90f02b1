package domain

import (
	"strings"
	"testing"
)

func validMetric() NormalizedAdMetric {
	return NormalizedAdMetric{
		ProviderID:  "google",
		AdID:        "a1",
		CampaignID:  "c1",
		Date:        "2026-01-10",
		Impressions: 1000,
		Clicks:      50,
		Spend:       100,
		Conversions: 5,
		Revenue:     250,
	}
}

func TestNormalizedAdMetricValidate(t *testing.T) {
	t.Parallel()

	if err := validMetric().Validate(); err != nil {
		t.Fatalf("expected valid metric, got %v", err)
	}

	metric := validMetric()
	metric.ProviderID = ""
	if err := metric.Validate(); err == nil {
		t.Fatal("expected providerId error")
	}

	metric = validMetric()
	metric.Date = "10.01.2026"
	if err := metric.Validate(); err == nil || !strings.Contains(err.Error(), DateLayout) {
		t.Fatalf("expected date layout error, got %v", err)
	}

	metric = validMetric()
	metric.Spend = -1
	if err := metric.Validate(); err == nil || !strings.Contains(err.Error(), "spend") {
		t.Fatalf("expected negative spend error, got %v", err)
	}
}

func TestSafeRatio(t *testing.T) {
	t.Parallel()

	if got := SafeRatio(10, 4); got != 2.5 {
		t.Fatalf("expected 2.5, got %v", got)
	}
	if got := SafeRatio(10, 0); got != 0 {
		t.Fatalf("expected 0 on zero denominator, got %v", got)
	}
	if got := SafeRatio(0, 0); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestAggregateDailySumsAndDerives(t *testing.T) {
	t.Parallel()

	metrics := []NormalizedAdMetric{
		{ProviderID: "google", Date: "2026-01-10", Spend: 100, Clicks: 40, Impressions: 1000, Conversions: 4, Revenue: 300},
		{ProviderID: "meta", Date: "2026-01-10", Spend: 100, Clicks: 60, Impressions: 1000, Conversions: 6, Revenue: 100},
		{ProviderID: "meta", Date: "2026-01-11", Spend: 999, Clicks: 1, Impressions: 1, Conversions: 1, Revenue: 1},
	}
	row := AggregateDaily(metrics, "2026-01-10")
	if row.Date != "2026-01-10" {
		t.Fatalf("expected target date echoed, got %+v", row)
	}
	if row.Spend != 200 || row.Clicks != 100 || row.Revenue != 400 {
		t.Fatalf("expected other dates excluded from sums, got %+v", row)
	}
	if row.CPC != 2 || row.CTR != 0.05 || row.ROAS != 2 || row.CPA != 20 {
		t.Fatalf("unexpected derived ratios %+v", row)
	}
}

func TestAggregateDailyZeroDenominators(t *testing.T) {
	t.Parallel()

	row := AggregateDaily(nil, "2026-01-10")
	if row.CPC != 0 || row.CTR != 0 || row.ROAS != 0 || row.CPA != 0 {
		t.Fatalf("expected zero-guarded ratios, got %+v", row)
	}
}

func TestDecodeSnapshot(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"providerId": "google",
		"campaignId": "c1",
		"metrics": [
			{"providerId":"google","adId":"a1","campaignId":"c1","date":"2026-01-10",
			 "impressions":1000,"clicks":50,"spend":100,"conversions":5,"revenue":250}
		]
	}`)
	snapshot, err := DecodeSnapshot(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.ProviderID != "google" || len(snapshot.Metrics) != 1 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	if _, err := DecodeSnapshot([]byte(`{"metrics":[]}`)); err == nil {
		t.Fatal("expected empty batch rejection")
	}
	if _, err := DecodeSnapshot([]byte(`{`)); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := DecodeSnapshot([]byte(`{"metrics":[{"providerId":"g","campaignId":"c","date":"bad"}]}`)); err == nil {
		t.Fatal("expected row validation error")
	}
}

func TestDailyMetricDataField(t *testing.T) {
	t.Parallel()

	row := DailyMetricData{Spend: 1, Impressions: 2, Clicks: 3, Conversions: 4, Revenue: 5, CPC: 6, CTR: 7, ROAS: 8, CPA: 9}
	for _, name := range SupportedMetrics() {
		if row.Field(name) == 0 {
			t.Fatalf("expected non-zero for %q", name)
		}
	}
	if row.Field("unknown") != 0 {
		t.Fatal("expected 0 for unknown field")
	}
}
