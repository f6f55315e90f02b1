package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used across metric records.
const DateLayout = "2006-01-02"

// NormalizedAdMetric is one provider/campaign/day observation produced by the
// normalization adapters.
// Params: raw counters plus optional pre-derived ratios.
// Returns: immutable input record for the formula engine.
type NormalizedAdMetric struct {
	ProviderID  string  `json:"providerId"`
	AdID        string  `json:"adId"`
	CampaignID  string  `json:"campaignId"`
	Date        string  `json:"date"`
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	Spend       float64 `json:"spend"`
	Conversions float64 `json:"conversions"`
	Revenue     float64 `json:"revenue"`
	CTR         float64 `json:"ctr,omitempty"`
	CPC         float64 `json:"cpc,omitempty"`
	ROAS        float64 `json:"roas,omitempty"`
}

// Validate validates one normalized metric against the input contract.
// Params: metric fields parsed from transport.
// Returns: validation error when schema is violated.
func (m NormalizedAdMetric) Validate() error {
	if strings.TrimSpace(m.ProviderID) == "" {
		return errors.New("providerId is required")
	}
	if strings.TrimSpace(m.CampaignID) == "" {
		return errors.New("campaignId is required")
	}
	if _, err := time.Parse(DateLayout, m.Date); err != nil {
		return fmt.Errorf("date %q must use %s layout", m.Date, DateLayout)
	}
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"impressions", m.Impressions},
		{"clicks", m.Clicks},
		{"spend", m.Spend},
		{"conversions", m.Conversions},
		{"revenue", m.Revenue},
	} {
		if field.value < 0 {
			return fmt.Errorf("%s must be >=0", field.name)
		}
	}
	return nil
}

// Day parses metric calendar date.
// Params: none.
// Returns: parsed UTC day or zero time on malformed date.
func (m NormalizedAdMetric) Day() time.Time {
	day, err := time.Parse(DateLayout, m.Date)
	if err != nil {
		return time.Time{}
	}
	return day.UTC()
}

// DailyMetricData is one per-day aggregate consumed by the alert engine.
// Params: one current-period record or one history element (oldest to newest).
// Returns: alert evaluation input row.
type DailyMetricData struct {
	Date        string  `json:"date"`
	Spend       float64 `json:"spend"`
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	Conversions float64 `json:"conversions"`
	Revenue     float64 `json:"revenue"`
	CPC         float64 `json:"cpc"`
	CTR         float64 `json:"ctr"`
	ROAS        float64 `json:"roas"`
	CPA         float64 `json:"cpa"`
}

// Field reads one named metric field from a daily aggregate.
// Params: supported field name.
// Returns: field value, or 0 for unknown field names.
func (d DailyMetricData) Field(name string) float64 {
	switch name {
	case "spend":
		return d.Spend
	case "impressions":
		return d.Impressions
	case "clicks":
		return d.Clicks
	case "conversions":
		return d.Conversions
	case "revenue":
		return d.Revenue
	case "cpc":
		return d.CPC
	case "ctr":
		return d.CTR
	case "roas":
		return d.ROAS
	case "cpa":
		return d.CPA
	}
	return 0
}

// MetricSnapshot is one inbound evaluation unit: the scope it was collected
// for plus the normalized per-ad metric batch for that scope.
// Params: optional provider/campaign scope and non-empty metric batch.
// Returns: validated payload for the evaluation pipeline.
type MetricSnapshot struct {
	ProviderID string               `json:"providerId,omitempty"`
	CampaignID string               `json:"campaignId,omitempty"`
	Metrics    []NormalizedAdMetric `json:"metrics"`
}

// Validate validates one snapshot payload.
// Params: decoded snapshot fields.
// Returns: validation error when batch is empty or a row is invalid.
func (s MetricSnapshot) Validate() error {
	if len(s.Metrics) == 0 {
		return errors.New("metrics batch must contain at least one record")
	}
	for i, metric := range s.Metrics {
		if err := metric.Validate(); err != nil {
			return fmt.Errorf("metrics[%d]: %w", i, err)
		}
	}
	return nil
}

// DecodeSnapshot decodes and validates one snapshot payload.
// Params: JSON document bytes.
// Returns: validated snapshot or decode/validation error.
func DecodeSnapshot(raw []byte) (MetricSnapshot, error) {
	var snapshot MetricSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return MetricSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := snapshot.Validate(); err != nil {
		return MetricSnapshot{}, err
	}
	return snapshot, nil
}

// DecodeSnapshotReader decodes and validates one snapshot payload from stream.
// Params: reader with one JSON object.
// Returns: validated snapshot or decode/validation error.
func DecodeSnapshotReader(reader *json.Decoder) (MetricSnapshot, error) {
	var snapshot MetricSnapshot
	if err := reader.Decode(&snapshot); err != nil {
		return MetricSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := snapshot.Validate(); err != nil {
		return MetricSnapshot{}, err
	}
	return snapshot, nil
}

// AggregateDaily folds one normalized batch into a single per-day aggregate
// with derived ratios, keyed by the given calendar date.
// Params: metric batch and target date string.
// Returns: one daily aggregate row; ratios are 0 on zero denominators.
func AggregateDaily(metrics []NormalizedAdMetric, date string) DailyMetricData {
	row := DailyMetricData{Date: date}
	for _, metric := range metrics {
		if metric.Date != date {
			continue
		}
		row.Spend += metric.Spend
		row.Impressions += metric.Impressions
		row.Clicks += metric.Clicks
		row.Conversions += metric.Conversions
		row.Revenue += metric.Revenue
	}
	row.CPC = SafeRatio(row.Spend, row.Clicks)
	row.CTR = SafeRatio(row.Clicks, row.Impressions)
	row.ROAS = SafeRatio(row.Revenue, row.Spend)
	row.CPA = SafeRatio(row.Spend, row.Conversions)
	return row
}

// SafeRatio divides two values under the zero-denominator contract.
// Params: numerator and denominator.
// Returns: quotient, or 0 when denominator is 0.
func SafeRatio(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}
