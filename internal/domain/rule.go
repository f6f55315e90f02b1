package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// RuleType identifies the evaluation strategy for one alert rule.
// Params: threshold/anomaly/trend/algorithmic constants.
// Returns: dispatch tag for rule evaluators.
type RuleType string

const (
	// RuleTypeThreshold compares the current value against a fixed bound.
	RuleTypeThreshold RuleType = "threshold"
	// RuleTypeAnomaly compares the current value against a historical baseline.
	RuleTypeAnomaly RuleType = "anomaly"
	// RuleTypeTrend detects sustained day-over-day movement.
	RuleTypeTrend RuleType = "trend"
	// RuleTypeAlgorithmic maps efficiency-model insights onto alert results.
	RuleTypeAlgorithmic RuleType = "algorithmic"
)

// Severity ranks alert importance for downstream channels.
// Params: info/warning/critical constants.
// Returns: severity tag carried into results.
type Severity string

const (
	// SeverityInfo marks informational alerts.
	SeverityInfo Severity = "info"
	// SeverityWarning marks alerts that need attention.
	SeverityWarning Severity = "warning"
	// SeverityCritical marks alerts that need immediate action.
	SeverityCritical Severity = "critical"
)

// Rank orders severities for threshold comparisons.
// Params: none.
// Returns: numeric rank; unknown severities rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// MetricCustomFormula selects a bound custom formula instead of a fixed field.
const MetricCustomFormula = "custom_formula"

// SupportedMetrics lists the nine metric fields a rule may target.
// Params: none.
// Returns: allowed metric names in stable order.
func SupportedMetrics() []string {
	return []string{"spend", "impressions", "clicks", "conversions", "revenue", "cpc", "ctr", "roas", "cpa"}
}

// ConditionType tags one condition variant inside the rule condition union.
type ConditionType string

const (
	// ConditionThreshold tags fixed-bound comparisons.
	ConditionThreshold ConditionType = "threshold"
	// ConditionAnomaly tags baseline-deviation checks.
	ConditionAnomaly ConditionType = "anomaly"
	// ConditionTrend tags consecutive-movement checks.
	ConditionTrend ConditionType = "trend"
)

// ThresholdCondition compares the current metric value with a fixed bound.
// Params: comparison operator and bound value.
// Returns: threshold variant payload.
type ThresholdCondition struct {
	Operator string  `json:"operator"`
	Value    float64 `json:"value"`
}

// AnomalyCondition checks deviation from a trailing historical baseline.
// Params: multiplier, baseline window length in days, and watch direction.
// Returns: anomaly variant payload.
type AnomalyCondition struct {
	DeviationMultiplier float64 `json:"deviationMultiplier"`
	BaselineDays        int     `json:"baselineDays"`
	Direction           string  `json:"direction"`
}

// TrendCondition checks for sustained day-over-day movement.
// Params: direction, required streak length, and minimum per-day change.
// Returns: trend variant payload.
type TrendCondition struct {
	Direction          string  `json:"direction"`
	ConsecutivePeriods int     `json:"consecutivePeriods"`
	MinChangePercent   float64 `json:"minChangePercent,omitempty"`
}

// AlertCondition is the tagged union of supported rule conditions. Exactly one
// variant pointer is set for the tag; evaluators dispatch on Type.
// Params: discriminator tag and one variant payload.
// Returns: condition value for rule evaluation.
type AlertCondition struct {
	Type      ConditionType
	Threshold *ThresholdCondition
	Anomaly   *AnomalyCondition
	Trend     *TrendCondition
}

// conditionWire mirrors the flat persisted JSON shape of a condition.
type conditionWire struct {
	Type                ConditionType `json:"type"`
	Operator            string        `json:"operator,omitempty"`
	Value               *float64      `json:"value,omitempty"`
	DeviationMultiplier *float64      `json:"deviationMultiplier,omitempty"`
	BaselineDays        *int          `json:"baselineDays,omitempty"`
	Direction           string        `json:"direction,omitempty"`
	ConsecutivePeriods  *int          `json:"consecutivePeriods,omitempty"`
	MinChangePercent    *float64      `json:"minChangePercent,omitempty"`
}

// MarshalJSON renders the condition union in the flat tagged wire shape.
// Params: none.
// Returns: JSON bytes or marshal error on empty variant.
func (c AlertCondition) MarshalJSON() ([]byte, error) {
	wire := conditionWire{Type: c.Type}
	switch c.Type {
	case ConditionThreshold:
		if c.Threshold == nil {
			return nil, errors.New("threshold condition payload is missing")
		}
		wire.Operator = c.Threshold.Operator
		wire.Value = &c.Threshold.Value
	case ConditionAnomaly:
		if c.Anomaly == nil {
			return nil, errors.New("anomaly condition payload is missing")
		}
		wire.DeviationMultiplier = &c.Anomaly.DeviationMultiplier
		wire.BaselineDays = &c.Anomaly.BaselineDays
		wire.Direction = c.Anomaly.Direction
	case ConditionTrend:
		if c.Trend == nil {
			return nil, errors.New("trend condition payload is missing")
		}
		wire.Direction = c.Trend.Direction
		wire.ConsecutivePeriods = &c.Trend.ConsecutivePeriods
		if c.Trend.MinChangePercent != 0 {
			wire.MinChangePercent = &c.Trend.MinChangePercent
		}
	default:
		return nil, fmt.Errorf("unsupported condition type %q", c.Type)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the flat tagged wire shape into the condition union.
// Params: JSON bytes.
// Returns: decode error on unknown tag or missing variant fields.
func (c *AlertCondition) UnmarshalJSON(raw []byte) error {
	var wire conditionWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}
	c.Type = wire.Type
	c.Threshold, c.Anomaly, c.Trend = nil, nil, nil
	switch wire.Type {
	case ConditionThreshold:
		if wire.Value == nil {
			return errors.New("threshold condition requires value")
		}
		c.Threshold = &ThresholdCondition{Operator: wire.Operator, Value: *wire.Value}
	case ConditionAnomaly:
		condition := AnomalyCondition{Direction: wire.Direction}
		if wire.DeviationMultiplier != nil {
			condition.DeviationMultiplier = *wire.DeviationMultiplier
		}
		if wire.BaselineDays != nil {
			condition.BaselineDays = *wire.BaselineDays
		}
		c.Anomaly = &condition
	case ConditionTrend:
		condition := TrendCondition{Direction: wire.Direction}
		if wire.ConsecutivePeriods != nil {
			condition.ConsecutivePeriods = *wire.ConsecutivePeriods
		}
		if wire.MinChangePercent != nil {
			condition.MinChangePercent = *wire.MinChangePercent
		}
		c.Trend = &condition
	default:
		return fmt.Errorf("unsupported condition type %q", wire.Type)
	}
	return nil
}

// Validate validates the condition union.
// Params: none.
// Returns: validation error for mismatched tag/payload or bad enum values.
func (c AlertCondition) Validate() error {
	switch c.Type {
	case ConditionThreshold:
		if c.Threshold == nil {
			return errors.New("threshold condition payload is missing")
		}
		switch c.Threshold.Operator {
		case "gt", "lt", "gte", "lte", "eq":
		default:
			return fmt.Errorf("unsupported threshold operator %q", c.Threshold.Operator)
		}
	case ConditionAnomaly:
		if c.Anomaly == nil {
			return errors.New("anomaly condition payload is missing")
		}
		if c.Anomaly.DeviationMultiplier <= 0 {
			return errors.New("deviationMultiplier must be >0")
		}
		if c.Anomaly.BaselineDays < 1 {
			return errors.New("baselineDays must be >=1")
		}
		switch c.Anomaly.Direction {
		case "above", "below", "both":
		default:
			return fmt.Errorf("unsupported anomaly direction %q", c.Anomaly.Direction)
		}
	case ConditionTrend:
		if c.Trend == nil {
			return errors.New("trend condition payload is missing")
		}
		if c.Trend.ConsecutivePeriods < 1 {
			return errors.New("consecutivePeriods must be >=1")
		}
		if c.Trend.MinChangePercent < 0 {
			return errors.New("minChangePercent must be >=0")
		}
		switch c.Trend.Direction {
		case "increasing", "decreasing":
		default:
			return fmt.Errorf("unsupported trend direction %q", c.Trend.Direction)
		}
	default:
		return fmt.Errorf("unsupported condition type %q", c.Type)
	}
	return nil
}

// AlertRule is one persisted rule definition supplied per evaluation call.
// Params: identity, evaluation strategy, condition union, scope filters, and
// notification routing.
// Returns: immutable rule input for the evaluator.
type AlertRule struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        RuleType       `json:"type"`
	Metric      string         `json:"metric"`
	Condition   AlertCondition `json:"condition"`
	Severity    Severity       `json:"severity"`
	Enabled     bool           `json:"enabled"`
	ProviderID  string         `json:"providerId,omitempty"`
	CampaignID  string         `json:"campaignId,omitempty"`
	FormulaID   string         `json:"formulaId,omitempty"`
	InsightType string         `json:"insightType,omitempty"`
	Channels    []string       `json:"channels,omitempty"`
}

// Validate validates one rule definition.
// Params: none.
// Returns: validation error when identity, metric, or condition is invalid.
func (r AlertRule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("rule id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("rule name is required")
	}
	switch r.Type {
	case RuleTypeThreshold, RuleTypeAnomaly, RuleTypeTrend:
		if err := r.validateMetric(); err != nil {
			return err
		}
		if err := r.Condition.Validate(); err != nil {
			return fmt.Errorf("condition: %w", err)
		}
	case RuleTypeAlgorithmic:
		switch r.InsightType {
		case "", "all", "efficiency", "budget", "creative", "audience":
		default:
			return fmt.Errorf("unsupported insightType %q", r.InsightType)
		}
	default:
		return fmt.Errorf("unsupported rule type %q", r.Type)
	}
	switch r.Severity {
	case SeverityInfo, SeverityWarning, SeverityCritical:
	default:
		return fmt.Errorf("unsupported severity %q", r.Severity)
	}
	return nil
}

// validateMetric checks the metric selector against the supported set.
// Params: none.
// Returns: error on unknown metric or missing formula binding.
func (r AlertRule) validateMetric() error {
	if r.Metric == MetricCustomFormula {
		if strings.TrimSpace(r.FormulaID) == "" {
			return errors.New("formulaId is required when metric is custom_formula")
		}
		return nil
	}
	for _, metric := range SupportedMetrics() {
		if r.Metric == metric {
			return nil
		}
	}
	return fmt.Errorf("unsupported metric %q", r.Metric)
}

// CustomFormula is one user-authored arithmetic expression over metric fields.
// Params: formula text and the metric field names it may reference.
// Returns: binding resolved by the safe evaluator at evaluation time.
type CustomFormula struct {
	Formula string   `json:"formula"`
	Inputs  []string `json:"inputs"`
}
