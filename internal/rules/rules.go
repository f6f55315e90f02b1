// Package rules evaluates individual alert rule definitions against the
// current daily aggregate and its chronological history. Evaluation is a
// pure function of its inputs: no state survives between calls and domain
// edge cases degrade into well-formed non-triggered results.
package rules

import (
	"fmt"
	"time"

	"adalert/internal/domain"
	"adalert/internal/formula"
)

// EvaluateRule evaluates one rule against current and historical data.
// Params: rule definition, current-period aggregate, ascending history,
// optional bound custom formula, and injected evaluation timestamp.
// Returns: fully-populated result, triggered or not.
func EvaluateRule(rule domain.AlertRule, current domain.DailyMetricData, history []domain.DailyMetricData, customFormula *domain.CustomFormula, now time.Time) domain.AlertResult {
	result := domain.AlertResult{
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		Severity:  rule.Severity,
		Metric:    rule.Metric,
		Timestamp: now,
	}

	currentValue, formulaID := currentMetricValue(rule, current, customFormula)
	result.CurrentValue = currentValue
	result.FormulaID = formulaID

	switch rule.Type {
	case domain.RuleTypeThreshold:
		evaluateThreshold(&result, rule, currentValue)
	case domain.RuleTypeAnomaly:
		evaluateAnomaly(&result, rule, currentValue, history)
	case domain.RuleTypeTrend:
		evaluateTrend(&result, rule, history)
	case domain.RuleTypeAlgorithmic:
		result.InsightType = rule.InsightType
		result.Message = "algorithmic rules are evaluated by the batch evaluator"
	default:
		result.Message = fmt.Sprintf("unsupported rule type %q", rule.Type)
	}
	return result
}

// currentMetricValue resolves the rule's current value, going through the
// safe formula evaluator for custom_formula rules.
// Params: rule, current aggregate, and optional bound formula.
// Returns: current value (0 on formula failure) and formula ID when bound.
func currentMetricValue(rule domain.AlertRule, current domain.DailyMetricData, customFormula *domain.CustomFormula) (float64, string) {
	if rule.Metric != domain.MetricCustomFormula {
		return current.Field(rule.Metric), ""
	}
	if customFormula == nil {
		return 0, rule.FormulaID
	}

	vars := make(map[string]float64, len(customFormula.Inputs))
	for _, input := range customFormula.Inputs {
		vars[input] = current.Field(input)
	}
	value, err := formula.Evaluate(customFormula.Formula, vars)
	if err != nil {
		// A broken user formula must not break the batch: treat as 0.
		return 0, rule.FormulaID
	}
	return value, rule.FormulaID
}

// evaluateThreshold applies a fixed-bound comparison.
// Params: result to fill, rule with threshold condition, and current value.
// Returns: none; result message and trigger flag are set in place.
func evaluateThreshold(result *domain.AlertResult, rule domain.AlertRule, currentValue float64) {
	condition := rule.Condition.Threshold
	if rule.Condition.Type != domain.ConditionThreshold || condition == nil {
		result.Message = "threshold rule is missing threshold condition"
		return
	}

	result.Threshold = &condition.Value
	result.Triggered = compare(currentValue, condition.Operator, condition.Value)
	state := "within bounds"
	if result.Triggered {
		state = "breached"
	}
	result.Message = fmt.Sprintf("%s is %.2f, threshold %s %.2f %s",
		result.Metric, currentValue, operatorWord(condition.Operator), condition.Value, state)
}

// evaluateAnomaly compares the current value against a trailing baseline mean.
// Params: result to fill, rule with anomaly condition, current value, and
// ascending history.
// Returns: none; deviation percent is reported regardless of trigger outcome.
func evaluateAnomaly(result *domain.AlertResult, rule domain.AlertRule, currentValue float64, history []domain.DailyMetricData) {
	condition := rule.Condition.Anomaly
	if rule.Condition.Type != domain.ConditionAnomaly || condition == nil {
		result.Message = "anomaly rule is missing anomaly condition"
		return
	}

	baseline := baselineMean(history, rule.Metric, condition.BaselineDays)
	result.Average = &baseline
	if baseline == 0 {
		result.Message = fmt.Sprintf("insufficient baseline for %s over last %d days", result.Metric, condition.BaselineDays)
		return
	}

	deviation := (currentValue - baseline) / baseline * 100
	result.DeviationPercent = &deviation

	above := currentValue > baseline*condition.DeviationMultiplier
	below := currentValue < baseline/condition.DeviationMultiplier
	switch condition.Direction {
	case "above":
		result.Triggered = above
	case "below":
		result.Triggered = below
	case "both":
		result.Triggered = above || below
	}

	state := "within expected range"
	if result.Triggered {
		state = "anomalous"
	}
	result.Message = fmt.Sprintf("%s is %.2f vs %d-day baseline %.2f (%+.1f%%), %s",
		result.Metric, currentValue, condition.BaselineDays, baseline, deviation, state)
}

// evaluateTrend walks the trailing history day-over-day counting a streak.
// Params: result to fill, rule with trend condition, and ascending history.
// Returns: none; insufficient history yields a non-triggered result.
func evaluateTrend(result *domain.AlertResult, rule domain.AlertRule, history []domain.DailyMetricData) {
	condition := rule.Condition.Trend
	if rule.Condition.Type != domain.ConditionTrend || condition == nil {
		result.Message = "trend rule is missing trend condition"
		return
	}

	if len(history) < condition.ConsecutivePeriods+1 {
		result.Message = fmt.Sprintf("insufficient data for %s trend: need %d days, have %d",
			result.Metric, condition.ConsecutivePeriods+1, len(history))
		return
	}

	streak := 0
	for i := 1; i < len(history); i++ {
		previous := history[i-1].Field(rule.Metric)
		if previous == 0 {
			// No defined day-over-day change; neither extends nor breaks the streak.
			continue
		}
		change := (history[i].Field(rule.Metric) - previous) / previous * 100
		if matchesDirection(change, condition.Direction, condition.MinChangePercent) {
			streak++
			continue
		}
		streak = 0
	}

	result.TrendDays = &streak
	result.Triggered = streak >= condition.ConsecutivePeriods
	state := "no sustained trend"
	if result.Triggered {
		state = "sustained trend detected"
	}
	result.Message = fmt.Sprintf("%s %s for %d consecutive days (need %d): %s",
		result.Metric, condition.Direction, streak, condition.ConsecutivePeriods, state)
}

// matchesDirection checks one day-over-day change against the trend test.
// Params: percentage change, direction, and minimum magnitude.
// Returns: true when the day extends the streak.
func matchesDirection(changePercent float64, direction string, minChangePercent float64) bool {
	switch direction {
	case "increasing":
		return changePercent > 0 && changePercent >= minChangePercent
	case "decreasing":
		return changePercent < 0 && -changePercent >= minChangePercent
	}
	return false
}

// baselineMean computes the mean of one metric over the trailing window.
// Params: ascending history, metric name, and window length in entries.
// Returns: mean over the last baselineDays entries, or 0 for empty history.
func baselineMean(history []domain.DailyMetricData, metric string, baselineDays int) float64 {
	if len(history) == 0 || baselineDays < 1 {
		return 0
	}
	start := len(history) - baselineDays
	if start < 0 {
		start = 0
	}
	window := history[start:]
	var sum float64
	for _, day := range window {
		sum += day.Field(metric)
	}
	return sum / float64(len(window))
}

// compare applies one threshold operator.
// Params: current value, operator name, and bound.
// Returns: comparison outcome; unknown operators never trigger.
func compare(value float64, operator string, bound float64) bool {
	switch operator {
	case "gt":
		return value > bound
	case "lt":
		return value < bound
	case "gte":
		return value >= bound
	case "lte":
		return value <= bound
	case "eq":
		return value == bound
	}
	return false
}

// operatorWord renders one operator for human-readable messages.
// Params: operator name.
// Returns: short word used in result messages.
func operatorWord(operator string) string {
	switch operator {
	case "gt":
		return "above"
	case "lt":
		return "below"
	case "gte":
		return "at or above"
	case "lte":
		return "at or below"
	case "eq":
		return "equal to"
	}
	return operator
}
