// Package evaluator batches single-rule evaluation, merges algorithmic
// insight results, and renders triggered batches for notification channels.
package evaluator

import (
	"fmt"
	"time"

	"adalert/internal/domain"
	"adalert/internal/insight"
	"adalert/internal/rules"
)

// Input is one evaluation unit for a batch call.
// Params: optional scope, current-period aggregate, ascending history, and
// the normalized batch behind the current period (for algorithmic scoring).
// Returns: evaluator input contract.
type Input struct {
	ProviderID string
	CampaignID string
	Current    domain.DailyMetricData
	History    []domain.DailyMetricData
	Metrics    []domain.NormalizedAdMetric
}

// EvaluateAlerts evaluates every applicable rule against one input.
// Params: rule set, input, optional formula bindings keyed by formula ID, and
// injected evaluation timestamp.
// Returns: counts plus the concatenated standard and algorithmic results.
func EvaluateAlerts(ruleSet []domain.AlertRule, input Input, formulas map[string]domain.CustomFormula, now time.Time) domain.AlertEvaluationResult {
	batch := domain.AlertEvaluationResult{EvaluatedAt: now}

	for _, rule := range ruleSet {
		if !rule.Enabled || rule.Type == domain.RuleTypeAlgorithmic {
			continue
		}
		if !scopeMatches(rule, input) {
			continue
		}

		var boundFormula *domain.CustomFormula
		if rule.FormulaID != "" {
			if bound, ok := formulas[rule.FormulaID]; ok {
				boundFormula = &bound
			}
		}
		batch.RulesEvaluated++
		batch.Results = append(batch.Results, rules.EvaluateRule(rule, input.Current, input.History, boundFormula, now))
	}

	batch.Results = append(batch.Results, evaluateAlgorithmic(ruleSet, input, now, &batch.RulesEvaluated)...)

	for _, result := range batch.Results {
		if result.Triggered {
			batch.RulesTriggered++
		}
	}
	return batch
}

// evaluateAlgorithmic expands enabled algorithmic rules over model insights.
// Params: rule set, input, timestamp, and evaluated-rule counter to bump.
// Returns: one result per rule x matching warning/critical insight.
func evaluateAlgorithmic(ruleSet []domain.AlertRule, input Input, now time.Time, evaluated *int) []domain.AlertResult {
	summary := insight.Summarize(input.Metrics)
	findings := insight.Insights(summary)

	var out []domain.AlertResult
	for _, rule := range ruleSet {
		if !rule.Enabled || rule.Type != domain.RuleTypeAlgorithmic {
			continue
		}
		if !scopeMatches(rule, input) {
			continue
		}
		*evaluated++

		for _, finding := range findings {
			if finding.Level != "warning" && finding.Level != "critical" {
				continue
			}
			if !insightTypeMatches(rule.InsightType, finding.Type) {
				continue
			}
			out = append(out, domain.AlertResult{
				RuleID:       rule.ID,
				RuleName:     rule.Name,
				Triggered:    true,
				Severity:     rule.Severity,
				Metric:       finding.Type,
				Message:      fmt.Sprintf("%s: %s", finding.Title, finding.Message),
				CurrentValue: finding.Score,
				InsightType:  finding.Type,
				Suggestion:   finding.Suggestion,
				Timestamp:    now,
			})
		}
	}
	return out
}

// scopeMatches checks rule provider/campaign filters against input scope.
// Params: rule and input.
// Returns: true when unset filters or exact scope equality; a filter set on
// the rule but absent or different on the input excludes the rule.
func scopeMatches(rule domain.AlertRule, input Input) bool {
	if rule.ProviderID != "" && rule.ProviderID != input.ProviderID {
		return false
	}
	if rule.CampaignID != "" && rule.CampaignID != input.CampaignID {
		return false
	}
	return true
}

// insightTypeMatches checks one rule insight filter against a finding type.
// Params: rule insightType ("" and "all" match everything) and finding type.
// Returns: true when the finding is in scope for the rule.
func insightTypeMatches(ruleInsightType, findingType string) bool {
	return ruleInsightType == "" || ruleInsightType == "all" || ruleInsightType == findingType
}
