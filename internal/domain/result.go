package domain

import "time"

// AlertResult is the output of evaluating one rule.
// Params: rule identity, trigger outcome, and condition-specific details.
// Returns: fully-populated result consumed by notification dispatchers.
type AlertResult struct {
	RuleID           string    `json:"ruleId"`
	RuleName         string    `json:"ruleName"`
	Triggered        bool      `json:"triggered"`
	Severity         Severity  `json:"severity"`
	Metric           string    `json:"metric"`
	Message          string    `json:"message"`
	CurrentValue     float64   `json:"currentValue"`
	Threshold        *float64  `json:"threshold,omitempty"`
	Average          *float64  `json:"average,omitempty"`
	DeviationPercent *float64  `json:"deviationPercent,omitempty"`
	TrendDays        *int      `json:"trendDays,omitempty"`
	FormulaID        string    `json:"formulaId,omitempty"`
	InsightType      string    `json:"insightType,omitempty"`
	Suggestion       string    `json:"suggestion,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// AlertEvaluationResult is one batch evaluation outcome.
// Params: evaluated/triggered counters, all per-rule results, and batch time.
// Returns: evaluator output handed to the notification layer.
type AlertEvaluationResult struct {
	RulesEvaluated int           `json:"rulesEvaluated"`
	RulesTriggered int           `json:"rulesTriggered"`
	Results        []AlertResult `json:"results"`
	EvaluatedAt    time.Time     `json:"evaluatedAt"`
}

// Triggered filters the batch down to triggered results.
// Params: none.
// Returns: triggered results in evaluation order.
func (r AlertEvaluationResult) Triggered() []AlertResult {
	out := make([]AlertResult, 0, r.RulesTriggered)
	for _, result := range r.Results {
		if result.Triggered {
			out = append(out, result)
		}
	}
	return out
}

// MovingAveragePoint is one date in a trailing-window average series.
// Params: calendar date, windowed value, and unaveraged same-day sum.
// Returns: one series element, dates ascending.
type MovingAveragePoint struct {
	Date     string  `json:"date"`
	Value    float64 `json:"value"`
	RawValue float64 `json:"rawValue"`
}

// MovingAverages carries 7-day and 30-day series for the tracked fields.
// Params: one series per field and window.
// Returns: moving-average block of the derived snapshot.
type MovingAverages struct {
	Spend7d        []MovingAveragePoint `json:"spend7d"`
	Spend30d       []MovingAveragePoint `json:"spend30d"`
	Conversions7d  []MovingAveragePoint `json:"conversions7d"`
	Conversions30d []MovingAveragePoint `json:"conversions30d"`
	Revenue7d      []MovingAveragePoint `json:"revenue7d"`
	Revenue30d     []MovingAveragePoint `json:"revenue30d"`
	Roas7d         []MovingAveragePoint `json:"roas7d"`
	Roas30d        []MovingAveragePoint `json:"roas30d"`
}

// GrowthRateSet carries percentage deltas for the four tracked fields.
// Params: nil marks an undefined rate (no prior-period activity).
// Returns: one comparison period of the growth block.
type GrowthRateSet struct {
	Spend       *float64 `json:"spend"`
	Conversions *float64 `json:"conversions"`
	Revenue     *float64 `json:"revenue"`
	Roas        *float64 `json:"roas"`
}

// GrowthRates carries week-over-week and month-over-month deltas.
// Params: trailing 7/30-day windows against the preceding windows.
// Returns: growth block of the derived snapshot.
type GrowthRates struct {
	WeekOverWeek   GrowthRateSet `json:"weekOverWeek"`
	MonthOverMonth GrowthRateSet `json:"monthOverMonth"`
}

// ProviderBenchmark compares one provider against the blended average.
// Params: provider ratios and percentage deviation per tracked ratio.
// Returns: one benchmark row of the derived snapshot.
type ProviderBenchmark struct {
	ProviderID    string  `json:"providerId"`
	Roas          float64 `json:"roas"`
	Cpa           float64 `json:"cpa"`
	Ctr           float64 `json:"ctr"`
	Cpc           float64 `json:"cpc"`
	RoasVsBlended float64 `json:"roasVsBlended"`
	CpaVsBlended  float64 `json:"cpaVsBlended"`
	CtrVsBlended  float64 `json:"ctrVsBlended"`
	CpcVsBlended  float64 `json:"cpcVsBlended"`
}

// CustomKpis carries KPI values computed from grand totals.
// Params: nil LTV/adjustedConversions when not configured.
// Returns: KPI block of the derived snapshot.
type CustomKpis struct {
	Cpa                 float64  `json:"cpa"`
	Ltv                 *float64 `json:"ltv"`
	Roi                 float64  `json:"roi"`
	Mer                 float64  `json:"mer"`
	Aov                 float64  `json:"aov"`
	Rpc                 float64  `json:"rpc"`
	Profit              float64  `json:"profit"`
	ProfitMargin        float64  `json:"profitMargin"`
	AdjustedConversions *float64 `json:"adjustedConversions,omitempty"`
}

// DerivedMetricsResult is the consolidated output snapshot of the pipeline.
// Params: weighted ROAS, windowed series, growth deltas, benchmarks, and KPIs.
// Returns: snapshot consumed by reporting collaborators.
type DerivedMetricsResult struct {
	WeightedRoas   float64             `json:"weightedRoas"`
	MovingAverages MovingAverages      `json:"movingAverages"`
	GrowthRates    GrowthRates         `json:"growthRates"`
	Benchmarks     []ProviderBenchmark `json:"benchmarks"`
	Kpis           CustomKpis          `json:"kpis"`
	CalculatedAt   time.Time           `json:"calculatedAt"`
}

// Insight is one qualitative finding from the efficiency-scoring model.
// Params: category, level, wording, fixed suggestion, and illustrative score.
// Returns: insight row matched against algorithmic rules.
type Insight struct {
	Type       string  `json:"type"`
	Level      string  `json:"level"`
	Title      string  `json:"title"`
	Message    string  `json:"message"`
	Suggestion string  `json:"suggestion"`
	Score      float64 `json:"score"`
}
