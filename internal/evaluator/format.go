package evaluator

import (
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"adalert/internal/domain"
	"adalert/internal/templatefmt"
)

// severityOrder fixes rendering order for grouped output.
var severityOrder = []domain.Severity{domain.SeverityCritical, domain.SeverityWarning, domain.SeverityInfo}

var chatTemplate = texttemplate.Must(
	texttemplate.New("chat").Funcs(templatefmt.FuncMap()).Parse(strings.TrimSpace(`
{{.TriggeredCount}} of {{.EvaluatedCount}} alert rules triggered
{{- range .Sections}}

[{{upper (printf "%s" .Severity)}}]
{{- range .Results}}
- {{.RuleName}}: {{.Message}}
{{- if .Suggestion}}
  suggestion: {{.Suggestion}}
{{- end}}
{{- end}}
{{- end}}
`)))

var emailTemplate = htmltemplate.Must(htmltemplate.New("email").Parse(strings.TrimSpace(`
<h2>{{.TriggeredCount}} of {{.EvaluatedCount}} alert rules triggered</h2>
{{- range .Sections}}
<h3>{{.Severity}}</h3>
<ul>
{{- range .Results}}
<li><strong>{{.RuleName}}</strong>: {{.Message}}{{if .Suggestion}}<br/><em>{{.Suggestion}}</em>{{end}}</li>
{{- end}}
</ul>
{{- end}}
`)))

// severitySection is one rendered severity bucket.
type severitySection struct {
	Severity domain.Severity
	Results  []domain.AlertResult
}

// batchView is the template input for both chat and email rendering.
type batchView struct {
	TriggeredCount int
	EvaluatedCount int
	Sections       []severitySection
}

// GroupBySeverity buckets results by severity, preserving evaluation order.
// Params: result list.
// Returns: severity-keyed buckets.
func GroupBySeverity(results []domain.AlertResult) map[domain.Severity][]domain.AlertResult {
	out := make(map[domain.Severity][]domain.AlertResult, len(severityOrder))
	for _, result := range results {
		out[result.Severity] = append(out[result.Severity], result)
	}
	return out
}

// buildView shapes one batch into ordered severity sections of triggered results.
// Params: batch evaluation result.
// Returns: view with critical/warning/info sections, empty ones omitted.
func buildView(batch domain.AlertEvaluationResult) batchView {
	grouped := GroupBySeverity(batch.Triggered())
	view := batchView{
		TriggeredCount: batch.RulesTriggered,
		EvaluatedCount: batch.RulesEvaluated,
	}
	for _, severity := range severityOrder {
		if results := grouped[severity]; len(results) > 0 {
			view.Sections = append(view.Sections, severitySection{Severity: severity, Results: results})
		}
	}
	return view
}

// FormatChatMessage renders one batch as plain chat text.
// Params: batch evaluation result.
// Returns: deterministic chat message summarizing triggered alerts.
func FormatChatMessage(batch domain.AlertEvaluationResult) string {
	if batch.RulesTriggered == 0 {
		return fmt.Sprintf("No alerts triggered (%d rules evaluated)", batch.RulesEvaluated)
	}
	var builder strings.Builder
	if err := chatTemplate.Execute(&builder, buildView(batch)); err != nil {
		return fmt.Sprintf("%d of %d alert rules triggered", batch.RulesTriggered, batch.RulesEvaluated)
	}
	return builder.String()
}

// FormatEmailSubject renders one batch subject line.
// Params: batch evaluation result.
// Returns: deterministic subject summarizing the triggered count.
func FormatEmailSubject(batch domain.AlertEvaluationResult) string {
	if batch.RulesTriggered == 0 {
		return "Ad performance: no alerts triggered"
	}
	critical := len(GroupBySeverity(batch.Triggered())[domain.SeverityCritical])
	if critical > 0 {
		return fmt.Sprintf("Ad performance: %d alerts triggered (%d critical)", batch.RulesTriggered, critical)
	}
	return fmt.Sprintf("Ad performance: %d alerts triggered", batch.RulesTriggered)
}

// FormatEmailHTML renders one batch as an HTML email body.
// Params: batch evaluation result.
// Returns: escaped HTML text grouped by severity.
func FormatEmailHTML(batch domain.AlertEvaluationResult) string {
	if batch.RulesTriggered == 0 {
		return fmt.Sprintf("<p>No alerts triggered (%d rules evaluated)</p>", batch.RulesEvaluated)
	}
	var builder strings.Builder
	if err := emailTemplate.Execute(&builder, buildView(batch)); err != nil {
		return fmt.Sprintf("<p>%d of %d alert rules triggered</p>", batch.RulesTriggered, batch.RulesEvaluated)
	}
	return builder.String()
}
