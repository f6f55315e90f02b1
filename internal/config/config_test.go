package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"adalert/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const baseConfig = `
[service]
name = "adalert-test"

[ingest.http]
enabled = true
listen = "127.0.0.1:8087"
`

func TestFromCLI(t *testing.T) {
	t.Parallel()

	if _, err := FromCLI("", ""); err == nil {
		t.Fatal("expected error without source")
	}
	if _, err := FromCLI("a.toml", "dir"); err == nil {
		t.Fatal("expected error with both sources")
	}
	source, err := FromCLI(" a.toml ", "")
	if err != nil || source.File != "a.toml" {
		t.Fatalf("unexpected source %+v (%v)", source, err)
	}
}

func TestLoadSnapshotDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, baseConfig)
	cfg, err := LoadSnapshot(ConfigSource{File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Service.Name != "adalert-test" {
		t.Fatalf("unexpected service name %q", cfg.Service.Name)
	}
	if cfg.Service.HistoryMaxDays <= 0 || cfg.Service.ReloadIntervalSec <= 0 {
		t.Fatalf("expected service defaults, got %+v", cfg.Service)
	}
	if !cfg.Log.Console.Enabled || cfg.Log.Console.Level != "info" {
		t.Fatalf("expected console logging defaults, got %+v", cfg.Log)
	}
	if cfg.Engine.SnapshotMode != SnapshotModeFull {
		t.Fatalf("expected full snapshot mode default, got %q", cfg.Engine.SnapshotMode)
	}
	if cfg.Notify.MinSeverity != string(domain.SeverityWarning) {
		t.Fatalf("expected warning severity floor default, got %q", cfg.Notify.MinSeverity)
	}
	if cfg.Notify.Webhook.Format != WebhookFormatJSON {
		t.Fatalf("expected json webhook format default, got %q", cfg.Notify.Webhook.Format)
	}
	if cfg.Ingest.HTTP.IngestPath == "" || cfg.Ingest.HTTP.MaxBodyBytes <= 0 {
		t.Fatalf("expected http ingest defaults, got %+v", cfg.Ingest.HTTP)
	}
}

func TestLoadSnapshotRules(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, baseConfig+`
[rule.roas-floor]
type = "threshold"
metric = "roas"
severity = "warning"
channels = ["telegram"]
  [rule.roas-floor.condition]
  operator = "lt"
  value = 1.5

[rule.spend-spike]
id = "spend-spike-v2"
type = "anomaly"
metric = "spend"
severity = "critical"
  [rule.spend-spike.condition]
  deviation_multiplier = 2.0
  baseline_days = 7
  direction = "above"

[rule.margin]
type = "threshold"
metric = "custom_formula"
formula_id = "net-margin"
severity = "info"
enabled = false
  [rule.margin.condition]
  operator = "gt"
  value = 25.0

[formula.net-margin]
formula = "revenue - spend"
inputs = ["revenue", "spend"]

[notify.telegram]
enabled = true
bot_token = "token"
chat_id = "100"
`)
	cfg, err := LoadSnapshot(ConfigSource{File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Rule) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(cfg.Rule))
	}
	// Rule order follows sorted table names.
	if cfg.Rule[0].Name != "margin" || cfg.Rule[1].Name != "roas-floor" || cfg.Rule[2].Name != "spend-spike" {
		t.Fatalf("unexpected rule order %+v", cfg.Rule)
	}
	if cfg.Rule[0].Enabled {
		t.Fatal("expected margin rule disabled")
	}
	if cfg.Rule[1].ID != "roas-floor" {
		t.Fatalf("expected id defaulted from table name, got %q", cfg.Rule[1].ID)
	}
	if cfg.Rule[2].ID != "spend-spike-v2" {
		t.Fatalf("expected explicit id kept, got %q", cfg.Rule[2].ID)
	}

	roasFloor := cfg.Rule[1]
	if roasFloor.Condition.Type != domain.ConditionThreshold || roasFloor.Condition.Threshold == nil {
		t.Fatalf("expected condition type inferred from rule type, got %+v", roasFloor.Condition)
	}
	if roasFloor.Condition.Threshold.Value != 1.5 {
		t.Fatalf("unexpected threshold %+v", roasFloor.Condition.Threshold)
	}

	spike := cfg.Rule[2]
	if spike.Condition.Anomaly == nil || spike.Condition.Anomaly.BaselineDays != 7 {
		t.Fatalf("unexpected anomaly condition %+v", spike.Condition)
	}

	boundFormula, ok := cfg.Formula["net-margin"]
	if !ok || boundFormula.Formula != "revenue - spend" {
		t.Fatalf("unexpected formula map %+v", cfg.Formula)
	}
}

func TestLoadSnapshotDirMergesFragments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := map[string]string{
		"10-base.toml": baseConfig,
		"20-rules.toml": `
[rule.roas-floor]
type = "threshold"
metric = "roas"
severity = "warning"
  [rule.roas-floor.condition]
  operator = "lt"
  value = 1.5
`,
		"30-more-rules.toml": `
[rule.cpa-ceiling]
type = "threshold"
metric = "cpa"
severity = "info"
  [rule.cpa-ceiling.condition]
  operator = "gt"
  value = 50.0
`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("write fragment: %v", err)
		}
	}

	cfg, err := LoadSnapshot(ConfigSource{Dir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Rule) != 2 {
		t.Fatalf("expected rules accumulated across fragments, got %+v", cfg.Rule)
	}
	if cfg.Service.Name != "adalert-test" {
		t.Fatalf("expected base fragment applied, got %q", cfg.Service.Name)
	}
}

func TestLoadSnapshotValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "no ingest",
			body:    `[service]` + "\n" + `name = "x"`,
			wantErr: "at least one ingest interface",
		},
		{
			name: "bad operator",
			body: baseConfig + `
[rule.bad]
type = "threshold"
metric = "roas"
severity = "warning"
  [rule.bad.condition]
  operator = "between"
  value = 1.0
`,
			wantErr: "unsupported threshold operator",
		},
		{
			name: "missing threshold value",
			body: baseConfig + `
[rule.bad]
type = "threshold"
metric = "roas"
severity = "warning"
  [rule.bad.condition]
  operator = "lt"
`,
			wantErr: "condition.value is required",
		},
		{
			name: "duplicate ids",
			body: baseConfig + `
[rule.one]
id = "same"
type = "threshold"
metric = "roas"
severity = "warning"
  [rule.one.condition]
  operator = "lt"
  value = 1.0

[rule.two]
id = "same"
type = "threshold"
metric = "roas"
severity = "warning"
  [rule.two.condition]
  operator = "lt"
  value = 2.0
`,
			wantErr: "already used",
		},
		{
			name: "unknown formula reference",
			body: baseConfig + `
[rule.margin]
type = "threshold"
metric = "custom_formula"
formula_id = "ghost"
severity = "info"
  [rule.margin.condition]
  operator = "gt"
  value = 1.0
`,
			wantErr: `formula "ghost" is not defined`,
		},
		{
			name: "bad formula input",
			body: baseConfig + `
[formula.bad]
formula = "revenue - spend"
inputs = ["revenue", "margin"]
`,
			wantErr: `unsupported input field "margin"`,
		},
		{
			name: "unknown channel",
			body: baseConfig + `
[rule.r]
type = "threshold"
metric = "roas"
severity = "warning"
channels = ["pager"]
  [rule.r.condition]
  operator = "lt"
  value = 1.0
`,
			wantErr: "unsupported notify channel",
		},
		{
			name: "telegram without token",
			body: baseConfig + `
[notify.telegram]
enabled = true
chat_id = "100"
`,
			wantErr: "bot_token is required",
		},
		{
			name: "bad snapshot mode",
			body: baseConfig + `
[engine]
snapshot_mode = "tiny"
`,
			wantErr: "snapshot_mode",
		},
		{
			name: "bad min severity",
			body: baseConfig + `
[notify]
min_severity = "fatal"
`,
			wantErr: "min_severity",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfig(t, tc.body)
			_, err := LoadSnapshot(ConfigSource{File: path})
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestKpiConfigDerivation(t *testing.T) {
	t.Parallel()

	var engine EngineConfig
	if engine.KpiConfig() != nil {
		t.Fatal("expected nil KPI config without optional inputs")
	}

	ltv := 150.0
	engine = EngineConfig{AttributionModel: "timeDecay", AverageLifetimeValue: &ltv, TimeDecayFactor: 0.7}
	kpi := engine.KpiConfig()
	if kpi == nil || kpi.AttributionModel != "timeDecay" || *kpi.AverageLifetimeValue != 150 || kpi.TimeDecayFactor != 0.7 {
		t.Fatalf("unexpected KPI config %+v", kpi)
	}
}
