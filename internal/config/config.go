package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"adalert/internal/domain"
	"adalert/internal/formula"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultServiceName       = "adalert"
	defaultReloadSeconds     = 5
	defaultHistoryMaxDays    = 90
	defaultHistoryIdleSec    = 7 * 24 * 3600
	defaultHTTPListen        = ":8080"
	defaultHealthPath        = "/healthz"
	defaultReadyPath         = "/readyz"
	defaultIngestPath        = "/ingest"
	defaultMaxBodyBytes      = 1 << 20
	defaultNATSURL           = "nats://127.0.0.1:4222"
	defaultNATSWorkers       = 1
	defaultNATSAckWaitSec    = 30
	defaultNATSNackDelayMS   = 1000
	defaultNATSMaxDeliver    = -1
	defaultNATSMaxAckPending = 2048
	defaultWebhookMethod     = "POST"
	defaultWebhookTimeoutSec = 10
	defaultRetryBackoff      = "exponential"
	defaultRetryInitialMS    = 500
	defaultRetryMaxMS        = 5000
	defaultRetryMaxAttempts  = 3

	// MetricsSubject is the fixed JetStream subject for inbound snapshots.
	MetricsSubject = "adalert.metrics"
	// MetricsStream is the fixed JetStream stream for inbound snapshots.
	MetricsStream = "ADALERT_METRICS"
	// MetricsConsumer is the fixed durable consumer name for ingest.
	MetricsConsumer = "adalert-ingest"
	// MetricsDeliverGroup is the fixed queue group for ingest workers.
	MetricsDeliverGroup = "adalert-workers"
	// AlertsSubject is the fixed subject for outbound alert batches.
	AlertsSubject = "adalert.alerts"

	// NotifyChannelTelegram identifies Telegram transport.
	NotifyChannelTelegram = "telegram"
	// NotifyChannelWebhook identifies generic HTTP transport.
	NotifyChannelWebhook = "webhook"
	// NotifyChannelNATS identifies JetStream alert publication.
	NotifyChannelNATS = "nats"

	// WebhookFormatJSON posts the raw alert batch to the webhook.
	WebhookFormatJSON = "json"
	// WebhookFormatEmail posts a subject/html envelope for a mail relay.
	WebhookFormatEmail = "email"

	// SnapshotModeFull selects the full derived-metrics pipeline.
	SnapshotModeFull = "full"
	// SnapshotModeLight selects the lightweight pipeline variant.
	SnapshotModeLight = "light"
)

// Config holds service runtime settings, alert rules, and formula bindings.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service ServiceConfig                   `toml:"service"`
	Log     LogConfig                       `toml:"log"`
	Engine  EngineConfig                    `toml:"engine"`
	Ingest  IngestConfig                    `toml:"ingest"`
	Notify  NotifyConfig                    `toml:"notify"`
	Rule    []domain.AlertRule              `toml:"-"`
	Formula map[string]domain.CustomFormula `toml:"-"`
}

// ServiceConfig contains process-level settings.
// Params: name, reload policy, and history retention bounds.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name              string `toml:"name"`
	ReloadEnabled     bool   `toml:"reload_enabled"`
	ReloadIntervalSec int    `toml:"reload_interval_sec"`
	HistoryMaxDays    int    `toml:"history_max_days"`
	HistoryIdleSec    int    `toml:"history_idle_sec"`
	HistoryMaxScopes  int    `toml:"history_max_scopes"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: enable flag, level, format, and file path for file sinks.
// Returns: sink behavior options.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// EngineConfig tunes the derived-metrics pipeline.
// Params: snapshot mode, attribution inputs, and time-decay factor.
// Returns: pipeline options passed through to KPI computation.
type EngineConfig struct {
	SnapshotMode         string   `toml:"snapshot_mode"`
	AttributionModel     string   `toml:"attribution_model"`
	AverageLifetimeValue *float64 `toml:"average_lifetime_value"`
	TimeDecayFactor      float64  `toml:"time_decay_factor"`
}

// KpiConfig derives formula-engine KPI options from engine settings.
// Params: none.
// Returns: KPI config pointer, nil when no optional input is set.
func (e EngineConfig) KpiConfig() *formula.KpiConfig {
	if e.AttributionModel == "" && e.AverageLifetimeValue == nil {
		return nil
	}
	return &formula.KpiConfig{
		AverageLifetimeValue: e.AverageLifetimeValue,
		AttributionModel:     e.AttributionModel,
		TimeDecayFactor:      e.TimeDecayFactor,
	}
}

// IngestConfig defines inbound snapshot interfaces.
// Params: embedded HTTP and NATS subscription controls.
// Returns: ingestion runtime options.
type IngestConfig struct {
	HTTP HTTPIngestConfig `toml:"http"`
	NATS NATSIngestConfig `toml:"nats"`
}

// HTTPIngestConfig configures the HTTP snapshot ingestion endpoint.
// Params: enable flag, listen/endpoints, and optional body size limit.
// Returns: HTTP ingest behavior.
type HTTPIngestConfig struct {
	Enabled      bool   `toml:"enabled"`
	Listen       string `toml:"listen"`
	HealthPath   string `toml:"health_path"`
	ReadyPath    string `toml:"ready_path"`
	IngestPath   string `toml:"ingest_path"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// NATSIngestConfig configures JetStream queue-consumer ingestion.
// Params: connection + worker/ack/redelivery policy; routing keys are fixed.
// Returns: NATS ingest behavior.
type NATSIngestConfig struct {
	Enabled       bool     `toml:"enabled"`
	URL           []string `toml:"url"`
	Workers       int      `toml:"workers"`
	AckWaitSec    int      `toml:"ack_wait_sec"`
	NackDelayMS   int      `toml:"nack_delay_ms"`
	MaxDeliver    int      `toml:"max_deliver"`
	MaxAckPending int      `toml:"max_ack_pending"`
}

// NotifyConfig defines outbound alert delivery behavior.
// Params: severity floor and per-channel transport settings.
// Returns: notification controls.
type NotifyConfig struct {
	MinSeverity string           `toml:"min_severity"`
	Telegram    TelegramNotifier `toml:"telegram"`
	Webhook     WebhookNotifier  `toml:"webhook"`
	NATS        NATSNotifier     `toml:"nats"`
}

// TelegramNotifier defines Telegram channel settings.
// Params: enabled flag, bot token, chat ID, and retry policy.
// Returns: Telegram sender configuration.
type TelegramNotifier struct {
	Enabled  bool        `toml:"enabled"`
	BotToken string      `toml:"bot_token"`
	ChatID   string      `toml:"chat_id"`
	Retry    NotifyRetry `toml:"retry"`
}

// WebhookNotifier defines the generic outbound HTTP endpoint.
// Params: URL, method, timeout, payload format, static headers, retry policy.
// Returns: webhook sender configuration.
type WebhookNotifier struct {
	Enabled    bool              `toml:"enabled"`
	URL        string            `toml:"url"`
	Method     string            `toml:"method"`
	TimeoutSec int               `toml:"timeout_sec"`
	Format     string            `toml:"format"`
	Headers    map[string]string `toml:"headers"`
	Retry      NotifyRetry       `toml:"retry"`
}

// NATSNotifier defines JetStream publication of alert batches.
// Params: enabled flag and connection URLs; subject is runtime-fixed.
// Returns: NATS publisher configuration.
type NATSNotifier struct {
	Enabled bool     `toml:"enabled"`
	URL     []string `toml:"url"`
}

// NotifyRetry configures outbound delivery retries.
// Params: retry toggle, backoff shape, delays, and attempt limit.
// Returns: retry policy for notifications.
type NotifyRetry struct {
	Enabled     bool   `toml:"enabled"`
	Backoff     string `toml:"backoff"`
	InitialMS   int    `toml:"initial_ms"`
	MaxMS       int    `toml:"max_ms"`
	MaxAttempts int    `toml:"max_attempts"`
}

// rawConfig mirrors the TOML model before runtime normalization.
// Params: decoded sections from one TOML source.
// Returns: raw rule/formula maps keyed by table name.
type rawConfig struct {
	Service ServiceConfig               `toml:"service"`
	Log     LogConfig                   `toml:"log"`
	Engine  EngineConfig                `toml:"engine"`
	Ingest  IngestConfig                `toml:"ingest"`
	Notify  NotifyConfig                `toml:"notify"`
	Rule    map[string]rawRuleConfig    `toml:"rule"`
	Formula map[string]rawFormulaConfig `toml:"formula"`
}

// rawRuleConfig stores one rule body from a `[rule.<name>]` table.
// Params: rule fields except the key-derived name.
// Returns: intermediate rule body used for normalization.
type rawRuleConfig struct {
	ID          string       `toml:"id"`
	Type        string       `toml:"type"`
	Metric      string       `toml:"metric"`
	Severity    string       `toml:"severity"`
	Enabled     *bool        `toml:"enabled"`
	ProviderID  string       `toml:"provider_id"`
	CampaignID  string       `toml:"campaign_id"`
	FormulaID   string       `toml:"formula_id"`
	InsightType string       `toml:"insight_type"`
	Channels    []string     `toml:"channels"`
	Condition   rawCondition `toml:"condition"`
}

// rawCondition stores the flat condition table before union normalization.
// Params: superset of the three condition variants.
// Returns: intermediate condition body.
type rawCondition struct {
	Type                string   `toml:"type"`
	Operator            string   `toml:"operator"`
	Value               *float64 `toml:"value"`
	DeviationMultiplier float64  `toml:"deviation_multiplier"`
	BaselineDays        int      `toml:"baseline_days"`
	Direction           string   `toml:"direction"`
	ConsecutivePeriods  int      `toml:"consecutive_periods"`
	MinChangePercent    float64  `toml:"min_change_percent"`
}

// rawFormulaConfig stores one formula body from a `[formula.<id>]` table.
// Params: formula text and referenced input field names.
// Returns: intermediate formula body.
type rawFormulaConfig struct {
	Formula string   `toml:"formula"`
	Inputs  []string `toml:"inputs"`
}

// ConfigSource describes file or directory config source.
// Params: exactly one of file path or directory path.
// Returns: normalized source descriptor.
type ConfigSource struct {
	File string
	Dir  string
}

// FromCLI builds normalized source configuration from input paths.
// Params: optional file and directory arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)

	if filePath == "" && dirPath == "" {
		return ConfigSource{}, errors.New("either --config-file or --config-dir must be provided")
	}
	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}

	if filePath != "" {
		return ConfigSource{File: filePath}, nil
	}
	return ConfigSource{Dir: dirPath}, nil
}

// LoadSnapshot loads and validates configuration from one source.
// Params: source selects file or directory mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	if src.File != "" {
		cfg, err = loadFile(src.File)
	} else {
		cfg, err = loadDir(src.Dir)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile reads one TOML configuration file.
// Params: file path to config snapshot.
// Returns: decoded config or read/decode error.
func loadFile(path string) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	var raw rawConfig
	if err := toml.Unmarshal(body, &raw); err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	cfg, err := normalizeRawConfig(raw)
	if err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	return cfg, nil
}

// loadDir reads and merges TOML files from one directory.
// Params: directory containing config fragments.
// Returns: merged config snapshot or load/decode error.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	merged.Formula = make(map[string]domain.CustomFormula)
	for _, file := range files {
		fragment, err := loadFile(file)
		if err != nil {
			return Config{}, err
		}
		mergeConfig(&merged, fragment)
	}
	return merged, nil
}

// mergeConfig overlays one fragment onto the destination. Scalar sections
// replace wholesale; rules and formulas accumulate across fragments.
// Params: destination config and next fragment.
// Returns: merged configuration side-effect in dst.
func mergeConfig(dst *Config, src Config) {
	if src.Service != (ServiceConfig{}) {
		dst.Service = src.Service
	}
	if src.Log != (LogConfig{}) {
		dst.Log = src.Log
	}
	if src.Engine != (EngineConfig{}) {
		dst.Engine = src.Engine
	}
	if hasIngestConfig(src.Ingest) {
		dst.Ingest = src.Ingest
	}
	if hasNotifyConfig(src.Notify) {
		dst.Notify = src.Notify
	}
	dst.Rule = append(dst.Rule, src.Rule...)
	for id, customFormula := range src.Formula {
		dst.Formula[id] = customFormula
	}
}

// hasIngestConfig reports whether a fragment carries ingest settings.
// Params: decoded ingest section.
// Returns: true when any HTTP or NATS field is set.
func hasIngestConfig(cfg IngestConfig) bool {
	if cfg.HTTP != (HTTPIngestConfig{}) {
		return true
	}
	return cfg.NATS.Enabled || len(cfg.NATS.URL) > 0 || cfg.NATS.Workers != 0 ||
		cfg.NATS.AckWaitSec != 0 || cfg.NATS.NackDelayMS != 0 ||
		cfg.NATS.MaxDeliver != 0 || cfg.NATS.MaxAckPending != 0
}

// hasNotifyConfig reports whether a fragment carries notify settings.
// Params: decoded notify section.
// Returns: true when any channel or the severity floor is set.
func hasNotifyConfig(cfg NotifyConfig) bool {
	return cfg.MinSeverity != "" ||
		cfg.Telegram != (TelegramNotifier{}) ||
		cfg.Webhook.Enabled || cfg.Webhook.URL != "" ||
		cfg.NATS.Enabled || len(cfg.NATS.URL) > 0
}

// normalizeRawConfig converts the raw TOML model to runtime config.
// Params: decoded raw config from one file.
// Returns: normalized config snapshot with deterministic rule order.
func normalizeRawConfig(raw rawConfig) (Config, error) {
	cfg := Config{
		Service: raw.Service,
		Log:     raw.Log,
		Engine:  raw.Engine,
		Ingest:  raw.Ingest,
		Notify:  raw.Notify,
		Formula: make(map[string]domain.CustomFormula, len(raw.Formula)),
	}

	for id, body := range raw.Formula {
		cfg.Formula[id] = domain.CustomFormula{Formula: body.Formula, Inputs: body.Inputs}
	}

	if len(raw.Rule) == 0 {
		return cfg, nil
	}
	names := make([]string, 0, len(raw.Rule))
	for name := range raw.Rule {
		names = append(names, name)
	}
	sort.Strings(names)

	cfg.Rule = make([]domain.AlertRule, 0, len(names))
	for _, name := range names {
		body := raw.Rule[name]
		rule, err := normalizeRule(name, body)
		if err != nil {
			return Config{}, fmt.Errorf("rule.%s: %w", name, err)
		}
		cfg.Rule = append(cfg.Rule, rule)
	}
	return cfg, nil
}

// normalizeRule converts one raw rule table into a domain rule.
// Params: rule table name and decoded body.
// Returns: domain rule or normalization error.
func normalizeRule(name string, body rawRuleConfig) (domain.AlertRule, error) {
	enabled := true
	if body.Enabled != nil {
		enabled = *body.Enabled
	}
	rule := domain.AlertRule{
		ID:          body.ID,
		Name:        name,
		Type:        domain.RuleType(body.Type),
		Metric:      body.Metric,
		Severity:    domain.Severity(body.Severity),
		Enabled:     enabled,
		ProviderID:  body.ProviderID,
		CampaignID:  body.CampaignID,
		FormulaID:   body.FormulaID,
		InsightType: body.InsightType,
		Channels:    body.Channels,
	}
	if rule.ID == "" {
		rule.ID = name
	}

	if rule.Type != domain.RuleTypeAlgorithmic {
		condition, err := normalizeCondition(rule.Type, body.Condition)
		if err != nil {
			return domain.AlertRule{}, err
		}
		rule.Condition = condition
	}
	return rule, nil
}

// normalizeCondition converts the flat condition table into the union.
// Params: owning rule type (used when condition.type is omitted) and body.
// Returns: condition union or normalization error.
func normalizeCondition(ruleType domain.RuleType, body rawCondition) (domain.AlertCondition, error) {
	conditionType := domain.ConditionType(body.Type)
	if body.Type == "" {
		conditionType = domain.ConditionType(ruleType)
	}

	switch conditionType {
	case domain.ConditionThreshold:
		if body.Value == nil {
			return domain.AlertCondition{}, errors.New("condition.value is required for threshold rules")
		}
		return domain.AlertCondition{
			Type:      domain.ConditionThreshold,
			Threshold: &domain.ThresholdCondition{Operator: body.Operator, Value: *body.Value},
		}, nil
	case domain.ConditionAnomaly:
		return domain.AlertCondition{
			Type: domain.ConditionAnomaly,
			Anomaly: &domain.AnomalyCondition{
				DeviationMultiplier: body.DeviationMultiplier,
				BaselineDays:        body.BaselineDays,
				Direction:           body.Direction,
			},
		}, nil
	case domain.ConditionTrend:
		return domain.AlertCondition{
			Type: domain.ConditionTrend,
			Trend: &domain.TrendCondition{
				Direction:          body.Direction,
				ConsecutivePeriods: body.ConsecutivePeriods,
				MinChangePercent:   body.MinChangePercent,
			},
		}, nil
	default:
		return domain.AlertCondition{}, fmt.Errorf("unsupported condition type %q", body.Type)
	}
}

// applyDefaults fills unset configuration fields in place.
// Params: decoded config snapshot.
// Returns: defaults side-effect in cfg.
func applyDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = defaultServiceName
	}
	if cfg.Service.ReloadIntervalSec <= 0 {
		cfg.Service.ReloadIntervalSec = defaultReloadSeconds
	}
	if cfg.Service.HistoryMaxDays <= 0 {
		cfg.Service.HistoryMaxDays = defaultHistoryMaxDays
	}
	if cfg.Service.HistoryIdleSec <= 0 {
		cfg.Service.HistoryIdleSec = defaultHistoryIdleSec
	}

	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	fillLogSinkDefaults(&cfg.Log.Console)
	fillLogSinkDefaults(&cfg.Log.File)

	if cfg.Engine.SnapshotMode == "" {
		cfg.Engine.SnapshotMode = SnapshotModeFull
	}
	if cfg.Engine.TimeDecayFactor <= 0 || cfg.Engine.TimeDecayFactor > 1 {
		cfg.Engine.TimeDecayFactor = formula.DefaultTimeDecayFactor
	}

	if cfg.Ingest.HTTP.Listen == "" {
		cfg.Ingest.HTTP.Listen = defaultHTTPListen
	}
	if cfg.Ingest.HTTP.HealthPath == "" {
		cfg.Ingest.HTTP.HealthPath = defaultHealthPath
	}
	if cfg.Ingest.HTTP.ReadyPath == "" {
		cfg.Ingest.HTTP.ReadyPath = defaultReadyPath
	}
	if cfg.Ingest.HTTP.IngestPath == "" {
		cfg.Ingest.HTTP.IngestPath = defaultIngestPath
	}
	if cfg.Ingest.HTTP.MaxBodyBytes <= 0 {
		cfg.Ingest.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}
	if len(cfg.Ingest.NATS.URL) == 0 {
		cfg.Ingest.NATS.URL = []string{defaultNATSURL}
	}
	if cfg.Ingest.NATS.Workers <= 0 {
		cfg.Ingest.NATS.Workers = defaultNATSWorkers
	}
	if cfg.Ingest.NATS.AckWaitSec <= 0 {
		cfg.Ingest.NATS.AckWaitSec = defaultNATSAckWaitSec
	}
	if cfg.Ingest.NATS.NackDelayMS <= 0 {
		cfg.Ingest.NATS.NackDelayMS = defaultNATSNackDelayMS
	}
	if cfg.Ingest.NATS.MaxDeliver == 0 {
		cfg.Ingest.NATS.MaxDeliver = defaultNATSMaxDeliver
	}
	if cfg.Ingest.NATS.MaxAckPending <= 0 {
		cfg.Ingest.NATS.MaxAckPending = defaultNATSMaxAckPending
	}

	if cfg.Notify.MinSeverity == "" {
		cfg.Notify.MinSeverity = string(domain.SeverityWarning)
	}
	if cfg.Notify.Webhook.Method == "" {
		cfg.Notify.Webhook.Method = defaultWebhookMethod
	}
	if cfg.Notify.Webhook.TimeoutSec <= 0 {
		cfg.Notify.Webhook.TimeoutSec = defaultWebhookTimeoutSec
	}
	if cfg.Notify.Webhook.Format == "" {
		cfg.Notify.Webhook.Format = WebhookFormatJSON
	}
	if len(cfg.Notify.NATS.URL) == 0 {
		cfg.Notify.NATS.URL = cfg.Ingest.NATS.URL
	}
	fillNotifyRetryDefaults(&cfg.Notify.Telegram.Retry)
	fillNotifyRetryDefaults(&cfg.Notify.Webhook.Retry)

	if cfg.Formula == nil {
		cfg.Formula = make(map[string]domain.CustomFormula)
	}
}

// fillLogSinkDefaults fills unset sink fields in place.
// Params: one sink config.
// Returns: defaults side-effect in sink.
func fillLogSinkDefaults(sink *LogSinkConfig) {
	if sink.Level == "" {
		sink.Level = "info"
	}
	if sink.Format == "" {
		sink.Format = "line"
	}
}

// fillNotifyRetryDefaults fills unset retry fields in place.
// Params: one retry policy.
// Returns: defaults side-effect in retry.
func fillNotifyRetryDefaults(retry *NotifyRetry) {
	if retry.Backoff == "" {
		retry.Backoff = defaultRetryBackoff
	}
	if retry.InitialMS <= 0 {
		retry.InitialMS = defaultRetryInitialMS
	}
	if retry.MaxMS <= 0 {
		retry.MaxMS = defaultRetryMaxMS
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultRetryMaxAttempts
	}
}

// validateConfig checks one loaded snapshot for contract violations.
// Params: config after defaults.
// Returns: first validation error.
func validateConfig(cfg Config) error {
	if err := validateLogSink("log.console", cfg.Log.Console, false); err != nil {
		return err
	}
	if err := validateLogSink("log.file", cfg.Log.File, true); err != nil {
		return err
	}

	switch cfg.Engine.SnapshotMode {
	case SnapshotModeFull, SnapshotModeLight:
	default:
		return fmt.Errorf("engine.snapshot_mode %q is not supported", cfg.Engine.SnapshotMode)
	}
	switch cfg.Engine.AttributionModel {
	case "", "lastClick", "firstClick", "linear", "timeDecay":
	default:
		return fmt.Errorf("engine.attribution_model %q is not supported", cfg.Engine.AttributionModel)
	}

	if !cfg.Ingest.HTTP.Enabled && !cfg.Ingest.NATS.Enabled {
		return errors.New("at least one ingest interface must be enabled")
	}

	switch domain.Severity(cfg.Notify.MinSeverity) {
	case domain.SeverityInfo, domain.SeverityWarning, domain.SeverityCritical:
	default:
		return fmt.Errorf("notify.min_severity %q is not supported", cfg.Notify.MinSeverity)
	}
	if cfg.Notify.Telegram.Enabled {
		if strings.TrimSpace(cfg.Notify.Telegram.BotToken) == "" {
			return errors.New("notify.telegram.bot_token is required when telegram is enabled")
		}
		if strings.TrimSpace(cfg.Notify.Telegram.ChatID) == "" {
			return errors.New("notify.telegram.chat_id is required when telegram is enabled")
		}
	}
	if cfg.Notify.Webhook.Enabled {
		if strings.TrimSpace(cfg.Notify.Webhook.URL) == "" {
			return errors.New("notify.webhook.url is required when webhook is enabled")
		}
		switch cfg.Notify.Webhook.Format {
		case WebhookFormatJSON, WebhookFormatEmail:
		default:
			return fmt.Errorf("notify.webhook.format %q is not supported", cfg.Notify.Webhook.Format)
		}
	}

	for id, customFormula := range cfg.Formula {
		if err := validateFormula(customFormula); err != nil {
			return fmt.Errorf("formula.%s: %w", id, err)
		}
	}

	seenIDs := make(map[string]string, len(cfg.Rule))
	for _, rule := range cfg.Rule {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("rule.%s: %w", rule.Name, err)
		}
		if previous, ok := seenIDs[rule.ID]; ok {
			return fmt.Errorf("rule.%s: id %q already used by rule.%s", rule.Name, rule.ID, previous)
		}
		seenIDs[rule.ID] = rule.Name
		if rule.FormulaID != "" {
			if _, ok := cfg.Formula[rule.FormulaID]; !ok {
				return fmt.Errorf("rule.%s: formula %q is not defined", rule.Name, rule.FormulaID)
			}
		}
		for _, channel := range rule.Channels {
			if !IsSupportedNotifyChannel(channel) {
				return fmt.Errorf("rule.%s: unsupported notify channel %q", rule.Name, channel)
			}
		}
	}
	return nil
}

// validateFormula checks one custom formula binding.
// Params: formula body.
// Returns: validation error for empty/oversized text or unknown inputs.
func validateFormula(customFormula domain.CustomFormula) error {
	if strings.TrimSpace(customFormula.Formula) == "" {
		return errors.New("formula text is required")
	}
	if len(customFormula.Formula) > formula.MaxFormulaLength {
		return fmt.Errorf("formula exceeds %d bytes", formula.MaxFormulaLength)
	}
	if len(customFormula.Inputs) == 0 {
		return errors.New("at least one input field is required")
	}
	supported := domain.SupportedMetrics()
	for _, input := range customFormula.Inputs {
		found := false
		for _, metric := range supported {
			if input == metric {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unsupported input field %q", input)
		}
	}
	return nil
}

// validateLogSink checks one logging sink.
// Params: sink path prefix, sink config, and whether a path is required.
// Returns: validation error for unsupported level/format or missing path.
func validateLogSink(name string, sink LogSinkConfig, requirePath bool) error {
	if !sink.Enabled {
		return nil
	}
	switch sink.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s.level %q is not supported", name, sink.Level)
	}
	switch sink.Format {
	case "line", "json":
	default:
		return fmt.Errorf("%s.format %q is not supported", name, sink.Format)
	}
	if requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required", name)
	}
	return nil
}

// NotifyChannelNames lists supported notify channels in stable order.
// Params: none.
// Returns: channel name list.
func NotifyChannelNames() []string {
	return []string{NotifyChannelTelegram, NotifyChannelWebhook, NotifyChannelNATS}
}

// IsSupportedNotifyChannel reports whether a channel name is known.
// Params: channel name.
// Returns: true for supported channels.
func IsSupportedNotifyChannel(channel string) bool {
	for _, name := range NotifyChannelNames() {
		if name == channel {
			return true
		}
	}
	return false
}
