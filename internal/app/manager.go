// Package app wires ingest, history, the derived pipeline, rule evaluation,
// and notification delivery into one runtime.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"adalert/internal/clock"
	"adalert/internal/config"
	"adalert/internal/derived"
	"adalert/internal/domain"
	"adalert/internal/evaluator"
	"adalert/internal/history"
	"adalert/internal/notify"
)

// Manager owns the history store, the active rule set, and the alert path
// from one decoded snapshot to dispatched notifications.
// Params: config snapshot, history store, dispatcher, and clock.
// Returns: snapshot sink for ingest interfaces.
type Manager struct {
	mu          sync.RWMutex
	ruleSet     []domain.AlertRule
	formulas    map[string]domain.CustomFormula
	engine      config.EngineConfig
	minSeverity domain.Severity

	logger     *slog.Logger
	store      *history.Store
	dispatcher *notify.Dispatcher
	clock      clock.Clock

	derivedMu sync.RWMutex
	derivedBy map[string]domain.DerivedMetricsResult
}

// NewManager builds the manager from a validated config snapshot.
// Params: config, logger, history store, dispatcher, and clock.
// Returns: initialized manager.
func NewManager(cfg config.Config, logger *slog.Logger, store *history.Store, dispatcher *notify.Dispatcher, clk clock.Clock) *Manager {
	return &Manager{
		ruleSet:     cfg.Rule,
		formulas:    cfg.Formula,
		engine:      cfg.Engine,
		minSeverity: domain.Severity(cfg.Notify.MinSeverity),
		logger:      logger,
		store:       store,
		dispatcher:  dispatcher,
		clock:       clk,
		derivedBy:   make(map[string]domain.DerivedMetricsResult),
	}
}

// Push processes one decoded metric snapshot end to end: history update,
// derived pipeline, rule evaluation, and notification dispatch.
// Params: decoded snapshot from an ingest interface.
// Returns: validation or processing error.
func (m *Manager) Push(snapshot domain.MetricSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("reject snapshot: %w", err)
	}
	return m.process(context.Background(), snapshot)
}

// process runs the alert path for one valid snapshot.
// Params: context and validated snapshot.
// Returns: dispatch error; evaluation itself cannot fail.
func (m *Manager) process(ctx context.Context, snapshot domain.MetricSnapshot) error {
	now := m.clock.Now()

	dates := distinctDates(snapshot.Metrics)
	for _, date := range dates {
		day := domain.AggregateDaily(snapshot.Metrics, date)
		m.store.Record(snapshot.ProviderID, snapshot.CampaignID, day, now)
	}

	current, ok := m.store.Latest(snapshot.ProviderID, snapshot.CampaignID)
	if !ok {
		return nil
	}
	input := evaluator.Input{
		ProviderID: snapshot.ProviderID,
		CampaignID: snapshot.CampaignID,
		Current:    current,
		History:    m.store.Window(snapshot.ProviderID, snapshot.CampaignID, 0),
		Metrics:    snapshot.Metrics,
	}

	ruleSet, formulas, engine, minSeverity := m.runtimeSnapshot()

	derivedResult := m.runDerived(engine, snapshot, now)
	m.logger.Info("derived snapshot computed",
		"provider_id", snapshot.ProviderID,
		"campaign_id", snapshot.CampaignID,
		"weighted_roas", derivedResult.WeightedRoas,
		"mode", engine.SnapshotMode,
	)

	batch := evaluator.EvaluateAlerts(ruleSet, input, formulas, now)
	m.logger.Info("alert rules evaluated",
		"provider_id", snapshot.ProviderID,
		"campaign_id", snapshot.CampaignID,
		"evaluated", batch.RulesEvaluated,
		"triggered", batch.RulesTriggered,
	)

	return m.dispatch(ctx, ruleSet, batch, minSeverity)
}

// runDerived executes the configured pipeline variant and caches the result
// per scope for read-side consumers.
// Params: engine config, snapshot, and processing time.
// Returns: derived metrics snapshot.
func (m *Manager) runDerived(engine config.EngineConfig, snapshot domain.MetricSnapshot, now time.Time) domain.DerivedMetricsResult {
	var result domain.DerivedMetricsResult
	if engine.SnapshotMode == config.SnapshotModeLight {
		result = derived.CalculateLight(snapshot.Metrics, engine.KpiConfig(), now)
	} else {
		result = derived.Calculate(snapshot.Metrics, engine.KpiConfig(), now)
	}

	m.derivedMu.Lock()
	m.derivedBy[snapshot.ProviderID+"\x00"+snapshot.CampaignID] = result
	m.derivedMu.Unlock()
	return result
}

// DerivedSnapshot returns the last derived result for one scope.
// Params: scope IDs.
// Returns: cached snapshot and existence flag.
func (m *Manager) DerivedSnapshot(providerID, campaignID string) (domain.DerivedMetricsResult, bool) {
	m.derivedMu.RLock()
	defer m.derivedMu.RUnlock()
	result, ok := m.derivedBy[providerID+"\x00"+campaignID]
	return result, ok
}

// dispatch filters the batch to triggered results at or above the severity
// floor and fans it out to the union of channels the matching rules request.
// Params: active rule set, evaluated batch, and severity floor.
// Returns: joined channel delivery error.
func (m *Manager) dispatch(ctx context.Context, ruleSet []domain.AlertRule, batch domain.AlertEvaluationResult, minSeverity domain.Severity) error {
	ruleChannels := make(map[string][]string, len(ruleSet))
	for _, rule := range ruleSet {
		ruleChannels[rule.ID] = rule.Channels
	}

	outbound := domain.AlertEvaluationResult{
		RulesEvaluated: batch.RulesEvaluated,
		EvaluatedAt:    batch.EvaluatedAt,
	}
	channelSet := make(map[string]struct{})
	for _, result := range batch.Results {
		if !result.Triggered || result.Severity.Rank() < minSeverity.Rank() {
			continue
		}
		outbound.Results = append(outbound.Results, result)
		outbound.RulesTriggered++
		for _, channel := range ruleChannels[result.RuleID] {
			channelSet[channel] = struct{}{}
		}
	}
	if outbound.RulesTriggered == 0 {
		return nil
	}

	channels := make([]string, 0, len(channelSet))
	for channel := range channelSet {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	dispatcher := m.dispatcherSnapshot()
	if dispatcher == nil {
		return nil
	}
	if err := dispatcher.Dispatch(ctx, channels, outbound); err != nil {
		return fmt.Errorf("dispatch alert batch: %w", err)
	}
	return nil
}

// Tick compacts idle history scopes on the service maintenance interval.
// Params: idle TTL and scope-count cap from service config.
// Returns: none.
func (m *Manager) Tick(idleTTL time.Duration, maxScopes int) {
	removed := m.store.Compact(m.clock.Now(), idleTTL, maxScopes)
	if removed > 0 {
		m.logger.Info("history scopes compacted", "removed", removed, "remaining", m.store.Len())
	}
}

// ApplyConfig swaps rules, formulas, and engine settings atomically.
// Params: next validated config snapshot.
// Returns: none; the history store is left untouched.
func (m *Manager) ApplyConfig(cfg config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ruleSet = cfg.Rule
	m.formulas = cfg.Formula
	m.engine = cfg.Engine
	m.minSeverity = domain.Severity(cfg.Notify.MinSeverity)
}

// SetDispatcher replaces the notification dispatcher after a reload.
// Params: next dispatcher.
// Returns: none.
func (m *Manager) SetDispatcher(dispatcher *notify.Dispatcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatcher = dispatcher
}

// runtimeSnapshot reads the reloadable runtime fields under one lock.
// Params: none.
// Returns: rule set, formulas, engine config, and severity floor.
func (m *Manager) runtimeSnapshot() ([]domain.AlertRule, map[string]domain.CustomFormula, config.EngineConfig, domain.Severity) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ruleSet, m.formulas, m.engine, m.minSeverity
}

// dispatcherSnapshot reads the current dispatcher under the runtime lock.
// Params: none.
// Returns: active dispatcher, possibly nil in tests.
func (m *Manager) dispatcherSnapshot() *notify.Dispatcher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dispatcher
}

// distinctDates lists the distinct metric dates in ascending order.
// Params: normalized metric batch.
// Returns: sorted unique date strings.
func distinctDates(metrics []domain.NormalizedAdMetric) []string {
	seen := make(map[string]struct{}, len(metrics))
	var dates []string
	for _, metric := range metrics {
		if _, ok := seen[metric.Date]; ok {
			continue
		}
		seen[metric.Date] = struct{}{}
		dates = append(dates, metric.Date)
	}
	sort.Strings(dates)
	return dates
}
