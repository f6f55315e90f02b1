package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"adalert/internal/config"
	"adalert/internal/domain"
	"adalert/internal/permanent"
)

func sampleBatch() domain.AlertEvaluationResult {
	return domain.AlertEvaluationResult{
		RulesEvaluated: 2,
		RulesTriggered: 1,
		Results: []domain.AlertResult{
			{RuleID: "r1", RuleName: "roas floor", Triggered: true, Severity: domain.SeverityWarning, Message: "roas is 1.20"},
		},
		EvaluatedAt: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}
}

type flakySender struct {
	failures  int
	calls     int
	permanent bool
}

func (s *flakySender) Channel() string { return "flaky" }

func (s *flakySender) Send(_ context.Context, _ domain.AlertEvaluationResult) (SendResult, error) {
	s.calls++
	if s.calls <= s.failures {
		err := errors.New("transient failure")
		if s.permanent {
			return SendResult{}, permanent.Mark(err)
		}
		return SendResult{}, err
	}
	return SendResult{MessageID: s.calls}, nil
}

func retryPolicy(maxAttempts int) config.NotifyRetry {
	return config.NotifyRetry{
		Enabled:     true,
		Backoff:     "exponential",
		InitialMS:   1,
		MaxMS:       4,
		MaxAttempts: maxAttempts,
	}
}

func TestSendWithRetryRecovers(t *testing.T) {
	t.Parallel()

	dispatcher := &Dispatcher{}
	sender := &flakySender{failures: 2}

	result, err := dispatcher.sendWithRetry(context.Background(), sender, sampleBatch(), retryPolicy(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.calls != 3 || result.MessageID != 3 {
		t.Fatalf("expected success on third attempt, got calls=%d result=%+v", sender.calls, result)
	}
}

func TestSendWithRetryExhaustsAttempts(t *testing.T) {
	t.Parallel()

	dispatcher := &Dispatcher{}
	sender := &flakySender{failures: 100}

	_, err := dispatcher.sendWithRetry(context.Background(), sender, sampleBatch(), retryPolicy(3))
	if err == nil || !strings.Contains(err.Error(), "failed after 3 attempts") {
		t.Fatalf("expected attempt exhaustion, got %v", err)
	}
	if sender.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", sender.calls)
	}
}

func TestSendWithRetryStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	dispatcher := &Dispatcher{}
	sender := &flakySender{failures: 100, permanent: true}

	_, err := dispatcher.sendWithRetry(context.Background(), sender, sampleBatch(), retryPolicy(5))
	if err == nil || !strings.Contains(err.Error(), "failed permanently") {
		t.Fatalf("expected permanent failure, got %v", err)
	}
	if sender.calls != 1 {
		t.Fatalf("expected single attempt for permanent error, got %d", sender.calls)
	}
}

func TestSendWithRetryDisabledPolicy(t *testing.T) {
	t.Parallel()

	dispatcher := &Dispatcher{}
	sender := &flakySender{failures: 1}

	_, err := dispatcher.sendWithRetry(context.Background(), sender, sampleBatch(), config.NotifyRetry{})
	if err == nil {
		t.Fatal("expected single failed attempt without retries")
	}
	if sender.calls != 1 {
		t.Fatalf("expected one attempt, got %d", sender.calls)
	}
}

func TestDispatchUnknownChannel(t *testing.T) {
	t.Parallel()

	dispatcher := NewDispatcher(config.NotifyConfig{}, nil)
	err := dispatcher.Dispatch(context.Background(), []string{"pager"}, sampleBatch())
	if err == nil || !strings.Contains(err.Error(), `channel "pager" is not configured`) {
		t.Fatalf("expected unknown channel error, got %v", err)
	}
	if len(dispatcher.Channels()) != 0 {
		t.Fatalf("expected no configured channels, got %v", dispatcher.Channels())
	}
}

func TestWebhookSenderJSONFormat(t *testing.T) {
	t.Parallel()

	var received domain.AlertEvaluationResult
	var header http.Header
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		header = request.Header.Clone()
		if err := json.NewDecoder(request.Body).Decode(&received); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewWebhookSender(config.WebhookNotifier{
		Enabled: true,
		URL:     server.URL,
		Format:  config.WebhookFormatJSON,
		Headers: map[string]string{"X-Token": "secret"},
	})
	if _, err := sender.Send(context.Background(), sampleBatch()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received.RulesTriggered != 1 || len(received.Results) != 1 {
		t.Fatalf("unexpected payload %+v", received)
	}
	if header.Get("X-Token") != "secret" || header.Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected headers %v", header)
	}
}

func TestWebhookSenderEmailFormat(t *testing.T) {
	t.Parallel()

	var envelope struct {
		Subject string `json:"subject"`
		HTML    string `json:"html"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if err := json.NewDecoder(request.Body).Decode(&envelope); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		writer.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewWebhookSender(config.WebhookNotifier{
		Enabled: true,
		URL:     server.URL,
		Format:  config.WebhookFormatEmail,
	})
	if _, err := sender.Send(context.Background(), sampleBatch()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(envelope.Subject, "1 alerts triggered") {
		t.Fatalf("unexpected subject %q", envelope.Subject)
	}
	if !strings.Contains(envelope.HTML, "roas floor") {
		t.Fatalf("unexpected html %q", envelope.HTML)
	}
}

func TestWebhookSenderClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	sender := NewWebhookSender(config.WebhookNotifier{Enabled: true, URL: server.URL})
	_, err := sender.Send(context.Background(), sampleBatch())
	if err == nil || !permanent.Is(err) {
		t.Fatalf("expected permanent error for 4xx, got %v", err)
	}
}

func TestWebhookSenderServerErrorIsRetryable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewWebhookSender(config.WebhookNotifier{Enabled: true, URL: server.URL})
	_, err := sender.Send(context.Background(), sampleBatch())
	if err == nil || permanent.Is(err) {
		t.Fatalf("expected retryable error for 5xx, got %v", err)
	}
	if !strings.Contains(err.Error(), "status=502") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestTelegramSenderRequiresCredentials(t *testing.T) {
	t.Parallel()

	sender := NewTelegramSender(config.TelegramNotifier{Enabled: true})
	_, err := sender.Send(context.Background(), sampleBatch())
	if err == nil || !permanent.Is(err) {
		t.Fatalf("expected permanent init error, got %v", err)
	}
}

func TestNormalizeChatID(t *testing.T) {
	t.Parallel()

	if got := normalizeChatID(" -1001234 "); got != int64(-1001234) {
		t.Fatalf("expected numeric chat id, got %v", got)
	}
	if got := normalizeChatID("@ads_alerts"); got != "@ads_alerts" {
		t.Fatalf("expected string chat id, got %v", got)
	}
}

func TestNewDispatcherChannels(t *testing.T) {
	t.Parallel()

	cfg := config.NotifyConfig{
		Telegram: config.TelegramNotifier{Enabled: true, BotToken: "t", ChatID: "1"},
		Webhook:  config.WebhookNotifier{Enabled: true, URL: "http://localhost:1"},
	}
	dispatcher := NewDispatcher(cfg, nil)
	channels := dispatcher.Channels()
	if len(channels) != 2 || channels[0] != config.NotifyChannelTelegram || channels[1] != config.NotifyChannelWebhook {
		t.Fatalf("unexpected channels %v", channels)
	}
}
