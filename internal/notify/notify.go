// Package notify delivers evaluated alert batches to configured outbound
// channels with per-channel retry policies.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"adalert/internal/config"
	"adalert/internal/domain"
	"adalert/internal/evaluator"
	"adalert/internal/permanent"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/nats-io/nats.go"
)

// SendResult returns channel-specific metadata after successful delivery.
// Params: sender-specific metadata fields.
// Returns: optional message identifiers.
type SendResult struct {
	MessageID   int
	ExternalRef string
}

// ChannelSender sends one evaluated alert batch to one channel.
// Params: context and alert batch payload.
// Returns: channel send metadata and transport error when send fails.
type ChannelSender interface {
	Channel() string
	Send(ctx context.Context, batch domain.AlertEvaluationResult) (SendResult, error)
}

// Dispatcher delivers alert batches with configured retries/backoff.
// Params: sender list and retry policy.
// Returns: send helper for manager layer.
type Dispatcher struct {
	senders  map[string]ChannelSender
	channels []string
	retries  map[string]config.NotifyRetry
	logger   *slog.Logger
}

// NewDispatcher builds the notification dispatcher from enabled channels.
// Params: global notify config and optional logger.
// Returns: configured dispatcher with available senders.
func NewDispatcher(cfg config.NotifyConfig, logger *slog.Logger) *Dispatcher {
	senders := make(map[string]ChannelSender)
	retries := make(map[string]config.NotifyRetry)
	if cfg.Telegram.Enabled {
		senders[config.NotifyChannelTelegram] = NewTelegramSender(cfg.Telegram)
		retries[config.NotifyChannelTelegram] = cfg.Telegram.Retry
	}
	if cfg.Webhook.Enabled {
		senders[config.NotifyChannelWebhook] = NewWebhookSender(cfg.Webhook)
		retries[config.NotifyChannelWebhook] = cfg.Webhook.Retry
	}
	if cfg.NATS.Enabled {
		senders[config.NotifyChannelNATS] = NewNATSPublisher(cfg.NATS)
		retries[config.NotifyChannelNATS] = config.NotifyRetry{}
	}

	channels := make([]string, 0, len(senders))
	for channel := range senders {
		channels = append(channels, channel)
	}
	sort.Strings(channels)
	return &Dispatcher{
		senders:  senders,
		channels: channels,
		retries:  retries,
		logger:   logger,
	}
}

// Dispatch sends one alert batch to the requested channels.
// Params: context, destination channel list (empty means all configured),
// and evaluated alert batch.
// Returns: joined error over all failed channels.
func (d *Dispatcher) Dispatch(ctx context.Context, channels []string, batch domain.AlertEvaluationResult) error {
	targets := channels
	if len(targets) == 0 {
		targets = d.channels
	}

	var errs []error
	for _, channel := range targets {
		sender, ok := d.senders[channel]
		if !ok {
			errs = append(errs, fmt.Errorf("notify channel %q is not configured", channel))
			continue
		}
		if _, err := d.sendWithRetry(ctx, sender, batch, d.retries[channel]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sendWithRetry sends one batch with the channel-specific retry policy.
// Permanent errors abort immediately regardless of remaining attempts.
// Params: sender, payload, and retry policy for the sender channel.
// Returns: channel metadata and final error after retries.
func (d *Dispatcher) sendWithRetry(ctx context.Context, sender ChannelSender, batch domain.AlertEvaluationResult, retry config.NotifyRetry) (SendResult, error) {
	if !retry.Enabled {
		return sender.Send(ctx, batch)
	}

	attempt := 0
	backoff := time.Duration(retry.InitialMS) * time.Millisecond
	maxBackoff := time.Duration(retry.MaxMS) * time.Millisecond
	var timer *time.Timer

	for {
		attempt++
		result, err := sender.Send(ctx, batch)
		if err == nil {
			stopTimer(timer)
			if attempt > 1 && d.logger != nil {
				d.logger.Info("notify send recovered after retries", "channel", sender.Channel(), "attempt", attempt)
			}
			return result, nil
		}
		if d.logger != nil {
			d.logger.Warn("notify send attempt failed", "channel", sender.Channel(), "attempt", attempt, "error", err.Error())
		}
		if permanent.Is(err) {
			stopTimer(timer)
			return SendResult{}, fmt.Errorf("channel %s failed permanently: %w", sender.Channel(), err)
		}

		if retry.MaxAttempts > 0 && attempt >= retry.MaxAttempts {
			stopTimer(timer)
			return SendResult{}, fmt.Errorf("channel %s failed after %d attempts: %w", sender.Channel(), attempt, err)
		}

		if timer == nil {
			timer = time.NewTimer(backoff)
		} else {
			stopTimer(timer)
			timer.Reset(backoff)
		}
		select {
		case <-ctx.Done():
			stopTimer(timer)
			return SendResult{}, ctx.Err()
		case <-timer.C:
		}

		if strings.EqualFold(retry.Backoff, "exponential") {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// stopTimer stops a retry timer and drains its channel when needed.
// Params: possibly nil timer.
// Returns: none.
func stopTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}

// Channels returns configured channel list.
// Params: none.
// Returns: deterministic sender keys.
func (d *Dispatcher) Channels() []string {
	return d.channels
}

// Close releases transports holding long-lived connections.
// Params: none.
// Returns: first close error.
func (d *Dispatcher) Close() error {
	var errs []error
	for _, sender := range d.senders {
		if closer, ok := sender.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// TelegramSender sends alert summaries to the Telegram Bot API.
// Params: bot token and chat id from config.
// Returns: Telegram channel sender.
type TelegramSender struct {
	client  *tgbot.Bot
	chatID  any
	initErr error
}

// NewTelegramSender creates the Telegram sender with an HTTP client.
// Params: Telegram notifier config.
// Returns: initialized sender.
func NewTelegramSender(cfg config.TelegramNotifier) *TelegramSender {
	sender := &TelegramSender{
		chatID: normalizeChatID(cfg.ChatID),
	}

	if strings.TrimSpace(cfg.BotToken) == "" {
		sender.initErr = errors.New("telegram bot token is required")
		return sender
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		sender.initErr = errors.New("telegram chat_id is required")
		return sender
	}

	botClient, err := tgbot.New(cfg.BotToken, tgbot.WithSkipGetMe())
	if err != nil {
		sender.initErr = fmt.Errorf("init telegram bot: %w", err)
		return sender
	}
	sender.client = botClient
	return sender
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *TelegramSender) Channel() string {
	return config.NotifyChannelTelegram
}

// Send posts one alert summary message to the Telegram chat.
// Params: context and alert batch payload.
// Returns: transport or HTTP error.
func (s *TelegramSender) Send(ctx context.Context, batch domain.AlertEvaluationResult) (SendResult, error) {
	if s.initErr != nil {
		return SendResult{}, permanent.Mark(s.initErr)
	}
	if s.client == nil {
		return SendResult{}, permanent.Mark(errors.New("telegram client is not initialized"))
	}

	request := &tgbot.SendMessageParams{
		ChatID:    s.chatID,
		Text:      evaluator.FormatChatMessage(batch),
		ParseMode: tgmodels.ParseModeHTML,
	}
	sent, err := s.client.SendMessage(ctx, request)
	if err != nil {
		return SendResult{}, fmt.Errorf("telegram send: %w", err)
	}
	if sent == nil || sent.ID <= 0 {
		return SendResult{}, errors.New("telegram send returned empty message id")
	}
	return SendResult{MessageID: sent.ID}, nil
}

// normalizeChatID converts numeric chat IDs to int64 and keeps non-numeric IDs as string.
// Params: configured chat ID value from TOML.
// Returns: Telegram API chat id union value.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}

// WebhookSender posts alert batches to the configured HTTP endpoint.
// Params: endpoint URL, method, payload format, timeout, and headers.
// Returns: generic HTTP sender.
type WebhookSender struct {
	cfg    config.WebhookNotifier
	client *http.Client
}

// NewWebhookSender creates the generic HTTP sender.
// Params: webhook notifier config.
// Returns: initialized sender.
func NewWebhookSender(cfg config.WebhookNotifier) *WebhookSender {
	timeoutSec := cfg.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &WebhookSender{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
	}
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *WebhookSender) Channel() string {
	return config.NotifyChannelWebhook
}

// Send delivers one alert batch to the configured HTTP endpoint.
// The "json" format posts the raw batch; the "email" format posts a
// subject/html envelope for a downstream mail relay.
// Params: context and alert batch payload.
// Returns: transport or HTTP error; 4xx responses are permanent.
func (s *WebhookSender) Send(ctx context.Context, batch domain.AlertEvaluationResult) (SendResult, error) {
	body, err := s.encodePayload(batch)
	if err != nil {
		return SendResult{}, permanent.Mark(err)
	}

	method := strings.ToUpper(strings.TrimSpace(s.cfg.Method))
	if method == "" {
		method = http.MethodPost
	}
	request, err := http.NewRequestWithContext(ctx, method, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, permanent.Mark(fmt.Errorf("build webhook request: %w", err))
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Headers {
		request.Header.Set(key, value)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return SendResult{}, fmt.Errorf("webhook send: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode >= 400 && response.StatusCode < 500 {
		return SendResult{}, permanent.Mark(unexpectedHTTPStatusError("webhook", response))
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return SendResult{}, unexpectedHTTPStatusError("webhook", response)
	}
	return SendResult{}, nil
}

// encodePayload builds the outbound body for the configured format.
// Params: alert batch payload.
// Returns: JSON body bytes.
func (s *WebhookSender) encodePayload(batch domain.AlertEvaluationResult) ([]byte, error) {
	if s.cfg.Format == config.WebhookFormatEmail {
		envelope := struct {
			Subject string `json:"subject"`
			HTML    string `json:"html"`
		}{
			Subject: evaluator.FormatEmailSubject(batch),
			HTML:    evaluator.FormatEmailHTML(batch),
		}
		body, err := json.Marshal(envelope)
		if err != nil {
			return nil, fmt.Errorf("encode webhook email payload: %w", err)
		}
		return body, nil
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode webhook payload: %w", err)
	}
	return body, nil
}

// unexpectedHTTPStatusError builds error with status and trimmed response body.
// Params: error prefix and HTTP response.
// Returns: descriptive error for non-2xx responses.
func unexpectedHTTPStatusError(prefix string, response *http.Response) error {
	if response == nil {
		return fmt.Errorf("%s status=0", prefix)
	}
	rawBody, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return fmt.Errorf("%s status=%d (read body error: %w)", prefix, response.StatusCode, readErr)
	}
	trimmedBody := strings.TrimSpace(string(rawBody))
	if trimmedBody == "" {
		return fmt.Errorf("%s status=%d", prefix, response.StatusCode)
	}
	return fmt.Errorf("%s status=%d body=%s", prefix, response.StatusCode, trimmedBody)
}

// NATSPublisher publishes alert batches to the fixed JetStream subject so
// downstream consumers can fan alerts out to their own channels.
// Params: NATS connection from config URLs.
// Returns: NATS channel sender.
type NATSPublisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	initErr error
}

// NewNATSPublisher connects to NATS and prepares the JetStream context.
// Params: NATS notifier config.
// Returns: initialized publisher; connection errors surface on Send.
func NewNATSPublisher(cfg config.NATSNotifier) *NATSPublisher {
	publisher := &NATSPublisher{}
	if len(cfg.URL) == 0 {
		publisher.initErr = errors.New("nats notify url is required")
		return publisher
	}
	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		publisher.initErr = fmt.Errorf("connect nats notify: %w", err)
		return publisher
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		publisher.initErr = fmt.Errorf("jetstream init for notify: %w", err)
		return publisher
	}
	publisher.nc = nc
	publisher.js = js
	return publisher
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (p *NATSPublisher) Channel() string {
	return config.NotifyChannelNATS
}

// Send publishes one alert batch as JSON to the alerts subject.
// Params: context and alert batch payload.
// Returns: encode or publish error.
func (p *NATSPublisher) Send(ctx context.Context, batch domain.AlertEvaluationResult) (SendResult, error) {
	if p.initErr != nil {
		return SendResult{}, permanent.Mark(p.initErr)
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return SendResult{}, permanent.Mark(fmt.Errorf("encode alert batch: %w", err))
	}
	ack, err := p.js.Publish(config.AlertsSubject, body, nats.Context(ctx))
	if err != nil {
		return SendResult{}, fmt.Errorf("publish alert batch: %w", err)
	}
	return SendResult{ExternalRef: strconv.FormatUint(ack.Sequence, 10)}, nil
}

// Close shuts the NATS connection down.
// Params: none.
// Returns: nil.
func (p *NATSPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}
