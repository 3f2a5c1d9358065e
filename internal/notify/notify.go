// Package notify delivers price alerts to the configured channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pricewatch/internal/config"
	"pricewatch/internal/money"
	"pricewatch/internal/security"
	"pricewatch/pkg/utils"
)

// Notifier defines the interface for sending price alerts.
type Notifier interface {
	SendPriceAlert(ctx context.Context, alert PriceAlert) error
}

// Channel defines the interface for a notification channel.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// Notification represents a notification message.
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationPriceAlert NotificationType = "price_alert"
	NotificationInfo       NotificationType = "info"
)

// PriceAlert is raised when a product first reaches its target price.
type PriceAlert struct {
	ProductID    string
	ProductName  string
	Retailer     string
	URL          string
	PriceCents   int64
	TargetCents  int64
	SavingsCents int64
	Timestamp    time.Time
}

// Title returns the alert headline.
func (a PriceAlert) Title() string {
	return "Price alert: " + a.ProductName
}

// Message returns the alert body.
func (a PriceAlert) Message() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s is %s at %s\n", a.ProductName, money.FormatUSD(a.PriceCents), a.Retailer)
	fmt.Fprintf(&sb, "Target: %s\n", money.FormatUSD(a.TargetCents))
	fmt.Fprintf(&sb, "You save: %s\n", money.FormatUSD(a.SavingsCents))
	sb.WriteString(a.URL)
	return sb.String()
}

// Notification converts the alert into a channel message.
func (a PriceAlert) Notification() Notification {
	return Notification{
		Type:    NotificationPriceAlert,
		Title:   a.Title(),
		Message: a.Message(),
		Data: map[string]interface{}{
			"product_id":    a.ProductID,
			"product_name":  a.ProductName,
			"retailer":      a.Retailer,
			"url":           a.URL,
			"price_cents":   a.PriceCents,
			"target_cents":  a.TargetCents,
			"savings_cents": a.SavingsCents,
		},
		Timestamp: a.Timestamp,
	}
}

// MultiNotifier sends notifications to multiple channels.
type MultiNotifier struct {
	channels []Channel
	mu       sync.RWMutex
}

// NewMultiNotifier creates a MultiNotifier with a log channel plus every
// channel enabled in cfg. Invalid shoutrrr URLs fail here rather than on the
// first alert.
func NewMultiNotifier(cfg config.NotificationsConfig, logger zerolog.Logger) (*MultiNotifier, error) {
	mn := &MultiNotifier{
		channels: []Channel{NewLogChannel(logger)},
	}
	if !cfg.Enabled {
		return mn, nil
	}

	if cfg.Webhook.Enabled {
		mn.channels = append(mn.channels, NewWebhookChannel(cfg.Webhook))
	}
	if cfg.Shoutrrr.Enabled {
		ch, err := NewShoutrrrChannel(cfg.Shoutrrr.URLs, cfg.Shoutrrr.Timeout)
		if err != nil {
			return nil, err
		}
		mn.channels = append(mn.channels, ch)
	}
	return mn, nil
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch Channel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// Channels returns the names of the enabled channels.
func (mn *MultiNotifier) Channels() []string {
	mn.mu.RLock()
	defer mn.mu.RUnlock()
	names := make([]string, 0, len(mn.channels))
	for _, ch := range mn.channels {
		if ch.IsEnabled() {
			names = append(names, ch.Name())
		}
	}
	return names
}

// Send sends a notification to all enabled channels. Every channel is tried;
// failures are joined into one error with credentials masked.
func (mn *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []string
	for _, ch := range channels {
		if ch.IsEnabled() {
			if err := ch.Send(ctx, n); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %s", ch.Name(), security.MaskString(err.Error())))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SendPriceAlert implements Notifier.
func (mn *MultiNotifier) SendPriceAlert(ctx context.Context, alert PriceAlert) error {
	return mn.Send(ctx, alert.Notification())
}

// LogChannel writes notifications to the application log.
type LogChannel struct {
	logger zerolog.Logger
}

// NewLogChannel creates a new LogChannel.
func NewLogChannel(logger zerolog.Logger) *LogChannel {
	return &LogChannel{logger: logger.With().Str("component", "notify").Logger()}
}

// Name returns the name of the channel.
func (l *LogChannel) Name() string {
	return "log"
}

// IsEnabled returns whether the channel is enabled.
func (l *LogChannel) IsEnabled() bool {
	return true
}

// Send logs the notification.
func (l *LogChannel) Send(ctx context.Context, n Notification) error {
	l.logger.Info().
		Str("type", string(n.Type)).
		Fields(n.Data).
		Msg(n.Title)
	return nil
}

// WebhookChannel sends notifications via HTTP webhook. Transport failures
// and 5xx or 429 responses are retried with exponential backoff.
type WebhookChannel struct {
	url     string
	enabled bool
	client  *http.Client
	retry   utils.RetryConfig
}

// webhookStatusError is a non-2xx webhook response.
type webhookStatusError struct {
	code int
}

func (e *webhookStatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.code)
}

func retryableWebhookError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *webhookStatusError
	if errors.As(err, &statusErr) {
		return statusErr.code >= 500 || statusErr.code == http.StatusTooManyRequests
	}
	return true
}

// NewWebhookChannel creates a new WebhookChannel.
func NewWebhookChannel(cfg config.WebhookConfig) *WebhookChannel {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retry := utils.DefaultRetryConfig()
	retry.ShouldRetry = retryableWebhookError
	return &WebhookChannel{
		url:     cfg.URL,
		enabled: cfg.Enabled && cfg.URL != "",
		client: &http.Client{
			Timeout: timeout,
		},
		retry: retry,
	}
}

// Name returns the name of the channel.
func (w *WebhookChannel) Name() string {
	return "webhook"
}

// IsEnabled returns whether the channel is enabled.
func (w *WebhookChannel) IsEnabled() bool {
	return w.enabled
}

// Send posts the notification as JSON.
func (w *WebhookChannel) Send(ctx context.Context, n Notification) error {
	if !w.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"type":      n.Type,
		"title":     n.Title,
		"message":   n.Message,
		"data":      n.Data,
		"timestamp": n.Timestamp.Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	return utils.Retry(ctx, w.retry, func() error {
		return w.post(ctx, body)
	})
}

func (w *WebhookChannel) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "pricewatch/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &webhookStatusError{code: resp.StatusCode}
	}

	return nil
}

// NoOpNotifier is a notifier that does nothing.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// SendPriceAlert does nothing.
func (n *NoOpNotifier) SendPriceAlert(ctx context.Context, alert PriceAlert) error {
	return nil
}
