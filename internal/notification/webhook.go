// File: internal/notification/webhook.go
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chainsound/evmirror/internal/config"
	"github.com/chainsound/evmirror/internal/models"
	"github.com/chainsound/evmirror/pkg/utils"
)

// WebhookNotifier posts mismatch verdicts to a configured endpoint
type WebhookNotifier struct {
	config     *config.NotificationConfig
	logger     *logrus.Entry
	httpClient *http.Client
}

// MismatchPayload is the body posted to the webhook endpoint
type MismatchPayload struct {
	Type      string                  `json:"type"`
	Source    string                  `json:"source"`
	Version   string                  `json:"version"`
	Timestamp time.Time               `json:"timestamp"`
	Run       *models.VerificationRun `json:"run"`
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(cfg *config.NotificationConfig) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookNotifier{
		config: cfg,
		logger: utils.ComponentLogger("webhook"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// NotifyMismatch posts an unsound verdict to the webhook URL, retrying
// with backoff up to the configured attempt budget.
func (wn *WebhookNotifier) NotifyMismatch(ctx context.Context, run *models.VerificationRun) error {
	if !wn.config.Enabled || wn.config.WebhookURL == "" {
		return nil
	}

	payload := &MismatchPayload{
		Type:      "mirror_mismatch",
		Source:    "evmirror",
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
		Run:       run,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "Failed to marshal webhook payload", err.Error())
	}

	attempts := wn.config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(wn.retryDelay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = wn.send(ctx, body)
		if lastErr == nil {
			wn.logger.WithField("url", wn.config.WebhookURL).Info("Mismatch notification delivered")
			return nil
		}

		wn.logger.WithFields(logrus.Fields{
			"url":     wn.config.WebhookURL,
			"attempt": attempt,
		}).WithError(lastErr).Warn("Webhook delivery failed")
	}

	return lastErr
}

func (wn *WebhookNotifier) send(ctx context.Context, body []byte) error {
	method := wn.config.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, wn.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "Failed to create webhook request", err.Error())
	}

	for key, value := range wn.config.Headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "evmirror/1.0")
	}
	if requestID, err := utils.GenerateID(); err == nil {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := wn.httpClient.Do(req)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeExternal, "Failed to send webhook", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return utils.NewAppError(utils.ErrCodeExternal,
			"Webhook returned non-success status", fmt.Sprintf("status: %d", resp.StatusCode))
	}
	return nil
}

// retryDelay grows exponentially from the configured base, capped at 30s
func (wn *WebhookNotifier) retryDelay(attempt int) time.Duration {
	base := wn.config.RetryDelay
	if base <= 0 {
		base = time.Second
	}
	delay := base << uint(attempt-2)
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}
