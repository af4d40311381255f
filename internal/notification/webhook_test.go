package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsound/evmirror/internal/config"
	"github.com/chainsound/evmirror/internal/models"
)

func mismatchRun() *models.VerificationRun {
	return &models.VerificationRun{
		ID:        "run-1",
		Contract:  "0x1234567890123456789012345678901234567890",
		Signature: "Transfer(address,address,uint256)",
		Topic:     "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		Source:    models.ChainObservation{Role: "source", Endpoint: "http://src", FromBlock: 1, ToBlock: 100, Count: 10},
		Destination: models.ChainObservation{
			Role: "destination", Endpoint: "http://dst", FromBlock: 1, ToBlock: 100, Count: 7,
		},
		Verdict:   models.Verdict{SrcCount: 10, DstCount: 7, Drift: 3, Sound: false},
		CreatedAt: time.Now().UTC(),
	}
}

func TestNotifyMismatchDeliversPayload(t *testing.T) {
	var received MismatchPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(&config.NotificationConfig{
		Enabled:       true,
		WebhookURL:    server.URL,
		RetryAttempts: 1,
	})

	require.NoError(t, notifier.NotifyMismatch(context.Background(), mismatchRun()))

	assert.Equal(t, "mirror_mismatch", received.Type)
	assert.Equal(t, "evmirror", received.Source)
	require.NotNil(t, received.Run)
	assert.Equal(t, uint64(3), received.Run.Verdict.Drift)
}

func TestNotifyMismatchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(&config.NotificationConfig{
		Enabled:       true,
		WebhookURL:    server.URL,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	})

	require.NoError(t, notifier.NotifyMismatch(context.Background(), mismatchRun()))
	assert.Equal(t, int64(2), calls.Load())
}

func TestNotifyMismatchFailsAfterRetryBudget(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(&config.NotificationConfig{
		Enabled:       true,
		WebhookURL:    server.URL,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	})

	err := notifier.NotifyMismatch(context.Background(), mismatchRun())
	require.Error(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestNotifyMismatchDisabledIsNoOp(t *testing.T) {
	notifier := NewWebhookNotifier(&config.NotificationConfig{
		Enabled:    false,
		WebhookURL: "http://example.invalid/hook",
	})
	require.NoError(t, notifier.NotifyMismatch(context.Background(), mismatchRun()))
}

func TestNotifyMismatchCustomHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(&config.NotificationConfig{
		Enabled:       true,
		WebhookURL:    server.URL,
		RetryAttempts: 1,
		Headers:       map[string]string{"Authorization": "Bearer secret"},
	})
	require.NoError(t, notifier.NotifyMismatch(context.Background(), mismatchRun()))
}
