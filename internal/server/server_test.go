package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsound/evmirror/internal/config"
	"github.com/chainsound/evmirror/internal/models"
	"github.com/chainsound/evmirror/internal/storage"
)

func newTestServer(t *testing.T) (*HTTPServer, storage.Storage) {
	t.Helper()

	store := storage.NewSQLiteStorage(&storage.StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "server_test.db"),
		MaxConnections:   2,
		MaxIdleTime:      time.Minute,
	})
	require.NoError(t, store.Connect())
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	srv := NewHTTPServer(&config.ServerConfig{
		Host:          "127.0.0.1",
		Port:          0,
		EnableHealth:  true,
		EnableMetrics: false,
	}, store, nil)
	return srv, store
}

func seedRun(t *testing.T, store storage.Storage, id string, sound bool) {
	t.Helper()
	require.NoError(t, store.SaveRun(context.Background(), &models.VerificationRun{
		ID:        id,
		Contract:  "0x1234567890123456789012345678901234567890",
		Signature: "Transfer(address,address,uint256)",
		Topic:     "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		Source:    models.ChainObservation{Role: "source", Endpoint: "http://src", FromBlock: 1, ToBlock: 100, Count: 10},
		Destination: models.ChainObservation{
			Role: "destination", Endpoint: "http://dst", FromBlock: 1, ToBlock: 100, Count: 10,
		},
		Verdict:   models.Verdict{SrcCount: 10, DstCount: 10, Sound: sound},
		CreatedAt: time.Now().UTC(),
	}))
}

func doRequest(srv *HTTPServer, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "ok", health["storage"])
}

func TestListRunsHandler(t *testing.T) {
	srv, store := newTestServer(t)
	seedRun(t, store, "run-1", true)
	seedRun(t, store, "run-2", false)

	rec := doRequest(srv, http.MethodGet, "/api/v1/runs")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs  []*models.VerificationRun `json:"runs"`
		Count int                       `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)

	rec = doRequest(srv, http.MethodGet, "/api/v1/runs?sound=true")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "run-1", body.Runs[0].ID)
}

func TestListRunsHandlerRejectsBadParams(t *testing.T) {
	srv, _ := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, doRequest(srv, http.MethodGet, "/api/v1/runs?limit=nope").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(srv, http.MethodGet, "/api/v1/runs?limit=-1").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(srv, http.MethodGet, "/api/v1/runs?sound=maybe").Code)
}

func TestGetRunHandler(t *testing.T) {
	srv, store := newTestServer(t)
	seedRun(t, store, "run-1", true)

	rec := doRequest(srv, http.MethodGet, "/api/v1/runs/run-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var run models.VerificationRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "run-1", run.ID)
	assert.True(t, run.Verdict.Sound)

	assert.Equal(t, http.StatusNotFound, doRequest(srv, http.MethodGet, "/api/v1/runs/missing").Code)
}

func TestStatsHandler(t *testing.T) {
	srv, store := newTestServer(t)
	seedRun(t, store, "run-1", true)
	seedRun(t, store, "run-2", false)

	rec := doRequest(srv, http.MethodGet, "/api/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats storage.StorageStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.TotalRuns)
	assert.Equal(t, int64(1), stats.SoundRuns)
	assert.Equal(t, int64(1), stats.MismatchRuns)
}
