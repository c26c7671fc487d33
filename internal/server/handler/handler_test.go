package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(slog.Default(), nil)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, body, "dependencies")
}

func TestHealthCheckReportsProbes(t *testing.T) {
	probes := map[string]func(context.Context) error{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("pool closed") },
	}
	h := NewHealthHandler(slog.Default(), probes)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Dependencies["redis"])
	assert.Contains(t, body.Dependencies["postgres"], "pool closed")
}

func TestGetStatus(t *testing.T) {
	started := time.Now().Add(-90 * time.Second)
	h := NewStatusHandler("ingest", started,
		func() string { return "SUBSCRIBED" },
		func() int64 { return 42 },
	)

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ingest", body["mode"])
	assert.Equal(t, "SUBSCRIBED", body["feed_state"])
	assert.EqualValues(t, 42, body["trades_received"])
	assert.GreaterOrEqual(t, body["uptime_seconds"].(float64), float64(90))
}

func TestGetStatusWithoutFeedProbes(t *testing.T) {
	h := NewStatusHandler("server", time.Now(), nil, nil)

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "feed_state")
	assert.NotContains(t, body, "trades_received")
}
