package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrapeworks/wormy/internal/progress"
	progresssinks "github.com/scrapeworks/wormy/internal/progress/sinks"
)

func newTestServer(t *testing.T) (*Server, *progresssinks.StatsSink) {
	t.Helper()
	reg := prometheus.NewRegistry()
	_, err := progresssinks.NewPrometheusSink(reg)
	require.NoError(t, err)
	stats := progresssinks.NewStatsSink()
	return NewServer(stats, reg, zap.NewNop()), stats
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProgressSnapshot(t *testing.T) {
	srv, stats := newTestServer(t)

	crawlID := progress.UUIDToBytes(uuid.New())
	now := time.Now().UTC()
	require.NoError(t, stats.Consume(context.Background(),
		progress.Event{CrawlID: crawlID, TS: now, Stage: progress.StageCrawlStart, Site: "example.com"}))
	require.NoError(t, stats.Consume(context.Background(),
		progress.Event{CrawlID: crawlID, TS: now, Stage: progress.StagePageFetched, Site: "example.com", URL: "https://example.com", Bytes: 42, StatusClass: progress.Status2xx}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var snap progresssinks.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.Running)
	assert.Equal(t, int64(1), snap.PagesFetched)
	assert.Equal(t, "example.com", snap.Site)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wormy_crawls_running")
}

func TestProgressWithoutStats(t *testing.T) {
	srv := NewServer(nil, prometheus.NewRegistry(), zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
