package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/scrapeworks/wormy/internal/progress"
)

func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	crawlID := progress.UUIDToBytes(uuid.New())
	events := []progress.Event{
		{CrawlID: crawlID, TS: time.Now(), Stage: progress.StageCrawlStart, Site: "example.com"},
		{
			CrawlID:     crawlID,
			TS:          time.Now(),
			Stage:       progress.StagePageFetched,
			Site:        "example.com",
			URL:         "https://example.com/a",
			Bytes:       2048,
			StatusClass: progress.Status2xx,
			Rendered:    true,
			Dur:         150 * time.Millisecond,
		},
		{
			CrawlID: crawlID,
			TS:      time.Now(),
			Stage:   progress.StagePageFailed,
			Site:    "example.com",
			URL:     "https://example.com/broken",
		},
		{
			CrawlID: crawlID,
			TS:      time.Now(),
			Stage:   progress.StageRenderEscalated,
			Site:    "example.com",
			URL:     "https://example.com/a",
		},
		{CrawlID: crawlID, TS: time.Now(), Stage: progress.StageCrawlDone, Dur: 20 * time.Second},
	}
	for _, evt := range events {
		require.NoError(t, sink.Consume(context.Background(), evt))
	}

	require.InDelta(t, 1.0,
		testutil.ToFloat64(sink.pagesFetched.WithLabelValues("example.com", string(progress.Status2xx), "rendered")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.pagesFailed.WithLabelValues("example.com")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.escalations.WithLabelValues("example.com")), 1e-9)
	require.InDelta(t, 2048.0, testutil.ToFloat64(sink.fetchBytes.WithLabelValues("example.com")), 1e-9)
	require.Equal(t, 0.0, testutil.ToFloat64(sink.crawlsRunning))
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "wormy_fetch_duration_seconds"))
}
