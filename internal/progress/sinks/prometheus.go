package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scrapeworks/wormy/internal/progress"
)

// PrometheusSink exports crawl progress metrics. It owns all collectors for
// page outcomes, render escalations, byte counts, and crawl runtimes.
type PrometheusSink struct {
	pagesFetched  *prometheus.CounterVec
	pagesFailed   *prometheus.CounterVec
	pagesSkipped  *prometheus.CounterVec
	escalations   *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	crawlRuntime  prometheus.Histogram
	crawlsRunning prometheus.Gauge
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wormy_pages_fetched_total",
			Help: "Pages fetched partitioned by site, status class, and fetch mode.",
		}, []string{"site", "status_class", "mode"}),
		pagesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wormy_pages_failed_total",
			Help: "Pages that exhausted their fetch attempts, per site.",
		}, []string{"site"}),
		pagesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wormy_pages_skipped_total",
			Help: "URLs skipped before fetching, per site.",
		}, []string{"site"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wormy_render_escalations_total",
			Help: "Static fetches escalated to the headless browser, per site.",
		}, []string{"site"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wormy_fetch_bytes_total",
			Help: "Bytes downloaded per site.",
		}, []string{"site"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wormy_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by site and fetch mode.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"site", "mode"}),
		crawlRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wormy_crawl_runtime_seconds",
			Help:    "Wall time per completed crawl.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		crawlsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wormy_crawls_running",
			Help: "Current number of running crawls.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.pagesFetched,
		s.pagesFailed,
		s.pagesSkipped,
		s.escalations,
		s.fetchBytes,
		s.fetchDuration,
		s.crawlRuntime,
		s.crawlsRunning,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors with one event.
func (s *PrometheusSink) Consume(_ context.Context, evt progress.Event) error {
	site := evt.Site
	if site == "" {
		site = "unknown"
	}
	switch evt.Stage {
	case progress.StageCrawlStart:
		s.crawlsRunning.Inc()
	case progress.StageCrawlDone:
		s.crawlsRunning.Dec()
		if evt.Dur > 0 {
			s.crawlRuntime.Observe(evt.Dur.Seconds())
		}
	case progress.StagePageFetched:
		statusClass := string(evt.StatusClass)
		if statusClass == "" {
			statusClass = string(progress.StatusOther)
		}
		mode := fetchMode(evt.Rendered)
		s.pagesFetched.WithLabelValues(site, statusClass, mode).Inc()
		if evt.Bytes > 0 {
			s.fetchBytes.WithLabelValues(site).Add(float64(evt.Bytes))
		}
		if evt.Dur > 0 {
			s.fetchDuration.WithLabelValues(site, mode).Observe(evt.Dur.Seconds())
		}
	case progress.StagePageFailed:
		s.pagesFailed.WithLabelValues(site).Inc()
	case progress.StagePageSkipped:
		s.pagesSkipped.WithLabelValues(site).Inc()
	case progress.StageRenderEscalated:
		s.escalations.WithLabelValues(site).Inc()
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

func fetchMode(rendered bool) string {
	if rendered {
		return "rendered"
	}
	return "static"
}
