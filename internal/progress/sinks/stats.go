package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/scrapeworks/wormy/internal/progress"
)

// Snapshot is a point-in-time view of crawl progress, serializable as JSON
// for the status endpoint.
type Snapshot struct {
	CrawlID       string    `json:"crawl_id,omitempty"`
	Site          string    `json:"site,omitempty"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	FinishedAt    time.Time `json:"finished_at,omitempty"`
	Running       bool      `json:"running"`
	PagesFetched  int64     `json:"pages_fetched"`
	PagesRendered int64     `json:"pages_rendered"`
	PagesFailed   int64     `json:"pages_failed"`
	PagesSkipped  int64     `json:"pages_skipped"`
	Escalations   int64     `json:"render_escalations"`
	BytesFetched  int64     `json:"bytes_fetched"`
	LastURL       string    `json:"last_url,omitempty"`
}

// StatsSink accumulates a live Snapshot of the current crawl. Safe for
// concurrent Snapshot calls while the hub delivers events.
type StatsSink struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewStatsSink() *StatsSink {
	return &StatsSink{}
}

// Consume folds one event into the snapshot.
func (s *StatsSink) Consume(_ context.Context, evt progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch evt.Stage {
	case progress.StageCrawlStart:
		s.snap = Snapshot{
			CrawlID:   evt.CrawlUUID().String(),
			Site:      evt.Site,
			StartedAt: evt.TS,
			Running:   true,
		}
	case progress.StageCrawlDone:
		s.snap.Running = false
		s.snap.FinishedAt = evt.TS
	case progress.StagePageFetched:
		s.snap.PagesFetched++
		if evt.Rendered {
			s.snap.PagesRendered++
		}
		s.snap.BytesFetched += evt.Bytes
		s.snap.LastURL = evt.URL
	case progress.StagePageFailed:
		s.snap.PagesFailed++
		s.snap.LastURL = evt.URL
	case progress.StagePageSkipped:
		s.snap.PagesSkipped++
	case progress.StageRenderEscalated:
		s.snap.Escalations++
	}
	return nil
}

// Snapshot returns a copy of the current stats.
func (s *StatsSink) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Close implements the Sink interface; it performs no action.
func (s *StatsSink) Close(context.Context) error {
	return nil
}
