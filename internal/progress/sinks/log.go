package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/scrapeworks/wormy/internal/progress"
)

// LogSink emits structured logs for debugging progress streams.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the event using structured fields.
func (s *LogSink) Consume(_ context.Context, evt progress.Event) error {
	s.logger.Info("progress event",
		zap.String("crawl_id", evt.CrawlUUID().String()),
		zap.String("stage", string(evt.Stage)),
		zap.String("site", evt.Site),
		zap.String("url", evt.URL),
		zap.Int("depth", evt.Depth),
		zap.Int64("bytes", evt.Bytes),
		zap.String("status_class", string(evt.StatusClass)),
		zap.Bool("rendered", evt.Rendered),
		zap.Duration("dur", evt.Dur),
		zap.String("note", evt.Note),
	)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
