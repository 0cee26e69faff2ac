package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls buffering for the Hub.
//   - BufferSize: size of the internal channel (default 1024).
//   - SinkTimeout: per-sink timeout while delivering (default 5s).
//   - Logger: optional structured logger used for warnings.
type Config struct {
	BufferSize  int
	SinkTimeout time.Duration
	Logger      *zap.Logger
}

const (
	defaultBufferSize  = 1024
	defaultSinkTimeout = 5 * time.Second
	dropLogInterval    = 5 * time.Second
)

// Hub fans Event streams out to registered sinks from a single background
// goroutine. Emit never blocks the calling worker; when the buffer is full
// events are dropped and a rate-limited warning is logged.
type Hub struct {
	cfg     Config
	sinks   []Sink
	events  chan Event
	stopCh  chan struct{}
	doneCh  chan struct{}
	logger  *zap.Logger
	dropped atomic.Int64
	lastLog atomic.Int64
	closed  atomic.Bool

	closeOnce sync.Once
	closeCtx  context.Context
}

// NewHub initializes a Hub and starts the delivery goroutine. The returned
// Hub is immediately ready to accept events.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		cfg:    cfg,
		sinks:  append([]Sink(nil), sinks...),
		events: make(chan Event, cfg.BufferSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: logger,
	}
	go h.run()
	return h
}

// Emit enqueues an Event for delivery. Invalid events are discarded.
func (h *Hub) Emit(evt Event) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	select {
	case h.events <- evt:
	default:
		h.dropped.Add(1)
		h.maybeLogDrops()
	}
}

// Close drains remaining events, closes sinks, and blocks until the delivery
// goroutine exits. Safe to call multiple times.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.closeCtx = ctx
		close(h.stopCh)
	})
	select {
	case <-h.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close wait: %w", ctx.Err())
	}
}

func (h *Hub) run() {
	defer close(h.doneCh)
	for {
		select {
		case evt := <-h.events:
			h.deliver(evt)
		case <-h.stopCh:
			h.drain()
			h.closeSinks()
			return
		}
	}
}

func (h *Hub) drain() {
	for {
		select {
		case evt := <-h.events:
			h.deliver(evt)
		default:
			return
		}
	}
}

func (h *Hub) deliver(evt Event) {
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, evt); err != nil {
			h.logger.Warn("progress sink consume failed",
				zap.String("stage", string(evt.Stage)),
				zap.Error(err))
		}
		cancel()
	}
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
}

func (h *Hub) maybeLogDrops() {
	now := time.Now().UnixNano()
	last := h.lastLog.Load()
	if now-last < dropLogInterval.Nanoseconds() {
		return
	}
	if !h.lastLog.CompareAndSwap(last, now) {
		return
	}
	count := h.dropped.Swap(0)
	h.logger.Warn("progress events dropped due to backpressure", zap.Int64("dropped", count))
}
