package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sundayezeilo/linkshield/internal/metrics"
)

const (
	ModeInline = "inline"
	ModeAsync  = "async"

	DefaultTimeout   = 5 * time.Second
	DefaultWorkers   = 4
	DefaultQueueSize = 1024
)

var (
	ErrQueueFull = errors.New("tracking queue full")
	ErrClosed    = errors.New("tracking dispatcher closed")
)

// Dispatcher hands a redirect to the click tracker. Failures are logged by
// the dispatcher; the returned error is informational only and must never
// change the redirect response.
type Dispatcher interface {
	Dispatch(ctx context.Context, link LinkRef, req RequestInfo) error
	Close(ctx context.Context) error
}

// Inline tracks on the calling goroutine before the redirect is written.
// The request's cancellation is detached so a client hanging up does not
// abort a half-finished write.
type Inline struct {
	tracker ClickTracker
	timeout time.Duration
	logger  *slog.Logger
}

func NewInline(tracker ClickTracker, timeout time.Duration, logger *slog.Logger) *Inline {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Inline{tracker: tracker, timeout: timeout, logger: logger}
}

func (d *Inline) Dispatch(ctx context.Context, link LinkRef, req RequestInfo) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	return track(ctx, d.tracker, d.logger, link, req)
}

func (d *Inline) Close(context.Context) error { return nil }

// AsyncConfig sizes the worker pool.
type AsyncConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	Logger    *slog.Logger
}

type job struct {
	ctx  context.Context
	link LinkRef
	req  RequestInfo
}

// Async tracks on a fixed pool of workers fed by a bounded queue. When the
// queue is full the click is dropped rather than delaying the redirect.
type Async struct {
	tracker ClickTracker
	jobs    chan job
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsync(tracker ClickTracker, cfg AsyncConfig) *Async {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	d := &Async{
		tracker: tracker,
		jobs:    make(chan job, cfg.QueueSize),
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}

	d.logger.Info("starting click tracking workers",
		"workers", cfg.Workers,
		"queue_size", cfg.QueueSize,
	)
	d.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go d.worker()
	}
	return d
}

func (d *Async) Dispatch(ctx context.Context, link LinkRef, req RequestInfo) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		metrics.TrackingDropped.Inc()
		return ErrClosed
	}

	select {
	case d.jobs <- job{ctx: context.WithoutCancel(ctx), link: link, req: req}:
		metrics.TrackingQueueDepth.Inc()
		return nil
	default:
		metrics.TrackingDropped.Inc()
		d.logger.WarnContext(ctx, "click tracking queue full, dropping click",
			"short_code", link.ShortCode,
		)
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued ones to finish or ctx to end.
func (d *Async) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("click tracking workers drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Async) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		metrics.TrackingQueueDepth.Dec()
		ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
		_ = track(ctx, d.tracker, d.logger, j.link, j.req)
		cancel()
	}
}

// New picks the dispatcher for mode. Unknown modes fall back to inline.
func New(mode string, tracker ClickTracker, cfg AsyncConfig) Dispatcher {
	if mode == ModeAsync {
		return NewAsync(tracker, cfg)
	}
	return NewInline(tracker, cfg.Timeout, cfg.Logger)
}

// ErrPanic wraps a panic raised while tracking a click.
var ErrPanic = errors.New("click tracking panicked")

func track(ctx context.Context, tracker ClickTracker, logger *slog.Logger, link LinkRef, req RequestInfo) (err error) {
	defer func() {
		if p := recover(); p != nil {
			metrics.TrackingFailures.WithLabelValues("panic").Inc()
			logger.ErrorContext(ctx, "click tracking panicked",
				"short_code", link.ShortCode,
				"link_id", link.ID.String(),
				"panic", p,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()

	if _, err := tracker.TrackClick(ctx, link, req); err != nil {
		logger.ErrorContext(ctx, "click tracking failed",
			"short_code", link.ShortCode,
			"link_id", link.ID.String(),
			"error", err.Error(),
		)
		return err
	}
	return nil
}
