// Package poller repeatedly queries the status of a backend task until it
// reaches a terminal state.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipforge/clipforge/internal/backend"
)

// DefaultInterval is the cadence used by every backend flow.
const DefaultInterval = time.Second

var (
	ErrStopped         = errors.New("polling stopped")
	ErrTooManyFailures = errors.New("too many consecutive status failures")
)

// StatusSource fetches one snapshot for a task.
type StatusSource interface {
	Status(ctx context.Context, taskID string) (*backend.StatusSnapshot, error)
}

// Sink receives every snapshot in receipt order, before the next tick is
// scheduled.
type Sink interface {
	Observe(snap *backend.StatusSnapshot)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(snap *backend.StatusSnapshot)

func (f SinkFunc) Observe(snap *backend.StatusSnapshot) { f(snap) }

// Config controls polling cadence.
type Config struct {
	Interval time.Duration
	// MaxFailures ends polling after that many consecutive failed ticks.
	// Zero polls until a terminal snapshot or cancellation.
	MaxFailures int
}

// Poller drives status queries for tasks.
type Poller struct {
	source StatusSource
	config Config
	logger zerolog.Logger
}

// New creates a new poller.
func New(source StatusSource, cfg Config, logger zerolog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Poller{
		source: source,
		config: cfg,
		logger: logger.With().Str("component", "poller").Logger(),
	}
}

// Run polls taskID until a terminal snapshot arrives and returns it. Each
// tick waits for the previous query to resolve, so snapshots never overlap.
// A failed tick is logged and skipped.
func (p *Poller) Run(ctx context.Context, taskID string, sink Sink) (*backend.StatusSnapshot, error) {
	timer := time.NewTimer(p.config.Interval)
	defer timer.Stop()

	failures := 0
	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snap, err := p.source.Status(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			p.logger.Warn().
				Err(err).
				Str("taskId", taskID).
				Int("tick", tick).
				Int("consecutiveFailures", failures).
				Msg("Status poll failed, will retry")

			if p.config.MaxFailures > 0 && failures >= p.config.MaxFailures {
				return nil, fmt.Errorf("%w: %d for task %s: %w", ErrTooManyFailures, failures, taskID, err)
			}
			timer.Reset(p.config.Interval)
			continue
		}
		failures = 0

		p.logger.Trace().
			Str("taskId", taskID).
			Str("status", string(snap.Status)).
			Int("current", snap.Current).
			Int("total", snap.Total).
			Float64("percent", snap.Percent).
			Msg("Status snapshot")

		sink.Observe(snap)

		if snap.Status.Terminal() {
			p.logger.Debug().
				Str("taskId", taskID).
				Str("status", string(snap.Status)).
				Int("ticks", tick).
				Msg("Task reached terminal state")
			return snap, nil
		}
		timer.Reset(p.config.Interval)
	}
}

// Handle controls a poll loop started with Start.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	stopped bool
	snap    *backend.StatusSnapshot
	err     error
}

// Start runs the poll loop in its own goroutine.
func (p *Poller) Start(ctx context.Context, taskID string, sink Sink) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer cancel()

		snap, err := p.Run(ctx, taskID, sink)

		h.mu.Lock()
		defer h.mu.Unlock()
		if err != nil && h.stopped && errors.Is(err, context.Canceled) {
			err = ErrStopped
		}
		h.snap, h.err = snap, err
	}()

	return h
}

// Stop tears the loop down. It is safe to call more than once and after
// the loop ended on its own.
func (h *Handle) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.cancel()
}

// Done is closed once the loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Active reports whether the loop is still running.
func (h *Handle) Active() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the loop exits and returns its outcome.
func (h *Handle) Wait() (*backend.StatusSnapshot, error) {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap, h.err
}
