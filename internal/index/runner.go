package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/voznyak/flarex/internal/domain"
)

// Runner owns the current snapshot and the rebuild schedule. Readers call
// Current at any time; a rebuild swaps the snapshot pointer atomically, so a
// reader sees either the previous complete snapshot or the new one, never a
// partial build.
type Runner struct {
	builder  *Builder
	interval time.Duration
	sink     domain.EventSink
	logger   *slog.Logger

	current atomic.Pointer[domain.Snapshot]
}

// NewRunner creates a Runner that rebuilds at the given interval.
func NewRunner(builder *Builder, interval time.Duration, sink domain.EventSink, logger *slog.Logger) *Runner {
	return &Runner{
		builder:  builder,
		interval: interval,
		sink:     sink,
		logger:   logger.With(slog.String("component", "index_runner")),
	}
}

// Init performs the first rebuild synchronously. The engine must not start
// reacting to price events before Init succeeds; an Init failure is fatal.
func (r *Runner) Init(ctx context.Context) error {
	snap, err := r.builder.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("index: initial rebuild: %w", err)
	}
	r.current.Store(snap)
	r.sink.RecordEvent(ctx, "index_rebuilt", snap.Stats)
	return nil
}

// Run rebuilds on the configured interval until ctx is cancelled. Periodic
// rebuild failures are logged and skipped; the previous snapshot stays
// current and the next tick tries again.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("index runner started", slog.Duration("interval", r.interval))
	defer r.logger.Info("index runner stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snap, err := r.builder.Rebuild(ctx)
			if err != nil {
				r.logger.Error("periodic rebuild failed, keeping previous snapshot",
					slog.String("error", err.Error()),
				)
				continue
			}
			r.current.Store(snap)
			r.sink.RecordEvent(ctx, "index_rebuilt", snap.Stats)
		}
	}
}

// Current returns the latest complete snapshot, or nil before Init.
func (r *Runner) Current() *domain.Snapshot {
	return r.current.Load()
}
