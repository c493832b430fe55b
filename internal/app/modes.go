package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/sync/errgroup"

	"github.com/voznyak/flarex/internal/domain"
)

// RunMode starts the full pipeline with execution enabled per config.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting run mode")
	return a.runPipeline(ctx, deps)
}

// DetectMode starts the full pipeline with submission forced off at wire
// time: opportunities are detected, logged, and recorded, never executed.
func (a *App) DetectMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting detect mode, execution disabled")
	return a.runPipeline(ctx, deps)
}

// IndexMode performs one synchronous index rebuild, logs its statistics, and
// exits.
func (a *App) IndexMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting index mode")
	if err := deps.Index.Init(ctx); err != nil {
		return err
	}
	snap := deps.Index.Current()
	a.logger.InfoContext(ctx, "index rebuild complete",
		slog.Int("enumerated", snap.Stats.Enumerated),
		slog.Int("indexed", snap.Stats.Indexed),
		slog.Int("skipped_zero_debt", snap.Stats.SkippedZeroDebt),
		slog.Int("parse_errors", snap.Stats.ParseErrors),
		slog.Int("dropped_batches", snap.Stats.DroppedBatches),
		slog.Duration("elapsed", snap.Stats.Elapsed),
	)
	return nil
}

// runPipeline builds the index synchronously, then runs the feed, the
// periodic rebuilds, the venue log subscriptions, and the execution worker
// until the context is cancelled.
func (a *App) runPipeline(ctx context.Context, deps *Dependencies) error {
	// The first build is synchronous; detection without an index would just
	// drop every trigger.
	if err := deps.Index.Init(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return deps.Index.Run(ctx) })
	g.Go(func() error { return deps.Feed.Run(ctx) })
	g.Go(func() error { return deps.Worker.Run(ctx) })

	for _, vc := range a.cfg.Venues {
		if vc.Program == "" {
			continue
		}
		program := vc.Program
		g.Go(func() error { return a.watchVenueLogs(ctx, deps, program) })
	}

	g.Go(func() error { return a.statusLoop(ctx, deps) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}

// watchVenueLogs keeps one venue program's log subscription alive, feeding
// large-trade events to the detector off the subscription goroutine.
func (a *App) watchVenueLogs(ctx context.Context, deps *Dependencies, program string) error {
	bo := &backoff.Backoff{Min: time.Second, Max: time.Minute, Factor: 2, Jitter: true}
	for {
		err := deps.Reader.SubscribeLogs(ctx, program, func(ev domain.LogEvent) {
			go deps.Detector.OnLargeTrade(ctx, ev)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := bo.Duration()
		a.logger.WarnContext(ctx, "venue log subscription lost, reconnecting",
			slog.String("program", program),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// statusLoop logs the counter snapshot and recent opportunity count once a
// minute.
func (a *App) statusLoop(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.logger.InfoContext(ctx, "status",
				slog.Any("counters", deps.Metrics.SnapshotMap()),
				slog.Int("recent_opportunities", len(deps.Recent.List())),
			)
			deps.Sink.RecordEvent(ctx, "status", deps.Metrics.SnapshotMap())
		}
	}
}
