package execution

import (
	"context"
	"log/slog"
	"time"

	"github.com/voznyak/flarex/internal/domain"
)

// Worker is the single consumer of the opportunity channel. One worker, one
// in-flight execution: capital-free financing means there is no portfolio to
// parallelize over, and the try-mutex guards against anything else slipping
// in through another path.
type Worker struct {
	opportunities <-chan *domain.Opportunity
	mutex         *TryMutex
	executor      *Executor
	sink          domain.EventSink
	logger        *slog.Logger

	// enabled false runs detection only: opportunities are logged and
	// recorded but never executed.
	enabled bool
}

// NewWorker creates a Worker over the detector's channel.
func NewWorker(opportunities <-chan *domain.Opportunity, mutex *TryMutex, executor *Executor, sink domain.EventSink, enabled bool, logger *slog.Logger) *Worker {
	return &Worker{
		opportunities: opportunities,
		mutex:         mutex,
		executor:      executor,
		sink:          sink,
		enabled:       enabled,
		logger:        logger.With(slog.String("component", "worker")),
	}
}

// Run consumes opportunities until ctx is cancelled. In-flight work finishes;
// queued opportunities are dropped on shutdown since they expire anyway.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case op := <-w.opportunities:
			w.handle(ctx, op)
		}
	}
}

func (w *Worker) handle(ctx context.Context, op *domain.Opportunity) {
	if op.Expired(time.Now()) {
		w.logger.Debug("opportunity expired before pickup", slog.String("opportunity", op.ID))
		w.sink.RecordEvent(ctx, "opportunity_expired", op)
		return
	}

	if !w.enabled {
		w.logger.Info("execution disabled, opportunity recorded only",
			slog.String("opportunity", op.ID),
			slog.String("kind", string(op.Kind)),
			slog.Int64("net_profit", op.NetProfit))
		w.sink.RecordEvent(ctx, "opportunity_observed", op)
		return
	}

	release, reason := w.mutex.TryAcquire()
	if reason != domain.SkipNone {
		w.logger.Debug("opportunity skipped",
			slog.String("opportunity", op.ID),
			slog.String("reason", string(reason)))
		w.sink.RecordEvent(ctx, "opportunity_skipped", map[string]string{
			"opportunity": op.ID,
			"reason":      string(reason),
		})
		return
	}
	defer release()

	w.executor.Execute(ctx, op)
}
