package execution

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voznyak/flarex/internal/domain"
	"github.com/voznyak/flarex/internal/telemetry"
)

func newTestWorker(sub *stubSubmitter, enabled bool, cooldown time.Duration) (*Worker, *telemetry.Metrics, *recordingSink, chan *domain.Opportunity) {
	metrics := telemetry.NewMetrics()
	sink := &recordingSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	builder := NewTxBuilder(testBuilderConfig(), &stubReserve{feeBps: 9}, arbitrageVenues())
	executor := NewExecutor(builder, sub, metrics, sink, logger)
	mutex := NewTryMutex(cooldown, metrics)
	ch := make(chan *domain.Opportunity, 4)
	return NewWorker(ch, mutex, executor, sink, enabled, logger), metrics, sink, ch
}

func TestWorkerExecutesOpportunity(t *testing.T) {
	sub := &stubSubmitter{}
	w, metrics, _, _ := newTestWorker(sub, true, 0)

	w.handle(context.Background(), crossVenueOp())

	assert.Len(t, sub.submitted, 1)
	assert.Equal(t, int64(1), metrics.Outcome(domain.OutcomeSuccess))
}

func TestWorkerDisabledRecordsOnly(t *testing.T) {
	sub := &stubSubmitter{}
	w, _, sink, _ := newTestWorker(sub, false, 0)

	w.handle(context.Background(), crossVenueOp())

	assert.Empty(t, sub.simulated)
	assert.Empty(t, sub.submitted)
	assert.Contains(t, sink.kinds, "opportunity_observed")
}

func TestWorkerSkipsExpiredOpportunity(t *testing.T) {
	sub := &stubSubmitter{}
	w, _, sink, _ := newTestWorker(sub, true, 0)

	op := crossVenueOp()
	op.ExpiresAt = time.Now().Add(-time.Second)
	w.handle(context.Background(), op)

	assert.Empty(t, sub.submitted)
	assert.Contains(t, sink.kinds, "opportunity_expired")
}

func TestWorkerCooldownSkip(t *testing.T) {
	sub := &stubSubmitter{}
	w, metrics, sink, _ := newTestWorker(sub, true, time.Hour)

	w.handle(context.Background(), crossVenueOp())
	require.Len(t, sub.submitted, 1)

	// Second attempt inside the cooldown window is skipped, not queued.
	w.handle(context.Background(), crossVenueOp())
	assert.Len(t, sub.submitted, 1)
	assert.Equal(t, int64(1), metrics.SkipsCooldown.Load())
	assert.Contains(t, sink.kinds, "opportunity_skipped")
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	sub := &stubSubmitter{}
	w, _, _, ch := newTestWorker(sub, true, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	ch <- crossVenueOp()
	// Give the worker a moment to drain the channel before cancelling.
	require.Eventually(t, func() bool { return len(sub.submitted) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancellation")
	}
}
