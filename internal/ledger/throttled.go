// Package ledger wraps the external ledger collaborators with the process-wide
// read throttle. The engine never calls a raw reader directly; every external
// read passes through Throttled so the fixed request budget is observed with
// FIFO ordering.
package ledger

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/voznyak/flarex/internal/domain"
)

// Throttled decorates a LedgerReader with a client-side rate limiter. Waiters
// are served in FIFO order; the engine tolerates the added latency and
// assumes no priority beyond that.
type Throttled struct {
	reader  domain.LedgerReader
	limiter *rate.Limiter
}

// NewThrottled wraps reader with a limiter of maxPerSec requests per second.
// Burst is pinned to 1 so the budget is spent evenly rather than in spikes.
func NewThrottled(reader domain.LedgerReader, maxPerSec float64) *Throttled {
	return &Throttled{
		reader:  reader,
		limiter: rate.NewLimiter(rate.Limit(maxPerSec), 1),
	}
}

// Enumerate lists position account ids after acquiring a request slot.
func (t *Throttled) Enumerate(ctx context.Context, f domain.Filter) ([]string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ledger: enumerate throttle: %w", err)
	}
	return t.reader.Enumerate(ctx, f)
}

// FetchMany fetches one batch of payloads after acquiring a request slot.
// One batch costs one slot regardless of its size; batch sizing is the
// caller's lever for trading latency against request budget.
func (t *Throttled) FetchMany(ctx context.Context, ids []string) ([][]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ledger: fetch throttle: %w", err)
	}
	return t.reader.FetchMany(ctx, ids)
}

// SubscribeLogs passes through unthrottled: the subscription is one long-lived
// stream, not a polled read.
func (t *Throttled) SubscribeLogs(ctx context.Context, target string, fn func(domain.LogEvent)) error {
	return t.reader.SubscribeLogs(ctx, target, fn)
}

// Compile-time interface check.
var _ domain.LedgerReader = (*Throttled)(nil)
