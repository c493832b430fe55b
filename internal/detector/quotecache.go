package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voznyak/flarex/internal/domain"
	"github.com/voznyak/flarex/internal/telemetry"
	"github.com/voznyak/flarex/internal/venue"
)

// quoteCache throttles quote traffic per venue and pair. A fresh quote is
// served from memory; a stale one is refetched at most once per minInterval
// so a burst of triggers cannot hammer a venue's quote endpoint.
type quoteCache struct {
	ttl         time.Duration
	minInterval time.Duration
	metrics     *telemetry.Metrics

	mu      sync.Mutex
	entries map[string]*quoteEntry
}

type quoteEntry struct {
	quote       *domain.Quote
	fetchedAt   time.Time
	lastAttempt time.Time
}

func newQuoteCache(ttl, minInterval time.Duration, metrics *telemetry.Metrics) *quoteCache {
	return &quoteCache{
		ttl:         ttl,
		minInterval: minInterval,
		metrics:     metrics,
		entries:     make(map[string]*quoteEntry),
	}
}

// Get returns a quote for amount of in priced in out on the given venue.
// A cached quote for a different amount is rescaled linearly; the sizing
// model accounts for depth separately.
func (c *quoteCache) Get(ctx context.Context, adapter venue.Adapter, in, out string, amount int64) (domain.Quote, error) {
	key := adapter.Name() + "/" + in + "/" + out
	now := time.Now()

	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &quoteEntry{}
		c.entries[key] = entry
	}
	if entry.quote != nil && now.Sub(entry.fetchedAt) < c.ttl {
		q := rescale(*entry.quote, amount)
		c.mu.Unlock()
		c.metrics.QuoteHits.Add(1)
		return q, nil
	}
	if !entry.lastAttempt.IsZero() && now.Sub(entry.lastAttempt) < c.minInterval {
		c.mu.Unlock()
		c.metrics.QuoteMisses.Add(1)
		return domain.Quote{}, fmt.Errorf("detector: quote %s throttled: %w", key, domain.ErrQuoteUnavailable)
	}
	entry.lastAttempt = now
	c.mu.Unlock()

	quote, err := adapter.Quote(ctx, in, out, amount)
	if err != nil {
		c.metrics.QuoteMisses.Add(1)
		return domain.Quote{}, fmt.Errorf("detector: quote %s: %w", key, err)
	}

	c.mu.Lock()
	entry.quote = &quote
	entry.fetchedAt = time.Now()
	c.mu.Unlock()

	c.metrics.QuoteMisses.Add(1)
	return quote, nil
}

// rescale projects a cached quote onto a different input amount at the same
// unit price.
func rescale(q domain.Quote, amount int64) domain.Quote {
	if q.InAmount == amount || q.InAmount == 0 {
		return q
	}
	q.OutAmount = int64(float64(q.OutAmount) * float64(amount) / float64(q.InAmount))
	q.InAmount = amount
	return q
}
