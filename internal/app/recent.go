package app

import (
	"context"
	"sync"

	"github.com/voznyak/flarex/internal/domain"
)

// RecentOpportunities is an event sink that keeps the last N detected
// opportunities in a ring buffer for the periodic status log. It ignores
// every other event kind.
type RecentOpportunities struct {
	mu   sync.Mutex
	ring []*domain.Opportunity
	next int
	full bool
}

// NewRecentOpportunities creates a ring of the given capacity.
func NewRecentOpportunities(capacity int) *RecentOpportunities {
	return &RecentOpportunities{ring: make([]*domain.Opportunity, capacity)}
}

// RecordEvent keeps opportunity payloads and drops everything else.
func (r *RecentOpportunities) RecordEvent(ctx context.Context, kind string, payload any) {
	op, ok := payload.(*domain.Opportunity)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring[r.next] = op
	r.next = (r.next + 1) % len(r.ring)
	if r.next == 0 {
		r.full = true
	}
}

// List returns the buffered opportunities, oldest first.
func (r *RecentOpportunities) List() []*domain.Opportunity {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Opportunity
	if r.full {
		out = append(out, r.ring[r.next:]...)
	}
	out = append(out, r.ring[:r.next]...)
	return out
}

// Compile-time interface check.
var _ domain.EventSink = (*RecentOpportunities)(nil)
