package app

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voznyak/flarex/internal/domain"
)

func TestRecentOpportunitiesRing(t *testing.T) {
	r := NewRecentOpportunities(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		r.RecordEvent(ctx, "opportunity_observed", &domain.Opportunity{ID: fmt.Sprintf("op-%d", i)})
	}

	got := r.List()
	require.Len(t, got, 3, "capacity bounds the buffer")
	assert.Equal(t, "op-2", got[0].ID, "oldest surviving entry first")
	assert.Equal(t, "op-4", got[2].ID)
}

func TestRecentOpportunitiesIgnoresOtherPayloads(t *testing.T) {
	r := NewRecentOpportunities(3)
	r.RecordEvent(context.Background(), "status", map[string]int64{"x": 1})
	r.RecordEvent(context.Background(), "execution_result", domain.ExecutionResult{})
	assert.Empty(t, r.List())
}

func TestRecentOpportunitiesPartialFill(t *testing.T) {
	r := NewRecentOpportunities(8)
	r.RecordEvent(context.Background(), "opportunity_observed", &domain.Opportunity{ID: "only"})
	got := r.List()
	require.Len(t, got, 1)
	assert.Equal(t, "only", got[0].ID)
}
