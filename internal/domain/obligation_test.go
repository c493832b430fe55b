package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketFor(t *testing.T) {
	assert.Equal(t, int64(0), BucketFor(999_999, 1_000_000))
	assert.Equal(t, int64(1), BucketFor(1_000_000, 1_000_000))
	assert.Equal(t, int64(100), BucketFor(100_700_000, 1_000_000))
	assert.Equal(t, int64(0), BucketFor(5, 0), "zero width collapses to bucket 0")
}

func TestSnapshotScanInclusiveRange(t *testing.T) {
	low := &Obligation{ID: "low"}
	mid := &Obligation{ID: "mid"}
	high := &Obligation{ID: "high"}
	snap := &Snapshot{
		Buckets: map[string]map[int64][]*Obligation{
			"SOL": {
				10: {low},
				11: {mid},
				12: {high},
			},
		},
		BucketSizes: map[string]int64{"SOL": 1_000_000},
	}

	got := snap.Scan("SOL", 10, 12)
	require.Len(t, got, 3)

	got = snap.Scan("SOL", 11, 11)
	require.Len(t, got, 1)
	assert.Equal(t, "mid", got[0].ID)

	assert.Empty(t, snap.Scan("SOL", 13, 20))
	assert.Empty(t, snap.Scan("ETH", 0, 100), "unindexed symbol")

	var nilSnap *Snapshot
	assert.Empty(t, nilSnap.Scan("SOL", 0, 100))
}

func TestOpportunityExpired(t *testing.T) {
	now := time.Now()
	op := Opportunity{ExpiresAt: now.Add(time.Second)}
	assert.False(t, op.Expired(now))
	assert.True(t, op.Expired(now.Add(2*time.Second)))

	assert.False(t, Opportunity{}.Expired(now), "zero expiry never expires")
}

func TestUSD(t *testing.T) {
	assert.InDelta(t, 1.5, USD(1_500_000), 1e-9)
}
