package index

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voznyak/flarex/internal/domain"
	"github.com/voznyak/flarex/internal/telemetry"
)

type position struct {
	symbol string
	amount int64
	usd    int64
}

// encodeObligation builds a raw payload in the account layout decode expects.
func encodeObligation(collateral, debt []position) []byte {
	raw := make([]byte, headerLen, headerLen+(len(collateral)+len(debt))*posLen)
	binary.LittleEndian.PutUint32(raw[ownerLen:], uint32(len(collateral)))
	binary.LittleEndian.PutUint32(raw[ownerLen+4:], uint32(len(debt)))
	for _, p := range append(append([]position{}, collateral...), debt...) {
		pos := make([]byte, posLen)
		copy(pos[:symbolLen], p.symbol)
		binary.LittleEndian.PutUint64(pos[symbolLen:], uint64(p.amount))
		binary.LittleEndian.PutUint64(pos[symbolLen+8:], uint64(p.usd))
		raw = append(raw, pos...)
	}
	return raw
}

// fakeReader serves a fixed id -> payload map. Batches listed in failBatches
// fail every FetchMany call that starts with that id.
type fakeReader struct {
	payloads map[string][]byte
	failIDs  map[string]bool
}

func (f *fakeReader) Enumerate(ctx context.Context, _ domain.Filter) ([]string, error) {
	ids := make([]string, 0, len(f.payloads))
	for id := range f.payloads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeReader) FetchMany(ctx context.Context, ids []string) ([][]byte, error) {
	for _, id := range ids {
		if f.failIDs[id] {
			return nil, errors.New("fetch failed")
		}
	}
	out := make([][]byte, len(ids))
	for i, id := range ids {
		out[i] = f.payloads[id]
	}
	return out, nil
}

func (f *fakeReader) SubscribeLogs(ctx context.Context, _ string, _ func(domain.LogEvent)) error {
	<-ctx.Done()
	return ctx.Err()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBuilder(reader domain.LedgerReader, batchSize int) *Builder {
	return NewBuilder(reader, BuilderConfig{
		Market:               "market",
		Workers:              4,
		BatchSize:            batchSize,
		LiquidationThreshold: 0.85,
	}, telemetry.NewMetrics(), discardLogger())
}

func TestDecodeObligationComputesLiquidationPrice(t *testing.T) {
	raw := encodeObligation(
		[]position{{"SOL", 10 * domain.PriceScale, 1_000 * domain.PriceScale}},
		[]position{{"USDC", 500 * domain.PriceScale, 500 * domain.PriceScale}},
	)
	ob, err := decodeObligation("ob1", raw, 0.85)
	require.NoError(t, err)
	require.NotNil(t, ob)

	assert.Equal(t, int64(500*domain.PriceScale), ob.DebtUSD)
	assert.InDelta(t, 0.5, ob.LTV, 1e-9)
	// 500 USD debt against 10 SOL at threshold 0.85: liq price 42.50.
	require.Len(t, ob.Collateral, 1)
	assert.Equal(t, int64(42_500_000), ob.Collateral[0].LiquidationPrice)
}

func TestDecodeObligationZeroDebtIsNil(t *testing.T) {
	raw := encodeObligation(
		[]position{{"SOL", 10 * domain.PriceScale, 1_000 * domain.PriceScale}},
		nil,
	)
	ob, err := decodeObligation("ob1", raw, 0.85)
	require.NoError(t, err)
	assert.Nil(t, ob)
}

func TestDecodeObligationSkipsPlaceholderPositions(t *testing.T) {
	raw := encodeObligation(
		[]position{
			{"SOL", 10 * domain.PriceScale, 1_000 * domain.PriceScale},
			{"", 0, 0},
		},
		[]position{
			{"USDC", 500 * domain.PriceScale, 500 * domain.PriceScale},
			{"", 0, 0},
		},
	)
	ob, err := decodeObligation("ob1", raw, 0.85)
	require.NoError(t, err)
	require.NotNil(t, ob)
	assert.Len(t, ob.Collateral, 1)
	assert.Len(t, ob.Debt, 1)
}

func TestDecodeObligationTruncated(t *testing.T) {
	raw := encodeObligation(
		[]position{{"SOL", 1, 1}},
		[]position{{"USDC", 1, 1}},
	)
	_, err := decodeObligation("ob1", raw[:len(raw)-4], 0.85)
	assert.Error(t, err)
}

func TestRebuildBucketPlacementAndZeroDebtExclusion(t *testing.T) {
	reader := &fakeReader{payloads: map[string][]byte{
		"indexed": encodeObligation(
			[]position{{"SOL", 10 * domain.PriceScale, 1_000 * domain.PriceScale}},
			[]position{{"USDC", 500 * domain.PriceScale, 500 * domain.PriceScale}},
		),
		"zerodebt": encodeObligation(
			[]position{{"SOL", 10 * domain.PriceScale, 1_000 * domain.PriceScale}},
			nil,
		),
		"garbage": {0xde, 0xad},
	}}
	b := newTestBuilder(reader, 100)

	snap, err := b.Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, snap.Stats.Enumerated)
	assert.Equal(t, 1, snap.Stats.Indexed)
	assert.Equal(t, 1, snap.Stats.SkippedZeroDebt)
	assert.Equal(t, 1, snap.Stats.ParseErrors)

	require.Len(t, snap.Obligations, 1)
	ob := snap.Obligations[0]
	size := snap.BucketSize("SOL")
	require.Greater(t, size, int64(0))
	want := domain.BucketFor(ob.Collateral[0].LiquidationPrice, size)
	got := snap.Buckets["SOL"][want]
	require.Len(t, got, 1)
	assert.Equal(t, "indexed", got[0].ID)
}

func TestRebuildIdempotent(t *testing.T) {
	payloads := map[string][]byte{}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		amount := int64(len(id)) * 7 * domain.PriceScale
		payloads[id] = encodeObligation(
			[]position{{"SOL", amount, 2_000 * domain.PriceScale}},
			[]position{{"USDC", 900 * domain.PriceScale, 900 * domain.PriceScale}},
		)
	}
	b := newTestBuilder(&fakeReader{payloads: payloads}, 2)

	first, err := b.Rebuild(context.Background())
	require.NoError(t, err)
	second, err := b.Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.BucketSizes, second.BucketSizes)
	require.Equal(t, len(first.Buckets["SOL"]), len(second.Buckets["SOL"]))
	for bucket, obs := range first.Buckets["SOL"] {
		want := idsOf(obs)
		got := idsOf(second.Buckets["SOL"][bucket])
		assert.ElementsMatch(t, want, got, "bucket %d membership", bucket)
	}
}

func TestRebuildDropsFailedBatchAfterRetry(t *testing.T) {
	reader := &fakeReader{
		payloads: map[string][]byte{
			"aa": encodeObligation(
				[]position{{"SOL", 10 * domain.PriceScale, 1_000 * domain.PriceScale}},
				[]position{{"USDC", 500 * domain.PriceScale, 500 * domain.PriceScale}},
			),
			"bb": encodeObligation(
				[]position{{"SOL", 20 * domain.PriceScale, 2_000 * domain.PriceScale}},
				[]position{{"USDC", 700 * domain.PriceScale, 700 * domain.PriceScale}},
			),
		},
		failIDs: map[string]bool{"bb": true},
	}
	b := newTestBuilder(reader, 1)

	snap, err := b.Rebuild(context.Background())
	require.NoError(t, err, "batch failures are not fatal")
	assert.Equal(t, 1, snap.Stats.DroppedBatches)
	assert.Equal(t, 1, snap.Stats.Indexed)
}

func TestRebuildEnumerateFailureIsFatal(t *testing.T) {
	b := newTestBuilder(enumFailReader{}, 100)
	_, err := b.Rebuild(context.Background())
	assert.Error(t, err)
}

type enumFailReader struct{}

func (enumFailReader) Enumerate(context.Context, domain.Filter) ([]string, error) {
	return nil, errors.New("rpc down")
}
func (enumFailReader) FetchMany(context.Context, []string) ([][]byte, error) {
	return nil, errors.New("rpc down")
}
func (enumFailReader) SubscribeLogs(context.Context, string, func(domain.LogEvent)) error {
	return errors.New("rpc down")
}

func TestDeriveBucketSize(t *testing.T) {
	assert.Equal(t, int64(1), deriveBucketSize(0))
	assert.Equal(t, int64(1), deriveBucketSize(999))
	assert.Equal(t, int64(100_000), deriveBucketSize(100_000_000*2))
}

func idsOf(obs []*domain.Obligation) []string {
	out := make([]string, len(obs))
	for i, ob := range obs {
		out[i] = ob.ID
	}
	return out
}
