package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voznyak/flarex/internal/domain"
)

func newTestSizer() *Sizer {
	return New(Config{
		MaxLiquidityRatio: 0.10,
		MaxSlippagePct:    0.02,
		LadderBaseUSD:     100,
		LadderSteps:       8,
		MinProfitUSD:      1.0,
	})
}

func TestChooseNeverExceedsLiquidityCap(t *testing.T) {
	s := newTestSizer()
	in := Inputs{
		SpreadPct:        0.01,
		VenueFeesBps:     10,
		FlashFeeBps:      9,
		VenueLiquidity:   500_000 * domain.PriceScale,
		ReserveLiquidity: 1_000_000 * domain.PriceScale,
	}
	res, ok := s.Choose(in)
	require.True(t, ok)
	assert.LessOrEqual(t, res.Size, int64(float64(in.VenueLiquidity)*0.10))
}

func TestChooseBoundedByReserve(t *testing.T) {
	s := newTestSizer()
	in := Inputs{
		SpreadPct:        0.01,
		VenueFeesBps:     10,
		FlashFeeBps:      9,
		VenueLiquidity:   500_000 * domain.PriceScale,
		ReserveLiquidity: 200 * domain.PriceScale,
	}
	res, ok := s.Choose(in)
	require.True(t, ok)
	assert.LessOrEqual(t, res.Size, in.ReserveLiquidity)
}

func TestChooseNotProfitableIsNormal(t *testing.T) {
	s := newTestSizer()
	// Fees eat the entire spread: no candidate can clear the floor.
	in := Inputs{
		SpreadPct:        0.001,
		VenueFeesBps:     20,
		FlashFeeBps:      9,
		VenueLiquidity:   500_000 * domain.PriceScale,
		ReserveLiquidity: 1_000_000 * domain.PriceScale,
	}
	res, ok := s.Choose(in)
	assert.False(t, ok)
	assert.Zero(t, res.Size)
}

func TestChooseZeroFloorRejectsLosingCandidates(t *testing.T) {
	s := New(Config{
		MaxLiquidityRatio: 0.10,
		MaxSlippagePct:    0.02,
		LadderBaseUSD:     100,
		LadderSteps:       8,
		MinProfitUSD:      0,
	})
	// Every candidate loses money; a zero floor must not turn the zero-value
	// best into a chosen size of zero.
	res, ok := s.Choose(Inputs{
		SpreadPct:        0.0001,
		VenueFeesBps:     50,
		FlashFeeBps:      9,
		VenueLiquidity:   500_000 * domain.PriceScale,
		ReserveLiquidity: 1_000_000 * domain.PriceScale,
	})
	assert.False(t, ok)
	assert.Zero(t, res.Size)
}

func TestChooseZeroLiquidity(t *testing.T) {
	s := newTestSizer()
	_, ok := s.Choose(Inputs{SpreadPct: 0.05})
	assert.False(t, ok)
}

func TestChooseReportsPositiveNet(t *testing.T) {
	s := newTestSizer()
	res, ok := s.Choose(Inputs{
		SpreadPct:        0.007,
		VenueFeesBps:     10,
		FlashFeeBps:      9,
		VenueLiquidity:   1_000_000 * domain.PriceScale,
		ReserveLiquidity: 1_000_000 * domain.PriceScale,
	})
	require.True(t, ok)
	assert.GreaterOrEqual(t, res.NetProfit, int64(1*domain.PriceScale))
	assert.Greater(t, res.Size, int64(0))
}

func TestSlippageQuadraticAndCapped(t *testing.T) {
	s := newTestSizer()
	liq := int64(1_000 * domain.PriceScale)

	small := s.slippagePct(liq/100, liq)
	large := s.slippagePct(liq/10, liq)
	assert.InDelta(t, 100.0, large/small, 1e-6, "ratio 10x in size means 100x in slippage")

	assert.Equal(t, s.maxSlippagePct, s.slippagePct(liq, liq), "capped at max")
	assert.Equal(t, s.maxSlippagePct, s.slippagePct(liq, 0), "no depth means worst case")
}
