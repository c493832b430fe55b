// Package sizing chooses the most profitable financeable trade size. The
// model is a deliberate closed-form approximation: it is re-validated by live
// venue quotes and by the on-chain simulation gate before any funds move.
package sizing

import (
	"github.com/voznyak/flarex/internal/domain"
)

// Inputs are the liquidity constraints and cost estimates for one candidate
// trade.
type Inputs struct {
	// SpreadPct is the gross edge as a fraction (e.g. 0.007 for 0.70%).
	SpreadPct float64
	// VenueFeesBps is the summed fee of both legs in basis points.
	VenueFeesBps float64
	// FlashFeeBps is the financing fee in basis points of the borrow.
	FlashFeeBps float64
	// VenueLiquidity is the shallower venue's depth in ticks.
	VenueLiquidity int64
	// ReserveLiquidity is the financing reserve's available liquidity.
	ReserveLiquidity int64
}

// Result is a chosen size with its expected net profit, both in ticks.
type Result struct {
	Size      int64
	NetProfit int64
}

// Sizer enumerates a geometric ladder of candidate sizes and picks the most
// profitable one under the liquidity caps.
type Sizer struct {
	maxLiquidityRatio float64
	maxSlippagePct    float64
	ladderBase        int64
	ladderSteps       int
	profitFloor       int64
}

// Config configures a Sizer.
type Config struct {
	MaxLiquidityRatio float64
	MaxSlippagePct    float64
	LadderBaseUSD     float64
	LadderSteps       int
	MinProfitUSD      float64
}

// New creates a Sizer.
func New(cfg Config) *Sizer {
	return &Sizer{
		maxLiquidityRatio: cfg.MaxLiquidityRatio,
		maxSlippagePct:    cfg.MaxSlippagePct,
		ladderBase:        int64(cfg.LadderBaseUSD * domain.PriceScale),
		ladderSteps:       cfg.LadderSteps,
		profitFloor:       int64(cfg.MinProfitUSD * domain.PriceScale),
	}
}

// Choose returns the ladder candidate with the highest expected net profit.
// ok is false when no candidate clears the profit floor: a normal outcome,
// not an error.
func (s *Sizer) Choose(in Inputs) (Result, bool) {
	cap := s.sizeCap(in)
	if cap <= 0 {
		return Result{}, false
	}

	var best Result
	size := s.ladderBase
	for step := 0; step < s.ladderSteps && size <= cap; step++ {
		profit := s.netProfit(size, in)
		if profit > best.NetProfit {
			best = Result{Size: size, NetProfit: profit}
		}
		size *= 2
	}
	// The cap itself is a candidate: the optimum often sits on the boundary.
	if cap >= s.ladderBase {
		if profit := s.netProfit(cap, in); profit > best.NetProfit {
			best = Result{Size: cap, NetProfit: profit}
		}
	}

	// Size stays zero when every candidate lost money, which a zero floor
	// would otherwise let through.
	if best.Size == 0 || best.NetProfit < s.profitFloor {
		return Result{}, false
	}
	return best, true
}

// sizeCap bounds any candidate by the shallower venue's depth and by the
// financing reserve.
func (s *Sizer) sizeCap(in Inputs) int64 {
	cap := int64(float64(in.VenueLiquidity) * s.maxLiquidityRatio)
	if in.ReserveLiquidity < cap {
		cap = in.ReserveLiquidity
	}
	return cap
}

// netProfit models one candidate:
//
//	net = gross spread − financing fee − venue fees − slippage
//
// with slippage quadratic in the size-to-liquidity ratio, capped.
func (s *Sizer) netProfit(size int64, in Inputs) int64 {
	f := float64(size)
	gross := f * in.SpreadPct
	flashFee := f * in.FlashFeeBps / 10_000
	venueFees := f * in.VenueFeesBps / 10_000
	slippage := f * s.slippagePct(size, in.VenueLiquidity)
	return int64(gross - flashFee - venueFees - slippage)
}

func (s *Sizer) slippagePct(size, liquidity int64) float64 {
	if liquidity <= 0 {
		return s.maxSlippagePct
	}
	ratio := float64(size) / float64(liquidity)
	pct := ratio * ratio
	if pct > s.maxSlippagePct {
		pct = s.maxSlippagePct
	}
	return pct
}
