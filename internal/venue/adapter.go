// Package venue defines the capability interface the detector and transaction
// builder depend on, and the closed set of per-venue action shapes behind it.
package venue

import (
	"context"

	"github.com/voznyak/flarex/internal/domain"
)

// ActionKind is the closed set of ledger actions a venue adapter can emit.
type ActionKind string

const (
	ActionLiquidate                 ActionKind = "liquidate"
	ActionSwapConstantProduct       ActionKind = "swap_constant_product"
	ActionSwapConcentratedLiquidity ActionKind = "swap_concentrated_liquidity"
	ActionSwapOrderbook             ActionKind = "swap_orderbook"
)

// KindFromConfig maps a config venue kind string to its swap ActionKind.
func KindFromConfig(kind string) ActionKind {
	switch kind {
	case "concentrated":
		return ActionSwapConcentratedLiquidity
	case "orderbook":
		return ActionSwapOrderbook
	default:
		return ActionSwapConstantProduct
	}
}

// Adapter is the capability a venue exposes: quoting a pair and resolving a
// quote into ledger instructions. The detector and the transaction builder
// depend only on this interface, never on a concrete venue shape.
type Adapter interface {
	Name() string
	// Quote returns the venue's answer for swapping amount of inAsset into
	// outAsset. Failures surface as errors and are treated as
	// quote-unavailable by the caller, never as fatal.
	Quote(ctx context.Context, inAsset, outAsset string, amount int64) (domain.Quote, error)
	// BuildActionInstructions resolves a previously obtained quote into the
	// instructions that perform it, plus any address lookup table references
	// needed to keep the final transaction within size limits.
	BuildActionInstructions(ctx context.Context, q domain.Quote) ([]domain.Instruction, []string, error)
	// Liquidity reports the venue's depth for the pair in ticks.
	Liquidity(ctx context.Context, inAsset, outAsset string) (int64, error)
	// FeeBps is the venue's taker fee in basis points.
	FeeBps() float64
}
