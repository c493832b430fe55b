// Package reserve implements the flash financing collaborator over a reserve
// program: borrow and repay instruction construction plus pool liquidity.
package reserve

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/voznyak/flarex/internal/domain"
)

// Instruction tags understood by the reserve program.
const (
	tagBorrow byte = 0
	tagRepay  byte = 1
)

// BalanceFunc reports the current balance of an account in ticks.
type BalanceFunc func(ctx context.Context, account string) (int64, error)

// Flash builds flash borrow and repay instructions for one reserve program.
// The program enforces the borrow/repay pairing on-chain; Flash only encodes
// it. Repay carries the borrow instruction's index so the program can find
// its counterpart inside the transaction.
type Flash struct {
	program          string
	asset            string
	liquidityAccount string
	feeBps           float64
	balance          BalanceFunc
}

// New creates a Flash reserve. balance is typically the ledger client's
// Balance method.
func New(program, asset, liquidityAccount string, feeBps float64, balance BalanceFunc) *Flash {
	return &Flash{
		program:          program,
		asset:            asset,
		liquidityAccount: liquidityAccount,
		feeBps:           feeBps,
		balance:          balance,
	}
}

// BuildBorrow returns the borrow instruction for amount of asset.
func (f *Flash) BuildBorrow(asset string, amount int64) domain.Instruction {
	return domain.Instruction{
		ProgramID: f.program,
		Accounts:  []string{f.liquidityAccount},
		Data:      encodeAmount(tagBorrow, amount, 0),
		Label:     fmt.Sprintf("flash_borrow %s", asset),
	}
}

// BuildRepay returns the repay instruction. borrowIndex is the borrow
// instruction's final position within the assembled transaction.
func (f *Flash) BuildRepay(asset string, amount int64, borrowIndex int) domain.Instruction {
	return domain.Instruction{
		ProgramID: f.program,
		Accounts:  []string{f.liquidityAccount},
		Data:      encodeAmount(tagRepay, amount, byte(borrowIndex)),
		Label:     fmt.Sprintf("flash_repay %s", asset),
	}
}

// AvailableLiquidity reports the reserve pool's current balance.
func (f *Flash) AvailableLiquidity(ctx context.Context, asset string) (int64, error) {
	if asset != f.asset {
		return 0, fmt.Errorf("reserve: asset %q not financed, reserve holds %q", asset, f.asset)
	}
	bal, err := f.balance(ctx, f.liquidityAccount)
	if err != nil {
		return 0, fmt.Errorf("reserve: liquidity: %w", err)
	}
	return bal, nil
}

// FeeBps is the flash financing fee in basis points of the borrow.
func (f *Flash) FeeBps() float64 { return f.feeBps }

// encodeAmount packs tag, little-endian amount, and the borrow index byte.
func encodeAmount(tag byte, amount int64, borrowIndex byte) []byte {
	data := make([]byte, 10)
	data[0] = tag
	binary.LittleEndian.PutUint64(data[1:9], uint64(amount))
	data[9] = borrowIndex
	return data
}

// Compile-time interface check.
var _ domain.FinancingReserve = (*Flash)(nil)
