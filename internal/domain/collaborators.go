package domain

import "context"

// LedgerReader is the batched read side of the ledger collaborator. All
// implementations are expected to sit behind the throttled wrapper so that
// external reads observe the global request budget (FIFO, fixed max req/s).
type LedgerReader interface {
	// Enumerate lists the identifiers of all position accounts matching the
	// filter. Failure during startup is fatal.
	Enumerate(ctx context.Context, f Filter) ([]string, error)
	// FetchMany returns the raw payload for each id, position-aligned with
	// the input. A nil payload marks an account that no longer exists.
	FetchMany(ctx context.Context, ids []string) ([][]byte, error)
	// SubscribeLogs streams decoded log events for the given program target
	// until ctx is cancelled. The callback must not block.
	SubscribeLogs(ctx context.Context, target string, fn func(LogEvent)) error
}

// LedgerSubmitter is the write side of the ledger collaborator: dry-run,
// submit, confirm. Submitted transactions are not revocable; cancellation
// exists only before submission.
type LedgerSubmitter interface {
	Simulate(ctx context.Context, tx *Transaction) (SimResult, error)
	Submit(ctx context.Context, tx *Transaction) (string, error)
	Confirm(ctx context.Context, signature string) error
}

// FinancingReserve provides flash-financing instructions and liquidity.
type FinancingReserve interface {
	// BuildBorrow returns the borrow instruction for amount of asset.
	BuildBorrow(asset string, amount int64) Instruction
	// BuildRepay returns the repay instruction. borrowIndex is the final
	// position of the borrow instruction within the assembled transaction;
	// the reserve program verifies the pairing on-chain.
	BuildRepay(asset string, amount int64, borrowIndex int) Instruction
	AvailableLiquidity(ctx context.Context, asset string) (int64, error)
	// FeeBps is the flash financing fee in basis points of the borrow.
	FeeBps() float64
}

// EventSink receives structured operational events. The core only emits;
// external stats surfaces consume.
type EventSink interface {
	RecordEvent(ctx context.Context, kind string, payload any)
}
