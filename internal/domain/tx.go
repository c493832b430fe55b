package domain

import "time"

// Instruction is one ledger instruction: a program call with its ordered
// account references and opaque payload. Instruction contents are produced by
// venue adapters and the financing reserve; the engine only orders and wires
// them.
type Instruction struct {
	ProgramID string
	Accounts  []string
	Data      []byte
	Label     string // for logs and simulation traces
}

// Transaction is one atomic unit of ledger work. Atomicity is enforced by
// the ledger itself; the engine's job is correct instruction ordering.
type Transaction struct {
	ID           string
	Payer        string
	Instructions []Instruction
	// LookupTables references address lookup tables needed to keep the
	// serialized transaction within size limits.
	LookupTables []string
}

// SimResult is the outcome of a dry-run simulation.
type SimResult struct {
	Err  string // empty on success
	Logs []string
}

// OK reports whether the simulation passed.
func (r SimResult) OK() bool { return r.Err == "" }

// LogEvent is a decoded entry from the ledger log subscription. For venue
// program targets, Notional carries the trade's USD notional in ticks when
// the adapter could decode it, 0 otherwise.
type LogEvent struct {
	Target    string
	Signature string
	Venue     string
	Asset     string
	Notional  int64
	Raw       []byte
	At        time.Time
}

// Filter selects the position accounts to enumerate for one lending market.
type Filter struct {
	Market   string
	DataSize int64
}

// Quote is one venue's answer for swapping InAmount of InAsset into OutAsset.
type Quote struct {
	Venue     string
	InAsset   string
	OutAsset  string
	InAmount  int64
	OutAmount int64
	Route     []string
	FeeBps    float64
	Liquidity int64 // pool/book depth on the quoted pair, ticks
	At        time.Time
}

// Price returns OutAmount per unit of InAmount as a display float.
func (q Quote) Price() float64 {
	if q.InAmount == 0 {
		return 0
	}
	return float64(q.OutAmount) / float64(q.InAmount)
}
