package domain

// Outcome is the terminal classification of one execution attempt. Expected
// negative results (not_profitable, quote_unavailable) are outcomes, not
// errors; they must never flow through error control paths.
type Outcome string

const (
	// OutcomeQuoteUnavailable means a required venue quote could not be
	// obtained; the candidate was skipped before any instruction was built.
	OutcomeQuoteUnavailable Outcome = "quote_unavailable"

	// OutcomeNotProfitable means the sizer found no candidate size clearing
	// the profit floor. A normal result.
	OutcomeNotProfitable Outcome = "not_profitable"

	// OutcomeSimulationFailed means the dry-run against current ledger state
	// failed. Nothing was submitted; no funds moved.
	OutcomeSimulationFailed Outcome = "simulation_failed"

	// OutcomeSendFailed means the transaction was submitted but never
	// confirmed. Ambiguous: the transaction may or may not have landed, so
	// neither success nor failure may be assumed.
	OutcomeSendFailed Outcome = "send_failed"

	// OutcomeConfirmedError means the transaction confirmed on-chain but was
	// rejected during execution. Concrete: do not retry identical parameters.
	OutcomeConfirmedError Outcome = "confirmed_error"

	// OutcomeSuccess means the transaction confirmed and executed.
	OutcomeSuccess Outcome = "success"
)

// SkipReason labels why the execution mutex rejected an acquisition attempt.
type SkipReason string

const (
	SkipNone     SkipReason = ""
	SkipBusy     SkipReason = "busy"
	SkipCooldown SkipReason = "cooldown"
)

// ExecutionResult is the record of one attempt to execute an opportunity.
type ExecutionResult struct {
	OpportunityID string
	Outcome       Outcome
	Signature     string
	NetProfit     int64
	Detail        string
}
