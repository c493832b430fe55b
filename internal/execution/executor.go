package execution

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/voznyak/flarex/internal/domain"
	"github.com/voznyak/flarex/internal/telemetry"
)

// Executor drives one opportunity through build, simulate, submit, confirm
// and classifies the result. Every attempt terminates in exactly one Outcome;
// the expected negative results are outcomes here, not errors.
type Executor struct {
	builder   *TxBuilder
	submitter domain.LedgerSubmitter
	metrics   *telemetry.Metrics
	sink      domain.EventSink
	logger    *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(builder *TxBuilder, submitter domain.LedgerSubmitter, metrics *telemetry.Metrics, sink domain.EventSink, logger *slog.Logger) *Executor {
	return &Executor{
		builder:   builder,
		submitter: submitter,
		metrics:   metrics,
		sink:      sink,
		logger:    logger.With(slog.String("component", "executor")),
	}
}

// Execute runs the full pipeline for one opportunity. The simulation gate is
// absolute: a transaction that fails the dry run is never submitted.
func (e *Executor) Execute(ctx context.Context, op *domain.Opportunity) domain.ExecutionResult {
	tx, net, err := e.builder.Build(ctx, op)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotProfitable):
			return e.finish(ctx, op, domain.ExecutionResult{
				OpportunityID: op.ID,
				Outcome:       domain.OutcomeNotProfitable,
				NetProfit:     net,
				Detail:        err.Error(),
			})
		default:
			return e.finish(ctx, op, domain.ExecutionResult{
				OpportunityID: op.ID,
				Outcome:       domain.OutcomeQuoteUnavailable,
				Detail:        err.Error(),
			})
		}
	}

	sim, err := e.submitter.Simulate(ctx, tx)
	if err != nil || !sim.OK() {
		detail := sim.Err
		if err != nil {
			detail = err.Error()
		}
		return e.finish(ctx, op, domain.ExecutionResult{
			OpportunityID: op.ID,
			Outcome:       domain.OutcomeSimulationFailed,
			NetProfit:     net,
			Detail:        detail + simLogTail(sim),
		})
	}

	sig, err := e.submitter.Submit(ctx, tx)
	if err != nil {
		return e.finish(ctx, op, domain.ExecutionResult{
			OpportunityID: op.ID,
			Outcome:       domain.OutcomeSendFailed,
			NetProfit:     net,
			Detail:        err.Error(),
		})
	}

	if err := e.submitter.Confirm(ctx, sig); err != nil {
		// Window expiry or cancellation leaves the send ambiguous: the
		// transaction was never observed to fail on chain, so it must not
		// be classified as a rejection.
		outcome := domain.OutcomeConfirmedError
		if errors.Is(err, domain.ErrConfirmTimeout) || errors.Is(err, context.Canceled) {
			outcome = domain.OutcomeSendFailed
		}
		return e.finish(ctx, op, domain.ExecutionResult{
			OpportunityID: op.ID,
			Outcome:       outcome,
			Signature:     sig,
			NetProfit:     net,
			Detail:        err.Error(),
		})
	}

	return e.finish(ctx, op, domain.ExecutionResult{
		OpportunityID: op.ID,
		Outcome:       domain.OutcomeSuccess,
		Signature:     sig,
		NetProfit:     net,
	})
}

// finish records the outcome once on every exit path.
func (e *Executor) finish(ctx context.Context, op *domain.Opportunity, res domain.ExecutionResult) domain.ExecutionResult {
	e.metrics.RecordOutcome(res.Outcome)
	level := slog.LevelInfo
	if res.Outcome == domain.OutcomeSendFailed || res.Outcome == domain.OutcomeConfirmedError {
		level = slog.LevelWarn
	}
	e.logger.Log(ctx, level, "execution finished",
		slog.String("opportunity", op.ID),
		slog.String("kind", string(op.Kind)),
		slog.String("outcome", string(res.Outcome)),
		slog.String("signature", res.Signature),
		slog.Int64("net_profit", res.NetProfit),
		slog.String("detail", res.Detail))
	e.sink.RecordEvent(ctx, "execution_result", res)
	return res
}

// simLogTail keeps the last few simulation log lines for the failure detail.
func simLogTail(sim domain.SimResult) string {
	if len(sim.Logs) == 0 {
		return ""
	}
	logs := sim.Logs
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return "; logs: " + strings.Join(logs, " | ")
}
