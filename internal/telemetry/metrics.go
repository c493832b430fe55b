// Package telemetry provides the engine's injected metrics object and the
// event sink implementations consumed by external stats surfaces.
package telemetry

import (
	"sync/atomic"

	"github.com/voznyak/flarex/internal/domain"
)

// Metrics is the engine-owned counter set. It is injected into components
// rather than accessed as package state so tests can assert on a private
// instance. All counters are atomic; Metrics is safe for concurrent use.
type Metrics struct {
	OpportunitiesDetected atomic.Int64
	OpportunitiesDropped  atomic.Int64
	SkipsBusy             atomic.Int64
	SkipsCooldown         atomic.Int64

	FeedMessages   atomic.Int64
	FeedTriggers   atomic.Int64
	TradeTriggers  atomic.Int64
	FeedReconnects atomic.Int64

	IndexRebuilds    atomic.Int64
	IndexParseErrors atomic.Int64

	QuoteHits   atomic.Int64
	QuoteMisses atomic.Int64

	outcomeQuoteUnavailable atomic.Int64
	outcomeNotProfitable    atomic.Int64
	outcomeSimulationFailed atomic.Int64
	outcomeSendFailed       atomic.Int64
	outcomeConfirmedError   atomic.Int64
	outcomeSuccess          atomic.Int64
}

// NewMetrics returns a zeroed Metrics instance.
func NewMetrics() *Metrics { return &Metrics{} }

// RecordOutcome increments the counter for the given execution outcome.
func (m *Metrics) RecordOutcome(o domain.Outcome) {
	switch o {
	case domain.OutcomeQuoteUnavailable:
		m.outcomeQuoteUnavailable.Add(1)
	case domain.OutcomeNotProfitable:
		m.outcomeNotProfitable.Add(1)
	case domain.OutcomeSimulationFailed:
		m.outcomeSimulationFailed.Add(1)
	case domain.OutcomeSendFailed:
		m.outcomeSendFailed.Add(1)
	case domain.OutcomeConfirmedError:
		m.outcomeConfirmedError.Add(1)
	case domain.OutcomeSuccess:
		m.outcomeSuccess.Add(1)
	}
}

// Outcome returns the current count for the given execution outcome.
func (m *Metrics) Outcome(o domain.Outcome) int64 {
	switch o {
	case domain.OutcomeQuoteUnavailable:
		return m.outcomeQuoteUnavailable.Load()
	case domain.OutcomeNotProfitable:
		return m.outcomeNotProfitable.Load()
	case domain.OutcomeSimulationFailed:
		return m.outcomeSimulationFailed.Load()
	case domain.OutcomeSendFailed:
		return m.outcomeSendFailed.Load()
	case domain.OutcomeConfirmedError:
		return m.outcomeConfirmedError.Load()
	case domain.OutcomeSuccess:
		return m.outcomeSuccess.Load()
	}
	return 0
}

// SnapshotMap renders all counters as a map for status events.
func (m *Metrics) SnapshotMap() map[string]int64 {
	return map[string]int64{
		"opportunities_detected":    m.OpportunitiesDetected.Load(),
		"opportunities_dropped":     m.OpportunitiesDropped.Load(),
		"skips_busy":                m.SkipsBusy.Load(),
		"skips_cooldown":            m.SkipsCooldown.Load(),
		"feed_messages":             m.FeedMessages.Load(),
		"feed_triggers":             m.FeedTriggers.Load(),
		"trade_triggers":            m.TradeTriggers.Load(),
		"feed_reconnects":           m.FeedReconnects.Load(),
		"index_rebuilds":            m.IndexRebuilds.Load(),
		"index_parse_errors":        m.IndexParseErrors.Load(),
		"quote_hits":                m.QuoteHits.Load(),
		"quote_misses":              m.QuoteMisses.Load(),
		"outcome_quote_unavailable": m.outcomeQuoteUnavailable.Load(),
		"outcome_not_profitable":    m.outcomeNotProfitable.Load(),
		"outcome_simulation_failed": m.outcomeSimulationFailed.Load(),
		"outcome_send_failed":       m.outcomeSendFailed.Load(),
		"outcome_confirmed_error":   m.outcomeConfirmedError.Load(),
		"outcome_success":           m.outcomeSuccess.Load(),
	}
}
