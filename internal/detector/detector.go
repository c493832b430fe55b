// Package detector turns market triggers into sized, priced opportunities.
// The liquidation strategy reacts to oracle price drops against the
// obligation index; the cross-venue strategy reacts to large trades that may
// have moved one venue out of line with the others.
package detector

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voznyak/flarex/internal/domain"
	"github.com/voznyak/flarex/internal/sizing"
	"github.com/voznyak/flarex/internal/telemetry"
	"github.com/voznyak/flarex/internal/venue"
)

// SnapshotSource serves the current obligation index snapshot.
type SnapshotSource interface {
	Current() *domain.Snapshot
}

// Config carries detector thresholds. All monetary values are in ticks.
type Config struct {
	MinProfit        int64
	TradeNotional    int64
	SpreadThreshold  float64
	QuoteTTL         time.Duration
	QuoteMinInterval time.Duration
	OpportunityTTL   time.Duration
	BufferSize       int

	CloseFactor         float64
	LiquidationBonusBps int
	ReserveAsset        string
}

// Detector owns the opportunity channel and the two detection strategies.
type Detector struct {
	cfg       Config
	snapshots SnapshotSource
	venues    []venue.Adapter
	reserve   domain.FinancingReserve
	sizer     *sizing.Sizer
	quotes    *quoteCache
	metrics   *telemetry.Metrics
	logger    *slog.Logger

	out chan *domain.Opportunity
}

// New creates a Detector. The opportunity channel is bounded; when the
// executor falls behind, new opportunities are dropped and counted rather
// than queued, since a stale opportunity is worthless.
func New(cfg Config, snapshots SnapshotSource, venues []venue.Adapter, reserve domain.FinancingReserve, sizer *sizing.Sizer, metrics *telemetry.Metrics, logger *slog.Logger) *Detector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}
	return &Detector{
		cfg:       cfg,
		snapshots: snapshots,
		venues:    venues,
		reserve:   reserve,
		sizer:     sizer,
		quotes:    newQuoteCache(cfg.QuoteTTL, cfg.QuoteMinInterval, metrics),
		metrics:   metrics,
		logger:    logger.With(slog.String("component", "detector")),
		out:       make(chan *domain.Opportunity, cfg.BufferSize),
	}
}

// Opportunities is the channel the execution worker consumes.
func (d *Detector) Opportunities() <-chan *domain.Opportunity {
	return d.out
}

// publish stamps identity and expiry and hands the opportunity off without
// blocking the detection path.
func (d *Detector) publish(op *domain.Opportunity) {
	now := time.Now()
	op.ID = uuid.NewString()
	op.DetectedAt = now
	op.ExpiresAt = now.Add(d.cfg.OpportunityTTL)

	select {
	case d.out <- op:
		d.metrics.OpportunitiesDetected.Add(1)
		d.logger.Info("opportunity detected",
			slog.String("id", op.ID),
			slog.String("kind", string(op.Kind)),
			slog.String("asset", op.Asset),
			slog.Int64("amount", op.Amount),
			slog.Int64("net_profit", op.NetProfit),
			slog.String("reason", op.Reason))
	default:
		d.metrics.OpportunitiesDropped.Add(1)
		d.logger.Warn("opportunity dropped, channel full",
			slog.String("kind", string(op.Kind)),
			slog.String("asset", op.Asset))
	}
}
