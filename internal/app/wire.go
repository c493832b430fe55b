package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voznyak/flarex/internal/config"
	"github.com/voznyak/flarex/internal/detector"
	"github.com/voznyak/flarex/internal/domain"
	"github.com/voznyak/flarex/internal/execution"
	"github.com/voznyak/flarex/internal/feed"
	"github.com/voznyak/flarex/internal/index"
	"github.com/voznyak/flarex/internal/ledger"
	"github.com/voznyak/flarex/internal/reserve"
	"github.com/voznyak/flarex/internal/sizing"
	"github.com/voznyak/flarex/internal/telemetry"
	"github.com/voznyak/flarex/internal/venue"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Metrics *telemetry.Metrics
	Sink    domain.EventSink
	Recent  *RecentOpportunities

	Reader    domain.LedgerReader
	Submitter domain.LedgerSubmitter
	Reserve   domain.FinancingReserve
	Venues    []venue.Adapter

	Index    *index.Runner
	Feed     *feed.Subscriber
	Detector *detector.Detector
	Worker   *execution.Worker
}

// Wire constructs all concrete dependencies from the configuration. The
// execution worker submits only in run mode with execution enabled; detect
// mode runs the full pipeline with submission forced off.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Metrics: telemetry.NewMetrics()}

	// --- Event sinks ---
	deps.Recent = NewRecentOpportunities(64)
	sinks := telemetry.MultiSink{telemetry.NewSlogSink(logger), deps.Recent}
	if cfg.Redis.Enabled {
		rs, err := telemetry.NewRedisSink(ctx,
			cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			cfg.Redis.EventChannel, cfg.Redis.EventStream, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis sink: %w", err)
		}
		closers = append(closers, func() { _ = rs.Close() })
		sinks = append(sinks, rs)
	}
	deps.Sink = sinks

	// --- Ledger ---
	client := ledger.NewClient(cfg.Ledger.RPCEndpoint, cfg.Ledger.WSEndpoint, logger)
	deps.Reader = ledger.NewThrottled(client, cfg.Ledger.MaxReadsPerSec)
	deps.Submitter = client

	// --- Financing reserve ---
	deps.Reserve = reserve.New(
		cfg.Reserve.Program,
		cfg.Reserve.Asset,
		cfg.Reserve.LiquidityAccount,
		cfg.Reserve.FeeBps,
		client.Balance,
	)

	// --- Venues ---
	for _, vc := range cfg.Venues {
		deps.Venues = append(deps.Venues,
			venue.NewHTTPAdapter(vc.Name, venue.KindFromConfig(vc.Kind), vc.QuoteURL, vc.Program, vc.FeeBps))
	}

	// --- Obligation index ---
	builder := index.NewBuilder(deps.Reader, index.BuilderConfig{
		Market:               cfg.Ledger.Market,
		Workers:              cfg.Index.Workers,
		BatchSize:            cfg.Index.BatchSize,
		LiquidationThreshold: cfg.Ledger.LiquidationThreshold,
		BucketSizes:          cfg.Index.BucketSizes,
	}, deps.Metrics, logger)
	deps.Index = index.NewRunner(builder, cfg.Index.RebuildInterval.Duration, deps.Sink, logger)

	// --- Detector ---
	sizer := sizing.New(sizing.Config{
		MaxLiquidityRatio: cfg.Sizing.MaxLiquidityRatio,
		MaxSlippagePct:    cfg.Sizing.MaxSlippagePct,
		LadderBaseUSD:     cfg.Sizing.LadderBaseUSD,
		LadderSteps:       cfg.Sizing.LadderSteps,
		MinProfitUSD:      cfg.Detector.MinProfitUSD,
	})
	deps.Detector = detector.New(detector.Config{
		MinProfit:           cfg.Detector.MinProfitTicks(),
		TradeNotional:       cfg.Detector.TradeNotionalTicks(),
		SpreadThreshold:     cfg.Detector.SpreadThreshold,
		QuoteTTL:            cfg.Detector.QuoteTTL.Duration,
		QuoteMinInterval:    cfg.Detector.QuoteMinInterval.Duration,
		OpportunityTTL:      cfg.Detector.OpportunityTTL.Duration,
		BufferSize:          cfg.Detector.BufferSize,
		CloseFactor:         cfg.Ledger.CloseFactor,
		LiquidationBonusBps: int(cfg.Ledger.LiquidationBonusBps),
		ReserveAsset:        cfg.Reserve.Asset,
	}, deps.Index, deps.Venues, deps.Reserve, sizer, deps.Metrics, logger)

	// --- Execution ---
	txBuilder := execution.NewTxBuilder(execution.BuilderConfig{
		Payer:               cfg.Ledger.Payer,
		Market:              cfg.Ledger.Market,
		ReserveAsset:        cfg.Reserve.Asset,
		MinProfit:           cfg.Detector.MinProfitTicks(),
		LiquidationBonusBps: int(cfg.Ledger.LiquidationBonusBps),
		TipShare:            cfg.Execution.TipShare,
		TipFloor:            int64(cfg.Execution.TipFloorUSD * domain.PriceScale),
		TipMaxShare:         cfg.Execution.TipMaxShare,
		TipAccount:          cfg.Execution.TipAccount,
	}, deps.Reserve, deps.Venues)
	executor := execution.NewExecutor(txBuilder, deps.Submitter, deps.Metrics, deps.Sink, logger)
	mutex := execution.NewTryMutex(cfg.Execution.Cooldown.Duration, deps.Metrics)
	enabled := cfg.Execution.Enabled && cfg.Mode == "run"
	deps.Worker = execution.NewWorker(deps.Detector.Opportunities(), mutex, executor, deps.Sink, enabled, logger)

	// --- Price feed ---
	// The move handler must not block the stream reader; detection runs on
	// its own goroutine per trigger.
	onMove := func(symbol string, prev, price int64) {
		go deps.Detector.OnPriceDrop(ctx, symbol, prev, price)
	}
	deps.Feed = feed.NewSubscriber(feed.SubscriberConfig{
		WSURL:         cfg.Oracle.WSEndpoint,
		Symbols:       cfg.Oracle.Symbols,
		MoveThreshold: cfg.Oracle.MoveThreshold,
		MaxReconnects: cfg.Oracle.MaxReconnects,
	}, feed.NewState(), onMove, deps.Metrics, logger)

	return deps, cleanup, nil
}
