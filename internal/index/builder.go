// Package index builds the price-bucketed obligation snapshot that gives the
// liquidation strategy its O(matches) lookup.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voznyak/flarex/internal/domain"
	"github.com/voznyak/flarex/internal/telemetry"
)

// Builder produces complete immutable index snapshots. Each Rebuild
// enumerates the market's position accounts, fetches payloads in
// bounded-parallel batches through the throttled reader, decodes them, and
// buckets every collateral position by its approximate liquidation price.
type Builder struct {
	reader  domain.LedgerReader
	metrics *telemetry.Metrics
	logger  *slog.Logger

	market       string
	workers      int
	batchSize    int
	liqThreshold float64
	bucketSizes  map[string]int64 // config overrides, per symbol
}

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	Market               string
	Workers              int
	BatchSize            int
	LiquidationThreshold float64
	BucketSizes          map[string]int64
}

// NewBuilder creates a Builder over the given (throttled) reader.
func NewBuilder(reader domain.LedgerReader, cfg BuilderConfig, metrics *telemetry.Metrics, logger *slog.Logger) *Builder {
	sizes := make(map[string]int64, len(cfg.BucketSizes))
	for k, v := range cfg.BucketSizes {
		sizes[k] = v
	}
	return &Builder{
		reader:       reader,
		metrics:      metrics,
		logger:       logger.With(slog.String("component", "index_builder")),
		market:       cfg.Market,
		workers:      cfg.Workers,
		batchSize:    cfg.BatchSize,
		liqThreshold: cfg.LiquidationThreshold,
		bucketSizes:  sizes,
	}
}

// Rebuild produces a new complete snapshot. It returns an error only when
// enumeration fails; batch fetch failures are retried once, then dropped and
// counted (the next rebuild corrects them), and payload parse failures are
// counted, never fatal.
func (b *Builder) Rebuild(ctx context.Context) (*domain.Snapshot, error) {
	start := time.Now()

	ids, err := b.reader.Enumerate(ctx, domain.Filter{Market: b.market})
	if err != nil {
		return nil, fmt.Errorf("index: enumerate market %s: %w", b.market, err)
	}

	batches := splitBatches(ids, b.batchSize)

	// Each batch writes only into its own slot; no shared state between
	// workers beyond the atomic counters.
	slots := make([][]*domain.Obligation, len(batches))
	var fetched, parseErrors, zeroDebt, dropped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			payloads, err := b.fetchBatch(gctx, batch)
			if err != nil {
				dropped.Add(1)
				b.logger.Warn("batch dropped after retry",
					slog.Int("batch", i),
					slog.Int("size", len(batch)),
					slog.String("error", err.Error()),
				)
				return nil
			}
			obs := make([]*domain.Obligation, 0, len(batch))
			for j, raw := range payloads {
				if raw == nil {
					continue
				}
				fetched.Add(1)
				ob, err := decodeObligation(batch[j], raw, b.liqThreshold)
				if err != nil {
					parseErrors.Add(1)
					continue
				}
				if ob == nil {
					zeroDebt.Add(1)
					continue
				}
				obs = append(obs, ob)
			}
			slots[i] = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("index: fetch obligations: %w", err)
	}

	var all []*domain.Obligation
	for _, slot := range slots {
		all = append(all, slot...)
	}

	snap := b.bucketize(all)
	snap.BuiltAt = time.Now().UTC()
	snap.Stats = domain.BuildStats{
		Enumerated:      len(ids),
		Fetched:         int(fetched.Load()),
		Decoded:         len(all),
		Indexed:         len(all),
		SkippedZeroDebt: int(zeroDebt.Load()),
		ParseErrors:     int(parseErrors.Load()),
		DroppedBatches:  int(dropped.Load()),
		Elapsed:         time.Since(start),
	}

	b.metrics.IndexRebuilds.Add(1)
	b.metrics.IndexParseErrors.Add(parseErrors.Load())
	b.logger.Info("index rebuilt",
		slog.Int("enumerated", snap.Stats.Enumerated),
		slog.Int("indexed", snap.Stats.Indexed),
		slog.Int("zero_debt", snap.Stats.SkippedZeroDebt),
		slog.Int("parse_errors", snap.Stats.ParseErrors),
		slog.Int("dropped_batches", snap.Stats.DroppedBatches),
		slog.Duration("elapsed", snap.Stats.Elapsed),
	)
	return snap, nil
}

// fetchBatch fetches one batch with a single retry.
func (b *Builder) fetchBatch(ctx context.Context, ids []string) ([][]byte, error) {
	payloads, err := b.reader.FetchMany(ctx, ids)
	if err == nil {
		return payloads, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	return b.reader.FetchMany(ctx, ids)
}

// bucketize builds the per-symbol price buckets for a decoded obligation set.
// Bucket widths come from config when present; otherwise the width is derived
// deterministically from the largest liquidation price seen for the symbol,
// so identical inputs always produce identical bucket membership.
func (b *Builder) bucketize(all []*domain.Obligation) *domain.Snapshot {
	snap := &domain.Snapshot{
		Obligations: all,
		Buckets:     make(map[string]map[int64][]*domain.Obligation),
		BucketSizes: make(map[string]int64),
	}

	maxPrice := make(map[string]int64)
	for _, ob := range all {
		for _, c := range ob.Collateral {
			if c.LiquidationPrice > maxPrice[c.Symbol] {
				maxPrice[c.Symbol] = c.LiquidationPrice
			}
		}
	}
	for sym, max := range maxPrice {
		if override, ok := b.bucketSizes[sym]; ok && override > 0 {
			snap.BucketSizes[sym] = override
			continue
		}
		snap.BucketSizes[sym] = deriveBucketSize(max)
	}

	for _, ob := range all {
		for _, c := range ob.Collateral {
			if c.LiquidationPrice <= 0 {
				continue
			}
			size := snap.BucketSizes[c.Symbol]
			bucket := domain.BucketFor(c.LiquidationPrice, size)
			if snap.Buckets[c.Symbol] == nil {
				snap.Buckets[c.Symbol] = make(map[int64][]*domain.Obligation)
			}
			snap.Buckets[c.Symbol][bucket] = append(snap.Buckets[c.Symbol][bucket], ob)
		}
	}
	return snap
}

// deriveBucketSize picks a power-of-ten bucket width that keeps the bucket
// count for the symbol near one thousand, bounding both bucket count and
// per-bucket fan-out.
func deriveBucketSize(maxPrice int64) int64 {
	if maxPrice <= 0 {
		return 1
	}
	target := maxPrice / 1000
	size := int64(1)
	for size*10 <= target {
		size *= 10
	}
	return size
}

// splitBatches partitions ids into slices of at most batchSize.
func splitBatches(ids []string, batchSize int) [][]string {
	if batchSize <= 0 {
		batchSize = len(ids)
	}
	var out [][]string
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
