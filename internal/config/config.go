// Package config defines the top-level configuration for the flarex engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/voznyak/flarex/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by FLAREX_* environment variables.
type Config struct {
	Ledger    LedgerConfig    `toml:"ledger"`
	Oracle    OracleConfig    `toml:"oracle"`
	Index     IndexConfig     `toml:"index"`
	Detector  DetectorConfig  `toml:"detector"`
	Sizing    SizingConfig    `toml:"sizing"`
	Execution ExecutionConfig `toml:"execution"`
	Reserve   ReserveConfig   `toml:"reserve"`
	Venues    []VenueConfig   `toml:"venues"`
	Redis     RedisConfig     `toml:"redis"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// LedgerConfig holds RPC endpoints, the target lending market, and the
// protocol parameters that govern liquidation economics.
type LedgerConfig struct {
	RPCEndpoint string `toml:"rpc_endpoint"`
	WSEndpoint  string `toml:"ws_endpoint"`
	Market      string `toml:"market"`
	Payer       string `toml:"payer"`
	// MaxReadsPerSec budgets all external read calls (FIFO).
	MaxReadsPerSec float64 `toml:"max_reads_per_sec"`
	// LiquidationThreshold is the protocol's unhealthy-debt ratio (e.g. 0.85).
	LiquidationThreshold float64 `toml:"liquidation_threshold"`
	// CloseFactor is the max fraction of debt repayable per liquidation.
	CloseFactor float64 `toml:"close_factor"`
	// LiquidationBonusBps is the collateral bonus granted to the liquidator.
	LiquidationBonusBps float64 `toml:"liquidation_bonus_bps"`
}

// OracleConfig holds the streaming price feed parameters.
type OracleConfig struct {
	WSEndpoint string `toml:"ws_endpoint"`
	// Symbols maps oracle feed IDs to asset symbols.
	Symbols map[string]string `toml:"symbols"`
	// MoveThreshold is the relative price change that triggers detection.
	MoveThreshold float64 `toml:"move_threshold"`
	MaxReconnects int     `toml:"max_reconnects"`
}

// IndexConfig holds obligation index rebuild parameters.
type IndexConfig struct {
	RebuildInterval duration `toml:"rebuild_interval"`
	Workers         int      `toml:"workers"`
	BatchSize       int      `toml:"batch_size"`
	// BucketSizes overrides the per-symbol bucket width in price ticks.
	// Symbols without an entry get a width derived from the first observed
	// price at rebuild time.
	BucketSizes map[string]int64 `toml:"bucket_sizes"`
}

// DetectorConfig holds the thresholds shared by both detection strategies.
type DetectorConfig struct {
	MinProfitUSD float64 `toml:"min_profit_usd"`
	// TradeNotionalUSD is the large-trade trigger threshold for the
	// cross-venue strategy.
	TradeNotionalUSD float64  `toml:"trade_notional_usd"`
	SpreadThreshold  float64  `toml:"spread_threshold"`
	QuoteTTL         duration `toml:"quote_ttl"`
	QuoteMinInterval duration `toml:"quote_min_interval"`
	OpportunityTTL   duration `toml:"opportunity_ttl"`
	BufferSize       int      `toml:"buffer_size"`
}

// SizingConfig holds the dynamic sizer parameters.
type SizingConfig struct {
	// MaxLiquidityRatio caps any candidate at this fraction of the
	// shallower venue's liquidity.
	MaxLiquidityRatio float64 `toml:"max_liquidity_ratio"`
	MaxSlippagePct    float64 `toml:"max_slippage_pct"`
	LadderBaseUSD     float64 `toml:"ladder_base_usd"`
	LadderSteps       int     `toml:"ladder_steps"`
}

// ExecutionConfig holds the execution gate and incentive parameters.
type ExecutionConfig struct {
	// Enabled gates actual submission; when false the worker logs and
	// records what it would have executed (detect mode forces false).
	Enabled  bool     `toml:"enabled"`
	Cooldown duration `toml:"cooldown"`
	// TipShare of expected profit goes to the inclusion incentive,
	// clamped to [TipFloorUSD, profit*TipMaxShare].
	TipShare    float64 `toml:"tip_share"`
	TipFloorUSD float64 `toml:"tip_floor_usd"`
	TipMaxShare float64 `toml:"tip_max_share"`
	TipAccount  string  `toml:"tip_account"`
}

// ReserveConfig holds the flash financing reserve parameters.
type ReserveConfig struct {
	Program string `toml:"program"`
	Asset   string `toml:"asset"`
	// LiquidityAccount is the reserve's pool account; its balance bounds the
	// borrowable amount.
	LiquidityAccount string  `toml:"liquidity_account"`
	FeeBps           float64 `toml:"fee_bps"`
}

// VenueConfig describes one tracked trading venue.
type VenueConfig struct {
	Name     string  `toml:"name"`
	Kind     string  `toml:"kind"` // constant_product, concentrated, orderbook
	QuoteURL string  `toml:"quote_url"`
	Program  string  `toml:"program"`
	FeeBps   float64 `toml:"fee_bps"`
}

// RedisConfig holds the telemetry event bus connection parameters.
type RedisConfig struct {
	Enabled      bool   `toml:"enabled"`
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	EventChannel string `toml:"event_channel"`
	EventStream  string `toml:"event_stream"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// MinProfitTicks returns the detector profit floor in fixed-point ticks.
func (d DetectorConfig) MinProfitTicks() int64 {
	return int64(d.MinProfitUSD * domain.PriceScale)
}

// TradeNotionalTicks returns the large-trade trigger threshold in ticks.
func (d DetectorConfig) TradeNotionalTicks() int64 {
	return int64(d.TradeNotionalUSD * domain.PriceScale)
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Ledger: LedgerConfig{
			RPCEndpoint:          "https://api.mainnet-beta.solana.com",
			WSEndpoint:           "wss://api.mainnet-beta.solana.com",
			MaxReadsPerSec:       40,
			LiquidationThreshold: 0.85,
			CloseFactor:          0.5,
			LiquidationBonusBps:  500,
		},
		Oracle: OracleConfig{
			WSEndpoint:    "wss://hermes.pyth.network/ws",
			Symbols:       map[string]string{},
			MoveThreshold: 0.001,
			MaxReconnects: 10,
		},
		Index: IndexConfig{
			RebuildInterval: duration{time.Hour},
			Workers:         8,
			BatchSize:       100,
			BucketSizes:     map[string]int64{},
		},
		Detector: DetectorConfig{
			MinProfitUSD:     1.0,
			TradeNotionalUSD: 10_000,
			SpreadThreshold:  0.006,
			QuoteTTL:         duration{10 * time.Second},
			QuoteMinInterval: duration{8 * time.Second},
			OpportunityTTL:   duration{15 * time.Second},
			BufferSize:       16,
		},
		Sizing: SizingConfig{
			MaxLiquidityRatio: 0.10,
			MaxSlippagePct:    0.02,
			LadderBaseUSD:     100,
			LadderSteps:       8,
		},
		Execution: ExecutionConfig{
			Enabled:     true,
			Cooldown:    duration{2 * time.Second},
			TipShare:    0.10,
			TipFloorUSD: 0.01,
			TipMaxShare: 0.30,
		},
		Reserve: ReserveConfig{
			Asset:  "USDC",
			FeeBps: 9,
		},
		Redis: RedisConfig{
			Enabled:      false,
			Addr:         "localhost:6379",
			EventChannel: "flarex:events",
			EventStream:  "flarex:events:stream",
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"run":    true,
	"detect": true,
	"index":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validVenueKinds enumerates the closed set of venue action kinds.
var validVenueKinds = map[string]bool{
	"constant_product": true,
	"concentrated":     true,
	"orderbook":        true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, detect, index)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Ledger.RPCEndpoint == "" {
		errs = append(errs, "ledger: rpc_endpoint must not be empty")
	}
	if c.Ledger.Market == "" {
		errs = append(errs, "ledger: market must not be empty")
	}
	if c.Ledger.MaxReadsPerSec <= 0 {
		errs = append(errs, "ledger: max_reads_per_sec must be > 0")
	}
	if c.Ledger.LiquidationThreshold <= 0 || c.Ledger.LiquidationThreshold > 1 {
		errs = append(errs, fmt.Sprintf("ledger: liquidation_threshold must be in (0, 1], got %v", c.Ledger.LiquidationThreshold))
	}
	if c.Ledger.CloseFactor <= 0 || c.Ledger.CloseFactor > 1 {
		errs = append(errs, fmt.Sprintf("ledger: close_factor must be in (0, 1], got %v", c.Ledger.CloseFactor))
	}

	if c.Oracle.WSEndpoint == "" {
		errs = append(errs, "oracle: ws_endpoint must not be empty")
	}
	if c.Mode != "index" && len(c.Oracle.Symbols) == 0 {
		errs = append(errs, "oracle: at least one symbol mapping is required")
	}
	if c.Oracle.MoveThreshold <= 0 {
		errs = append(errs, "oracle: move_threshold must be > 0")
	}
	if c.Oracle.MaxReconnects < 1 {
		errs = append(errs, "oracle: max_reconnects must be >= 1")
	}

	if c.Index.Workers < 1 {
		errs = append(errs, "index: workers must be >= 1")
	}
	if c.Index.BatchSize < 1 {
		errs = append(errs, "index: batch_size must be >= 1")
	}
	if c.Index.RebuildInterval.Duration <= 0 {
		errs = append(errs, "index: rebuild_interval must be positive")
	}

	if c.Detector.MinProfitUSD <= 0 {
		errs = append(errs, "detector: min_profit_usd must be > 0")
	}
	if c.Detector.SpreadThreshold <= 0 {
		errs = append(errs, "detector: spread_threshold must be > 0")
	}
	if c.Detector.BufferSize < 1 {
		errs = append(errs, "detector: buffer_size must be >= 1")
	}
	if c.Detector.QuoteMinInterval.Duration > c.Detector.QuoteTTL.Duration {
		errs = append(errs, "detector: quote_min_interval must not exceed quote_ttl")
	}

	if c.Sizing.MaxLiquidityRatio <= 0 || c.Sizing.MaxLiquidityRatio > 1 {
		errs = append(errs, "sizing: max_liquidity_ratio must be in (0, 1]")
	}
	if c.Sizing.LadderSteps < 1 {
		errs = append(errs, "sizing: ladder_steps must be >= 1")
	}

	if c.Execution.Cooldown.Duration < 0 {
		errs = append(errs, "execution: cooldown must not be negative")
	}
	if c.Execution.TipMaxShare <= 0 || c.Execution.TipMaxShare > 1 {
		errs = append(errs, "execution: tip_max_share must be in (0, 1]")
	}
	if c.Execution.TipShare < 0 || c.Execution.TipShare > c.Execution.TipMaxShare {
		errs = append(errs, "execution: tip_share must be in [0, tip_max_share]")
	}

	if c.Reserve.Asset == "" {
		errs = append(errs, "reserve: asset must not be empty")
	}
	if c.Reserve.FeeBps < 0 {
		errs = append(errs, "reserve: fee_bps must not be negative")
	}

	seen := map[string]bool{}
	for i, v := range c.Venues {
		if v.Name == "" {
			errs = append(errs, fmt.Sprintf("venues[%d]: name must not be empty", i))
		}
		if seen[v.Name] {
			errs = append(errs, fmt.Sprintf("venues[%d]: duplicate name %q", i, v.Name))
		}
		seen[v.Name] = true
		if !validVenueKinds[v.Kind] {
			errs = append(errs, fmt.Sprintf("venues[%d]: unknown kind %q (valid: constant_product, concentrated, orderbook)", i, v.Kind))
		}
		if v.QuoteURL == "" {
			errs = append(errs, fmt.Sprintf("venues[%d]: quote_url must not be empty", i))
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
