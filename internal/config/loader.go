package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FLAREX_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FLAREX_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject endpoints and thresholds at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Ledger ──
	setStr(&cfg.Ledger.RPCEndpoint, "FLAREX_LEDGER_RPC_ENDPOINT")
	setStr(&cfg.Ledger.WSEndpoint, "FLAREX_LEDGER_WS_ENDPOINT")
	setStr(&cfg.Ledger.Market, "FLAREX_LEDGER_MARKET")
	setStr(&cfg.Ledger.Payer, "FLAREX_LEDGER_PAYER")
	setFloat64(&cfg.Ledger.MaxReadsPerSec, "FLAREX_LEDGER_MAX_READS_PER_SEC")
	setFloat64(&cfg.Ledger.LiquidationThreshold, "FLAREX_LEDGER_LIQUIDATION_THRESHOLD")
	setFloat64(&cfg.Ledger.CloseFactor, "FLAREX_LEDGER_CLOSE_FACTOR")
	setFloat64(&cfg.Ledger.LiquidationBonusBps, "FLAREX_LEDGER_LIQUIDATION_BONUS_BPS")

	// ── Oracle ──
	setStr(&cfg.Oracle.WSEndpoint, "FLAREX_ORACLE_WS_ENDPOINT")
	setFloat64(&cfg.Oracle.MoveThreshold, "FLAREX_ORACLE_MOVE_THRESHOLD")
	setInt(&cfg.Oracle.MaxReconnects, "FLAREX_ORACLE_MAX_RECONNECTS")

	// ── Index ──
	setDuration(&cfg.Index.RebuildInterval, "FLAREX_INDEX_REBUILD_INTERVAL")
	setInt(&cfg.Index.Workers, "FLAREX_INDEX_WORKERS")
	setInt(&cfg.Index.BatchSize, "FLAREX_INDEX_BATCH_SIZE")

	// ── Detector ──
	setFloat64(&cfg.Detector.MinProfitUSD, "FLAREX_DETECTOR_MIN_PROFIT_USD")
	setFloat64(&cfg.Detector.TradeNotionalUSD, "FLAREX_DETECTOR_TRADE_NOTIONAL_USD")
	setFloat64(&cfg.Detector.SpreadThreshold, "FLAREX_DETECTOR_SPREAD_THRESHOLD")
	setDuration(&cfg.Detector.QuoteTTL, "FLAREX_DETECTOR_QUOTE_TTL")
	setDuration(&cfg.Detector.QuoteMinInterval, "FLAREX_DETECTOR_QUOTE_MIN_INTERVAL")
	setDuration(&cfg.Detector.OpportunityTTL, "FLAREX_DETECTOR_OPPORTUNITY_TTL")
	setInt(&cfg.Detector.BufferSize, "FLAREX_DETECTOR_BUFFER_SIZE")

	// ── Sizing ──
	setFloat64(&cfg.Sizing.MaxLiquidityRatio, "FLAREX_SIZING_MAX_LIQUIDITY_RATIO")
	setFloat64(&cfg.Sizing.MaxSlippagePct, "FLAREX_SIZING_MAX_SLIPPAGE_PCT")
	setFloat64(&cfg.Sizing.LadderBaseUSD, "FLAREX_SIZING_LADDER_BASE_USD")
	setInt(&cfg.Sizing.LadderSteps, "FLAREX_SIZING_LADDER_STEPS")

	// ── Execution ──
	setBool(&cfg.Execution.Enabled, "FLAREX_EXECUTION_ENABLED")
	setDuration(&cfg.Execution.Cooldown, "FLAREX_EXECUTION_COOLDOWN")
	setFloat64(&cfg.Execution.TipShare, "FLAREX_EXECUTION_TIP_SHARE")
	setFloat64(&cfg.Execution.TipFloorUSD, "FLAREX_EXECUTION_TIP_FLOOR_USD")
	setFloat64(&cfg.Execution.TipMaxShare, "FLAREX_EXECUTION_TIP_MAX_SHARE")
	setStr(&cfg.Execution.TipAccount, "FLAREX_EXECUTION_TIP_ACCOUNT")

	// ── Reserve ──
	setStr(&cfg.Reserve.Program, "FLAREX_RESERVE_PROGRAM")
	setStr(&cfg.Reserve.Asset, "FLAREX_RESERVE_ASSET")
	setStr(&cfg.Reserve.LiquidityAccount, "FLAREX_RESERVE_LIQUIDITY_ACCOUNT")
	setFloat64(&cfg.Reserve.FeeBps, "FLAREX_RESERVE_FEE_BPS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "FLAREX_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "FLAREX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FLAREX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FLAREX_REDIS_DB")
	setStr(&cfg.Redis.EventChannel, "FLAREX_REDIS_EVENT_CHANNEL")
	setStr(&cfg.Redis.EventStream, "FLAREX_REDIS_EVENT_STREAM")

	// ── Top-level ──
	setStr(&cfg.Mode, "FLAREX_MODE")
	setStr(&cfg.LogLevel, "FLAREX_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
