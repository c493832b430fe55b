package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalValid fills in the fields Defaults leaves for the operator.
func minimalValid() Config {
	cfg := Defaults()
	cfg.Ledger.Market = "market-program"
	cfg.Ledger.Payer = "payer"
	cfg.Oracle.Symbols = map[string]string{"feed-1": "SOL"}
	cfg.Venues = []VenueConfig{{
		Name:     "alpha",
		Kind:     "constant_product",
		QuoteURL: "https://quote.example",
	}}
	return cfg
}

func TestValidateAcceptsMinimalConfig(t *testing.T) {
	cfg := minimalValid()
	assert.NoError(t, cfg.Validate())
}

func TestValidateReportsAllProblemsAtOnce(t *testing.T) {
	cfg := minimalValid()
	cfg.Mode = "bogus"
	cfg.Ledger.Market = ""
	cfg.Oracle.MoveThreshold = 0
	cfg.Sizing.MaxLiquidityRatio = 2.0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "unknown mode")
	assert.Contains(t, msg, "market must not be empty")
	assert.Contains(t, msg, "move_threshold")
	assert.Contains(t, msg, "max_liquidity_ratio")
}

func TestValidateRejectsDuplicateVenues(t *testing.T) {
	cfg := minimalValid()
	cfg.Venues = append(cfg.Venues, cfg.Venues[0])
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate name")
}

func TestValidateTipShareBounds(t *testing.T) {
	cfg := minimalValid()
	cfg.Execution.TipShare = 0.5
	cfg.Execution.TipMaxShare = 0.3
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tip_share")
}

func TestValidateIndexModeNeedsNoSymbols(t *testing.T) {
	cfg := minimalValid()
	cfg.Mode = "index"
	cfg.Oracle.Symbols = nil
	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "detect"

[ledger]
market = "market-program"
payer = "payer"

[oracle.symbols]
"feed-1" = "SOL"

[detector]
min_profit_usd = 2.5
quote_ttl = "30s"

[[venues]]
name = "alpha"
kind = "orderbook"
quote_url = "https://quote.example"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "detect", cfg.Mode)
	assert.Equal(t, 2.5, cfg.Detector.MinProfitUSD)
	assert.Equal(t, 30*time.Second, cfg.Detector.QuoteTTL.Duration)
	// Untouched sections keep their defaults.
	assert.Equal(t, 8, cfg.Index.Workers)
	assert.Equal(t, 0.006, cfg.Detector.SpreadThreshold)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "run"`), 0o600))

	t.Setenv("FLAREX_MODE", "index")
	t.Setenv("FLAREX_DETECTOR_MIN_PROFIT_USD", "7.5")
	t.Setenv("FLAREX_EXECUTION_ENABLED", "false")
	t.Setenv("FLAREX_INDEX_REBUILD_INTERVAL", "15m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "index", cfg.Mode)
	assert.Equal(t, 7.5, cfg.Detector.MinProfitUSD)
	assert.False(t, cfg.Execution.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Index.RebuildInterval.Duration)
}

func TestTickConversions(t *testing.T) {
	d := DetectorConfig{MinProfitUSD: 1.5, TradeNotionalUSD: 10_000}
	assert.Equal(t, int64(1_500_000), d.MinProfitTicks())
	assert.Equal(t, int64(10_000_000_000), d.TradeNotionalTicks())
}
