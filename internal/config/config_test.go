package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "PETR3", cfg.Symbols.ON)
	assert.Equal(t, "PETR4", cfg.Symbols.PN)
	assert.InDelta(t, 0.30, cfg.Decision.MinPremiumThreshold, 1e-9)
	assert.InDelta(t, -2.0, cfg.Decision.StopLossThreshold, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.Decision.CycleInterval.Duration)
	assert.False(t, cfg.Decision.AutoExecute)
	assert.Equal(t, 3, cfg.Executor.MaxAttempts)
	assert.InDelta(t, 0.80, cfg.Executor.PartialFillAcceptance, 1e-9)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Breaker.RecoveryTimeout.Duration)
	assert.Equal(t, "monitor", cfg.Mode)
}

func TestLoad_TOMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "backtest"
log_level = "debug"

[symbols]
on = "VALE3"
pn = "VALE4"

[decision]
min_premium_threshold = 0.45
cycle_interval = "10s"

[executor]
max_attempts = 5
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "backtest", cfg.Mode)
	assert.Equal(t, "VALE3", cfg.Symbols.ON)
	assert.InDelta(t, 0.45, cfg.Decision.MinPremiumThreshold, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.Decision.CycleInterval.Duration)
	assert.Equal(t, 5, cfg.Executor.MaxAttempts)

	// Untouched sections keep their defaults.
	assert.InDelta(t, 0.10, cfg.Decision.SwapThreshold, 1e-9)
	assert.Equal(t, "http://localhost:8765", cfg.MT5.BridgeURL)
}

func TestLoad_EnvOverridesWinOverTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = \"monitor\"\n"), 0o644))

	t.Setenv("SWAPBOT_MODE", "trade")
	t.Setenv("SWAPBOT_DECISION_AUTO_EXECUTE", "true")
	t.Setenv("SWAPBOT_DECISION_CYCLE_INTERVAL", "5s")
	t.Setenv("SWAPBOT_POSTGRES_PASSWORD", "hunter2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "trade", cfg.Mode)
	assert.True(t, cfg.Decision.AutoExecute)
	assert.Equal(t, 5*time.Second, cfg.Decision.CycleInterval.Duration)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	assert.Error(t, err)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	cfg.Symbols.PN = "PETR3" // same as ON
	cfg.Decision.StopLossThreshold = 1.0
	cfg.Executor.PartialFillAcceptance = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "on and pn must differ")
	assert.Contains(t, err.Error(), "stop_loss_threshold must be negative")
	assert.Contains(t, err.Error(), "partial_fill_acceptance")
}

func TestValidate_PostgresOnlyWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Host = ""
	require.NoError(t, cfg.Validate(), "disabled postgres is not validated")

	cfg.Postgres.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: host")

	// A DSN substitutes for the discrete fields.
	cfg.Postgres.DSN = "postgres://bot:pw@db:5432/swapbot"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_BacktestSection(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "backtest"
	cfg.Backtest.InitialCapital = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial_capital")
}
