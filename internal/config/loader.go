package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SWAPBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SWAPBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Symbols ──
	setStr(&cfg.Symbols.ON, "SWAPBOT_SYMBOL_ON")
	setStr(&cfg.Symbols.PN, "SWAPBOT_SYMBOL_PN")

	// ── Decision ──
	setFloat64(&cfg.Decision.MinPremiumThreshold, "SWAPBOT_DECISION_MIN_PREMIUM_THRESHOLD")
	setFloat64(&cfg.Decision.SwapThreshold, "SWAPBOT_DECISION_SWAP_THRESHOLD")
	setFloat64(&cfg.Decision.TakeProfitThreshold, "SWAPBOT_DECISION_TAKE_PROFIT_THRESHOLD")
	setFloat64(&cfg.Decision.StopLossThreshold, "SWAPBOT_DECISION_STOP_LOSS_THRESHOLD")
	setFloat64(&cfg.Decision.MaxSpreadCost, "SWAPBOT_DECISION_MAX_SPREAD_COST")
	setInt64(&cfg.Decision.MinVolume, "SWAPBOT_DECISION_MIN_VOLUME")
	setFloat64(&cfg.Decision.ConfidenceThreshold, "SWAPBOT_DECISION_CONFIDENCE_THRESHOLD")
	setDuration(&cfg.Decision.CycleInterval, "SWAPBOT_DECISION_CYCLE_INTERVAL")
	setInt64(&cfg.Decision.PositionSize, "SWAPBOT_DECISION_POSITION_SIZE")
	setBool(&cfg.Decision.AutoExecute, "SWAPBOT_DECISION_AUTO_EXECUTE")

	// ── Executor ──
	setInt(&cfg.Executor.MaxAttempts, "SWAPBOT_EXECUTOR_MAX_ATTEMPTS")
	setFloat64(&cfg.Executor.PartialFillAcceptance, "SWAPBOT_EXECUTOR_PARTIAL_FILL_ACCEPTANCE")
	setDuration(&cfg.Executor.MaxRetryDelay, "SWAPBOT_EXECUTOR_MAX_RETRY_DELAY")
	setDuration(&cfg.Executor.LegTimeout, "SWAPBOT_EXECUTOR_LEG_TIMEOUT")
	setFloat64(&cfg.Executor.SafetyMargin, "SWAPBOT_EXECUTOR_SAFETY_MARGIN")
	setFloat64(&cfg.Executor.MaxSlippage, "SWAPBOT_EXECUTOR_MAX_SLIPPAGE")

	// ── Breaker ──
	setInt(&cfg.Breaker.FailureThreshold, "SWAPBOT_BREAKER_FAILURE_THRESHOLD")
	setDuration(&cfg.Breaker.RecoveryTimeout, "SWAPBOT_BREAKER_RECOVERY_TIMEOUT")
	setInt(&cfg.Breaker.HalfOpenMaxCalls, "SWAPBOT_BREAKER_HALF_OPEN_MAX_CALLS")

	// ── MT5 ──
	setStr(&cfg.MT5.BridgeURL, "SWAPBOT_MT5_BRIDGE_URL")
	setStr(&cfg.MT5.StreamURL, "SWAPBOT_MT5_STREAM_URL")
	setDuration(&cfg.MT5.RequestTimeout, "SWAPBOT_MT5_REQUEST_TIMEOUT")
	setInt(&cfg.MT5.MagicNumber, "SWAPBOT_MT5_MAGIC_NUMBER")
	setInt(&cfg.MT5.Deviation, "SWAPBOT_MT5_DEVIATION")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SWAPBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SWAPBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SWAPBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SWAPBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SWAPBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SWAPBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SWAPBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SWAPBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SWAPBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.Enabled, "SWAPBOT_POSTGRES_ENABLED")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SWAPBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SWAPBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SWAPBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SWAPBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SWAPBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SWAPBOT_REDIS_TLS_ENABLED")
	setBool(&cfg.Redis.Enabled, "SWAPBOT_REDIS_ENABLED")
	setDuration(&cfg.Redis.ResultTTL, "SWAPBOT_REDIS_RESULT_TTL")
	setDuration(&cfg.Redis.LockTTL, "SWAPBOT_REDIS_LOCK_TTL")

	// ── Backtest ──
	setInt(&cfg.Backtest.Ticks, "SWAPBOT_BACKTEST_TICKS")
	setInt64(&cfg.Backtest.Seed, "SWAPBOT_BACKTEST_SEED")
	setFloat64(&cfg.Backtest.InitialCapital, "SWAPBOT_BACKTEST_INITIAL_CAPITAL")
	setFloat64(&cfg.Backtest.CommissionPct, "SWAPBOT_BACKTEST_COMMISSION_PCT")
	setFloat64(&cfg.Backtest.BasePrice, "SWAPBOT_BACKTEST_BASE_PRICE")

	// ── Top-level ──
	setStr(&cfg.Mode, "SWAPBOT_MODE")
	setStr(&cfg.LogLevel, "SWAPBOT_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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
		if b, err := strconv.ParseBool(v); err == nil {
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
