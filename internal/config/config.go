// Package config defines the top-level configuration for the swap bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SWAPBOT_* environment variables.
type Config struct {
	Symbols  SymbolsConfig  `toml:"symbols"`
	Decision DecisionConfig `toml:"decision"`
	Executor ExecutorConfig `toml:"executor"`
	Breaker  BreakerConfig  `toml:"breaker"`
	MT5      MT5Config      `toml:"mt5"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Backtest BacktestConfig `toml:"backtest"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// SymbolsConfig names the ON/PN instrument pair being traded.
type SymbolsConfig struct {
	ON string `toml:"on"`
	PN string `toml:"pn"`
}

// DecisionConfig holds the decision engine thresholds. All premium and spread
// values are percentages (0.30 means 0.30%).
type DecisionConfig struct {
	MinPremiumThreshold float64  `toml:"min_premium_threshold"`
	SwapThreshold       float64  `toml:"swap_threshold"`
	TakeProfitThreshold float64  `toml:"take_profit_threshold"`
	StopLossThreshold   float64  `toml:"stop_loss_threshold"`
	MaxSpreadCost       float64  `toml:"max_spread_cost"`
	MinVolume           int64    `toml:"min_volume"`
	ConfidenceThreshold float64  `toml:"confidence_threshold"`
	CycleInterval       duration `toml:"cycle_interval"`
	PositionSize        int64    `toml:"position_size"`
	AutoExecute         bool     `toml:"auto_execute"`
}

// ExecutorConfig holds order execution parameters.
type ExecutorConfig struct {
	MaxAttempts           int      `toml:"max_attempts"`
	PartialFillAcceptance float64  `toml:"partial_fill_acceptance"`
	MaxRetryDelay         duration `toml:"max_retry_delay"`
	LegTimeout            duration `toml:"leg_timeout"`
	SafetyMargin          float64  `toml:"safety_margin"`
	MaxSlippage           float64  `toml:"max_slippage"`
}

// BreakerConfig holds circuit breaker parameters.
type BreakerConfig struct {
	FailureThreshold int      `toml:"failure_threshold"`
	RecoveryTimeout  duration `toml:"recovery_timeout"`
	HalfOpenMaxCalls int      `toml:"half_open_max_calls"`
}

// MT5Config holds MetaTrader 5 bridge connection parameters.
type MT5Config struct {
	BridgeURL      string   `toml:"bridge_url"`
	StreamURL      string   `toml:"stream_url"`
	RequestTimeout duration `toml:"request_timeout"`
	MagicNumber    int      `toml:"magic_number"`
	Deviation      int      `toml:"deviation"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
	Enabled      bool   `toml:"enabled"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	Enabled    bool     `toml:"enabled"`
	ResultTTL  duration `toml:"result_ttl"`
	LockTTL    duration `toml:"lock_ttl"`
}

// BacktestConfig holds backtest simulation parameters.
type BacktestConfig struct {
	Ticks          int     `toml:"ticks"`
	Seed           int64   `toml:"seed"`
	InitialCapital float64 `toml:"initial_capital"`
	CommissionPct  float64 `toml:"commission_pct"`
	BasePrice      float64 `toml:"base_price"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
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

// Defaults returns a Config populated with the production default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Symbols: SymbolsConfig{
			ON: "PETR3",
			PN: "PETR4",
		},
		Decision: DecisionConfig{
			MinPremiumThreshold: 0.30,
			SwapThreshold:       0.10,
			TakeProfitThreshold: 0.80,
			StopLossThreshold:   -2.0,
			MaxSpreadCost:       0.20,
			MinVolume:           10000,
			ConfidenceThreshold: 0.70,
			CycleInterval:       duration{30 * time.Second},
			PositionSize:        100,
			AutoExecute:         false,
		},
		Executor: ExecutorConfig{
			MaxAttempts:           3,
			PartialFillAcceptance: 0.80,
			MaxRetryDelay:         duration{60 * time.Second},
			LegTimeout:            duration{30 * time.Second},
			SafetyMargin:          0.99,
			MaxSlippage:           0.5,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  duration{5 * time.Minute},
			HalfOpenMaxCalls: 3,
		},
		MT5: MT5Config{
			BridgeURL:      "http://localhost:8765",
			StreamURL:      "ws://localhost:8765/stream",
			RequestTimeout: duration{10 * time.Second},
			MagicNumber:    20260101,
			Deviation:      10,
		},
		Postgres: PostgresConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "swapbot",
			User:         "postgres",
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
			Enabled:      false,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
			Enabled:    false,
			ResultTTL:  duration{24 * time.Hour},
			LockTTL:    duration{60 * time.Second},
		},
		Backtest: BacktestConfig{
			Ticks:          5000,
			Seed:           42,
			InitialCapital: 100_000,
			CommissionPct:  0.05,
			BasePrice:      35.0,
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":    true,
	"monitor":  true,
	"backtest": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, backtest)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Symbols
	if c.Symbols.ON == "" {
		errs = append(errs, "symbols: on must not be empty")
	}
	if c.Symbols.PN == "" {
		errs = append(errs, "symbols: pn must not be empty")
	}
	if c.Symbols.ON != "" && c.Symbols.ON == c.Symbols.PN {
		errs = append(errs, "symbols: on and pn must differ")
	}

	// Decision
	if c.Decision.MinPremiumThreshold <= 0 {
		errs = append(errs, "decision: min_premium_threshold must be > 0")
	}
	if c.Decision.SwapThreshold < 0 {
		errs = append(errs, "decision: swap_threshold must be >= 0")
	}
	if c.Decision.TakeProfitThreshold <= 0 {
		errs = append(errs, "decision: take_profit_threshold must be > 0")
	}
	if c.Decision.StopLossThreshold >= 0 {
		errs = append(errs, "decision: stop_loss_threshold must be negative")
	}
	if c.Decision.MaxSpreadCost <= 0 {
		errs = append(errs, "decision: max_spread_cost must be > 0")
	}
	if c.Decision.MinVolume <= 0 {
		errs = append(errs, "decision: min_volume must be > 0")
	}
	if c.Decision.ConfidenceThreshold < 0 || c.Decision.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Sprintf("decision: confidence_threshold must be in [0, 1], got %.2f", c.Decision.ConfidenceThreshold))
	}
	if c.Decision.CycleInterval.Duration <= 0 {
		errs = append(errs, "decision: cycle_interval must be > 0")
	}
	if c.Decision.PositionSize <= 0 {
		errs = append(errs, "decision: position_size must be > 0")
	}

	// Executor
	if c.Executor.MaxAttempts < 0 {
		errs = append(errs, "executor: max_attempts must be >= 0")
	}
	if c.Executor.PartialFillAcceptance <= 0 || c.Executor.PartialFillAcceptance > 1 {
		errs = append(errs, fmt.Sprintf("executor: partial_fill_acceptance must be in (0, 1], got %.2f", c.Executor.PartialFillAcceptance))
	}
	if c.Executor.SafetyMargin <= 0 || c.Executor.SafetyMargin > 1 {
		errs = append(errs, fmt.Sprintf("executor: safety_margin must be in (0, 1], got %.2f", c.Executor.SafetyMargin))
	}
	if c.Executor.LegTimeout.Duration <= 0 {
		errs = append(errs, "executor: leg_timeout must be > 0")
	}

	// Breaker
	if c.Breaker.FailureThreshold < 1 {
		errs = append(errs, "breaker: failure_threshold must be >= 1")
	}
	if c.Breaker.RecoveryTimeout.Duration <= 0 {
		errs = append(errs, "breaker: recovery_timeout must be > 0")
	}
	if c.Breaker.HalfOpenMaxCalls < 1 {
		errs = append(errs, "breaker: half_open_max_calls must be >= 1")
	}

	// MT5 — required for live modes, not for backtest.
	if c.Mode == "trade" || c.Mode == "monitor" {
		if c.MT5.BridgeURL == "" {
			errs = append(errs, "mt5: bridge_url must not be empty for mode "+c.Mode)
		}
		if c.MT5.RequestTimeout.Duration <= 0 {
			errs = append(errs, "mt5: request_timeout must be > 0")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.ResultTTL.Duration <= 0 {
			errs = append(errs, "redis: result_ttl must be > 0")
		}
	}

	// Backtest
	if c.Mode == "backtest" {
		if c.Backtest.Ticks < 1 {
			errs = append(errs, "backtest: ticks must be >= 1")
		}
		if c.Backtest.InitialCapital <= 0 {
			errs = append(errs, "backtest: initial_capital must be > 0")
		}
		if c.Backtest.BasePrice <= 0 {
			errs = append(errs, "backtest: base_price must be > 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
