package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brazilquant/swapbot/internal/cache/redis"
	"github.com/brazilquant/swapbot/internal/config"
	"github.com/brazilquant/swapbot/internal/domain"
	"github.com/brazilquant/swapbot/internal/platform/mt5"
	"github.com/brazilquant/swapbot/internal/service"
	"github.com/brazilquant/swapbot/internal/store/postgres"
)

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Bridge client, serving both quotes and orders for live modes.
	Bridge *mt5.Client
	Stream *mt5.StreamClient

	// Persistence, nil when postgres is disabled.
	Sink domain.PersistenceSink

	// Cross-process idempotency layer, nil when redis is disabled.
	ExecutionCache domain.ExecutionCache
	LockManager    domain.LockManager
	QuoteCache     *redis.QuoteCache
}

// needsBridge returns true for modes that talk to a live terminal.
func needsBridge(mode string) bool {
	switch mode {
	case "trade", "monitor":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	mode := strings.ToLower(cfg.Mode)

	// --- MT5 bridge (live modes only) ---
	if needsBridge(mode) {
		deps.Bridge = mt5.NewClient(
			cfg.MT5.BridgeURL,
			cfg.MT5.MagicNumber,
			cfg.MT5.Deviation,
			cfg.MT5.RequestTimeout.Duration,
		)
		if err := deps.Bridge.Ping(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: mt5 bridge: %w", err)
		}

		if cfg.MT5.StreamURL != "" {
			deps.Stream = mt5.NewStreamClient(cfg.MT5.StreamURL)
			if err := deps.Stream.Connect(ctx); err != nil {
				// The stream is an optimization; the REST client still serves
				// quotes without it.
				logger.WarnContext(ctx, "tick stream unavailable, continuing with polled quotes",
					slog.String("error", err.Error()),
				)
				deps.Stream = nil
			} else {
				closers = append(closers, func() { _ = deps.Stream.Close() })
			}
		}
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}

		pool := pgClient.Pool()
		deps.Sink = service.NewStoreSink(
			postgres.NewDecisionStore(pool),
			postgres.NewOrderStore(pool),
			postgres.NewFillStore(pool),
			postgres.NewPnLStore(pool),
		)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.ExecutionCache = redis.NewExecutionCache(redisClient, cfg.Redis.ResultTTL.Duration)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.QuoteCache = redis.NewQuoteCache(redisClient, 0)
	}

	return deps, cleanup, nil
}
