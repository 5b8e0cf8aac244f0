package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brazilquant/swapbot/internal/domain"
)

// ExecutionCache implements domain.ExecutionCache by storing completed
// execution results as JSON keyed by decision id. A restarted process can
// therefore still answer "this decision already ran" for results produced
// before the restart, for as long as the TTL allows.
type ExecutionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewExecutionCache creates an ExecutionCache backed by the given Client.
// Results expire after ttl; zero means 24 hours.
func NewExecutionCache(c *Client, ttl time.Duration) *ExecutionCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ExecutionCache{rdb: c.Underlying(), ttl: ttl}
}

func executionKey(decisionID string) string {
	return "swapbot:execution:" + decisionID
}

// Get returns the cached result for a decision, if one exists.
func (ec *ExecutionCache) Get(ctx context.Context, decisionID string) (domain.ExecutionResult, bool, error) {
	data, err := ec.rdb.Get(ctx, executionKey(decisionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ExecutionResult{}, false, nil
		}
		return domain.ExecutionResult{}, false, fmt.Errorf("redis: get execution %s: %w", decisionID, err)
	}

	var result domain.ExecutionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return domain.ExecutionResult{}, false, fmt.Errorf("redis: decode execution %s: %w", decisionID, err)
	}

	return result, true, nil
}

// Set stores a completed execution result under its decision id.
func (ec *ExecutionCache) Set(ctx context.Context, result domain.ExecutionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("redis: encode execution %s: %w", result.DecisionID, err)
	}

	if err := ec.rdb.Set(ctx, executionKey(result.DecisionID), data, ec.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set execution %s: %w", result.DecisionID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ExecutionCache = (*ExecutionCache)(nil)
