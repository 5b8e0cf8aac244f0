package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brazilquant/swapbot/internal/domain"
)

// QuoteCache publishes the latest tick per symbol as a Redis hash at
// "swapbot:quote:{symbol}". Dashboards and other processes read it to watch
// the pair without holding their own terminal connection.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache backed by the given Client. Entries
// expire after ttl; zero means 5 minutes.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func quoteKey(symbol string) string {
	return "swapbot:quote:" + symbol
}

// SetQuote stores the latest tick for a symbol.
func (qc *QuoteCache) SetQuote(ctx context.Context, q domain.Quote) error {
	key := quoteKey(q.Symbol)
	fields := map[string]interface{}{
		"bid":    strconv.FormatFloat(q.Bid, 'f', -1, 64),
		"ask":    strconv.FormatFloat(q.Ask, 'f', -1, 64),
		"last":   strconv.FormatFloat(q.Last, 'f', -1, 64),
		"volume": strconv.FormatInt(q.Volume, 10),
		"ts":     strconv.FormatInt(q.Timestamp.UnixNano(), 10),
	}

	pipe := qc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, qc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", q.Symbol, err)
	}
	return nil
}

// GetQuote retrieves the latest tick for a symbol. It returns
// domain.ErrNotFound when no tick has been published.
func (qc *QuoteCache) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(symbol)).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	q := domain.Quote{Symbol: symbol}
	if q.Bid, err = strconv.ParseFloat(vals["bid"], 64); err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse bid %s: %w", symbol, err)
	}
	if q.Ask, err = strconv.ParseFloat(vals["ask"], 64); err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse ask %s: %w", symbol, err)
	}
	if q.Last, err = strconv.ParseFloat(vals["last"], 64); err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse last %s: %w", symbol, err)
	}
	if q.Volume, err = strconv.ParseInt(vals["volume"], 10, 64); err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse volume %s: %w", symbol, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse ts %s: %w", symbol, err)
	}
	q.Timestamp = time.Unix(0, tsNano)

	return q, nil
}
