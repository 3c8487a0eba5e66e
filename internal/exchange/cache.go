package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/buzzkillb/tirade-engine/internal/domain"
)

// candleWindowTTL bounds how long a cached rolling window is trusted before
// a fresh fetch is forced -- shorter than a cycle period so a stalled venue
// doesn't silently serve ancient data.
const candleWindowTTL = 20 * time.Second

// CachedPriceSource wraps a PriceSource with a Redis read-through cache for
// the rolling candle window, adapted from the teacher's Redis-backed state
// repositories (internal/database/redis_position_state.go): same
// TTL-keyed, JSON-marshalled, fall-through-on-miss shape.
type CachedPriceSource struct {
	inner domain.PriceSource
	rdb   *redis.Client
}

func NewCachedPriceSource(inner domain.PriceSource, rdb *redis.Client) *CachedPriceSource {
	return &CachedPriceSource{inner: inner, rdb: rdb}
}

func cacheKey(pair, interval string, limit int) string {
	return fmt.Sprintf("tirade:candles:%s:%s:%d", pair, interval, limit)
}

func (c *CachedPriceSource) FetchCandles(ctx context.Context, pair string, interval string, limit int) ([]domain.Candle, error) {
	key := cacheKey(pair, interval, limit)
	if cached, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var candles []domain.Candle
		if jsonErr := json.Unmarshal(cached, &candles); jsonErr == nil {
			return candles, nil
		}
	}

	candles, err := c.inner.FetchCandles(ctx, pair, interval, limit)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(candles); err == nil {
		// Best-effort: a cache write failure never blocks the cycle.
		_ = c.rdb.Set(ctx, key, payload, candleWindowTTL).Err()
	}
	return candles, nil
}

func (c *CachedPriceSource) FetchRaw(ctx context.Context, pair string) ([]domain.PriceTick, error) {
	return c.inner.FetchRaw(ctx, pair)
}

var _ domain.PriceSource = (*CachedPriceSource)(nil)
