package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// GasCache implements interfaces.GasCache using Redis hashes keyed by chain.
type GasCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewGasCache creates a GasCache backed by the given Client.
func NewGasCache(c *Client, ttl time.Duration) *GasCache {
	return &GasCache{rdb: c.Underlying(), ttl: ttl}
}

func gasKey(chain string) string {
	return "gas:" + strings.ToLower(chain)
}

// SetGasPrice stores the latest gas price for a chain, in gwei.
func (gc *GasCache) SetGasPrice(ctx context.Context, chain string, gwei float64, ts time.Time) error {
	key := gasKey(chain)
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(gwei, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	pipe := gc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	if gc.ttl > 0 {
		pipe.Expire(ctx, key, gc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set gas %s: %w", chain, err)
	}
	return nil
}

// GetGasPrice retrieves the latest cached gas price. Returns ErrNotFound on
// a miss.
func (gc *GasCache) GetGasPrice(ctx context.Context, chain string) (float64, time.Time, error) {
	vals, err := gc.rdb.HGetAll(ctx, gasKey(chain)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get gas %s: %w", chain, err)
	}
	return parsePriceFields(vals)
}
