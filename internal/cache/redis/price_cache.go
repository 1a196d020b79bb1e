package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a cached value does not exist or has expired.
var ErrNotFound = errors.New("cache miss")

// PriceCache implements interfaces.PriceCache using Redis hashes. Each price
// is stored at "price:{symbol}:{chain}" with fields "price" and "ts", bounded
// by a TTL so stale quotes age out on their own.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

func priceKey(symbol, chain string) string {
	return "price:" + strings.ToUpper(symbol) + ":" + strings.ToLower(chain)
}

// SetPrice stores the latest price and observation time for a token on a
// chain.
func (pc *PriceCache) SetPrice(ctx context.Context, symbol, chain string, price float64, ts time.Time) error {
	key := priceKey(symbol, chain)
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	pipe := pc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	if pc.ttl > 0 {
		pipe.Expire(ctx, key, pc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s/%s: %w", symbol, chain, err)
	}
	return nil
}

// GetPrice retrieves the latest cached price. Returns ErrNotFound on a miss.
func (pc *PriceCache) GetPrice(ctx context.Context, symbol, chain string) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(symbol, chain)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s/%s: %w", symbol, chain, err)
	}
	return parsePriceFields(vals)
}

func parsePriceFields(vals map[string]string) (float64, time.Time, error) {
	if len(vals) == 0 {
		return 0, time.Time{}, ErrNotFound
	}
	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price: %w", err)
	}
	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts: %w", err)
	}
	return price, time.Unix(0, tsNano), nil
}
