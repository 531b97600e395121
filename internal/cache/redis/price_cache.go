package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/btcarb/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each mark is
// stored at "mark:{marketID}" with fields "price" (decimal string) and "ts"
// (Unix nanoseconds).
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client. Marks expire
// after ttl; a ttl of zero keeps them until overwritten.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{rdb: c.rdb, ttl: ttl}
}

func markKey(marketID string) string {
	return "mark:" + marketID
}

// SetPrice stores the latest mark and its timestamp for a market.
func (pc *PriceCache) SetPrice(ctx context.Context, marketID string, price decimal.Decimal, ts time.Time) error {
	key := markKey(marketID)
	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"price": price.String(),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	})
	if pc.ttl > 0 {
		pipe.Expire(ctx, key, pc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set mark %s: %w", marketID, err)
	}
	return nil
}

// GetPrice returns the latest mark for a market, or domain.ErrNotFound.
func (pc *PriceCache) GetPrice(ctx context.Context, marketID string) (decimal.Decimal, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, markKey(marketID)).Result()
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: get mark %s: %w", marketID, err)
	}
	price, ts, err := parseMark(vals)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: get mark %s: %w", marketID, err)
	}
	return price, ts, nil
}

// GetPrices returns marks for several markets in one pipeline. Markets
// without a usable mark are omitted.
func (pc *PriceCache) GetPrices(ctx context.Context, marketIDs []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(marketIDs))
	if len(marketIDs) == 0 {
		return out, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(marketIDs))
	for _, id := range marketIDs {
		cmds[id] = pipe.HGetAll(ctx, markKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get marks: %w", err)
	}

	for id, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			continue
		}
		if price, _, err := parseMark(vals); err == nil {
			out[id] = price
		}
	}
	return out, nil
}

// parseMark decodes the hash fields written by SetPrice.
func parseMark(vals map[string]string) (decimal.Decimal, time.Time, error) {
	priceStr, ok := vals["price"]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("parse price %q: %w", priceStr, err)
	}

	var ts time.Time
	if tsStr, ok := vals["ts"]; ok {
		nanos, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return decimal.Zero, time.Time{}, fmt.Errorf("parse ts %q: %w", tsStr, err)
		}
		ts = time.Unix(0, nanos).UTC()
	}
	return price, ts, nil
}

var _ domain.PriceCache = (*PriceCache)(nil)
