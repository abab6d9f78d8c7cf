// Package cache keeps built reports in Redis so repeated report requests do
// not reread the journal.
package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rustyeddy/tradeledger/internal/metrics"
	"github.com/rustyeddy/tradeledger/market"
	"github.com/rustyeddy/tradeledger/stats"
)

const keyPrefix = "tradeledger:report:"

// Options configure the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ReportCache stores msgpack encoded reports. A nil *ReportCache is a valid
// cache that never hits.
type ReportCache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
}

// New connects to Redis and pings it.
func New(ctx context.Context, opts Options, m *metrics.Metrics) (*ReportCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	return &ReportCache{client: client, ttl: opts.TTL, metrics: m}, nil
}

func (c *ReportCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// ReportKey names a cached report. Every input of stats.BuildReport except
// the trades themselves is part of the key.
func ReportKey(account string, g stats.Granularity, f stats.Filter, rng market.Range) string {
	rk := "all"
	if !rng.IsZero() {
		rk = fmt.Sprintf("%d-%d-%s", rng.Start.Unix(), rng.End.Unix(), rng.Start.Location())
	}
	return fmt.Sprintf("%s%s:%s:%s:%s", keyPrefix, accountSegment(account), g, f, rk)
}

// accountSegment escapes account so it holds neither the key separator nor
// a SCAN glob metacharacter.
func accountSegment(account string) string {
	return url.QueryEscape(account)
}

func accountPattern(account string) string {
	return keyPrefix + accountSegment(account) + ":*"
}

// Get returns the cached report under key. A miss is (nil, false, nil).
func (c *ReportCache) Get(ctx context.Context, key string) (*stats.Report, bool, error) {
	if c == nil {
		return nil, false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.RecordCache(false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}

	r, err := decodeReport(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}
	c.metrics.RecordCache(true)
	return r, true, nil
}

// Set stores r under key for the configured TTL.
func (c *ReportCache) Set(ctx context.Context, key string, r *stats.Report) error {
	if c == nil {
		return nil
	}
	data, err := encodeReport(r)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// GetOrBuild returns the cached report or builds and stores a new one. Cache
// failures fall through to build.
func (c *ReportCache) GetOrBuild(ctx context.Context, key string, build func(context.Context) (*stats.Report, error)) (*stats.Report, error) {
	if r, ok, err := c.Get(ctx, key); err == nil && ok {
		return r, nil
	}

	r, err := build(ctx)
	if err != nil {
		return nil, err
	}
	_ = c.Set(ctx, key, r)
	return r, nil
}

// InvalidateAccount drops every cached report of account and returns how
// many keys were removed.
func (c *ReportCache) InvalidateAccount(ctx context.Context, account string) (int, error) {
	if c == nil {
		return 0, nil
	}

	var (
		cursor  uint64
		removed int
		match   = accountPattern(account)
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return removed, fmt.Errorf("scan %s: %w", match, err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("delete keys: %w", err)
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}
