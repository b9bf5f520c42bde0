// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/prices/usecase"
)

// PartitionBackend is the store being decorated.
type PartitionBackend interface {
	usecase.PartitionStore
	Read(ctx context.Context, day entity.TradingDay) (entity.Partition, bool, error)
	Days(ctx context.Context) ([]entity.TradingDay, error)
}

// CachingPartitionStore decorates a partition store with Redis caching.
// Partitions are never overwritten, so a cached partition stays valid until
// its TTL; the day list is invalidated on every successful write.
type CachingPartitionStore struct {
	inner     PartitionBackend
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// CachingPartitionStoreがPartitionStoreを実装していることをコンパイル時に検証します。
var _ usecase.PartitionStore = (*CachingPartitionStore)(nil)

// NewCachingPartitionStore decorates a store with Redis caching.
// If ttl is 0, it defaults to 5 minutes. If namespace is empty, it uses "partitions".
// A nil rdb disables caching.
func NewCachingPartitionStore(rdb *redis.Client, ttl time.Duration, inner PartitionBackend, namespace string) *CachingPartitionStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "partitions"
	}
	return &CachingPartitionStore{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// Exists always asks the underlying store; ingestion decisions must not rely on cached state.
func (c *CachingPartitionStore) Exists(ctx context.Context, day entity.TradingDay) (bool, error) {
	return c.inner.Exists(ctx, day)
}

// Write writes through and invalidates the day list and the day's entry.
func (c *CachingPartitionStore) Write(ctx context.Context, day entity.TradingDay, rows []entity.OHLCVRow) error {
	if err := c.inner.Write(ctx, day, rows); err != nil {
		return err
	}
	if c.rdb == nil {
		return nil
	}
	_ = c.rdb.Del(ctx, c.daysKey(), c.dayKey(day)).Err() // Best effort: don't fail if cache deletion fails
	return nil
}

// Read retrieves a partition, checking cache first then falling back to the store.
// Absent partitions are not cached.
func (c *CachingPartitionStore) Read(ctx context.Context, day entity.TradingDay) (entity.Partition, bool, error) {
	if c.rdb == nil {
		return c.inner.Read(ctx, day)
	}

	key := c.dayKey(day)

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out entity.Partition
		if err := json.Unmarshal(b, &out); err == nil {
			return out, true, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fallback to store
	out, found, err := c.inner.Read(ctx, day)
	if err != nil || !found {
		return out, found, err
	}

	// 3) Store in cache (best effort)
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	return out, true, nil
}

// Days returns the stored days, cached until the next write or the TTL.
func (c *CachingPartitionStore) Days(ctx context.Context) ([]entity.TradingDay, error) {
	if c.rdb == nil {
		return c.inner.Days(ctx)
	}

	key := c.daysKey()
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []entity.TradingDay
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		_ = c.rdb.Del(ctx, key).Err()
	}

	out, err := c.inner.Days(ctx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	return out, nil
}

// ReadRange reads every stored partition in [start, end] through the cache, ascending.
func (c *CachingPartitionStore) ReadRange(ctx context.Context, start, end entity.TradingDay) ([]entity.Partition, error) {
	days, err := c.Days(ctx)
	if err != nil {
		return nil, err
	}
	var out []entity.Partition
	for _, d := range days {
		if d.Before(start) || d.After(end) {
			continue
		}
		p, found, err := c.Read(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("read partition %s: %w", d, err)
		}
		if !found {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *CachingPartitionStore) daysKey() string {
	return c.namespace + ":days"
}

func (c *CachingPartitionStore) dayKey(day entity.TradingDay) string {
	return fmt.Sprintf("%s:day:%s", c.namespace, day)
}

// Namespace builds a key namespace from parts, escaping characters that are problematic for Redis keys.
func Namespace(parts ...string) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = safe(p)
	}
	return strings.Join(out, ":")
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
