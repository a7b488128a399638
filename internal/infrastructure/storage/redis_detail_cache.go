package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"TenderMonitor/internal/domain"
	"TenderMonitor/internal/ports"
)

const redisDetailPrefix = "tender:detail:"

// RedisDetailCache keeps one key per tender id without expiry.
type RedisDetailCache struct {
	rdb    *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.DetailCache = (*RedisDetailCache)(nil)

// NewRedisDetailCache wires a go-redis client.
func NewRedisDetailCache(rdb *redis.Client, logger *slog.Logger) *RedisDetailCache {
	return &RedisDetailCache{rdb: rdb, logger: logger, now: time.Now}
}

// LookupBatch issues a single MGET for all ids.
func (c *RedisDetailCache) LookupBatch(ctx context.Context, ids []string) (map[string]domain.TenderDetail, error) {
	ids = uniqueIDs(ids)
	result := make(map[string]domain.TenderDetail)
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisDetailPrefix + id
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		detail, err := decodeDetail(ids[i], []byte(raw))
		if err != nil {
			warnCorrupt(c.logger, ids[i], err)
			continue
		}
		result[ids[i]] = detail
	}
	return result, nil
}

// Put overwrites the entry of id.
func (c *RedisDetailCache) Put(ctx context.Context, id string, detail domain.TenderDetail) error {
	payload, err := encodeDetail(id, detail, c.now())
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, redisDetailPrefix+id, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", id, err)
	}
	return nil
}
