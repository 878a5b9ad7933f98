package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "openhouse:msg:"

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func key(messageID string) string {
	return keyPrefix + messageID
}

func (c *RedisCache) StoreSent(ctx context.Context, rec SentRecord) error {
	rec.SentAt = rec.SentAt.UTC()

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key(rec.MessageID), b, c.ttl).Err()
}

func (c *RedisCache) LookupSent(ctx context.Context, messageID string) (SentRecord, bool, error) {
	raw, err := c.rdb.Get(ctx, key(messageID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return SentRecord{}, false, nil
	}
	if err != nil {
		return SentRecord{}, false, err
	}

	var rec SentRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return SentRecord{}, false, err
	}
	return rec, true, nil
}
