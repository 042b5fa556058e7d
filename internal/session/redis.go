package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// RedisBackend stores sessions as JSON values whose TTL tracks the refresh
// credential expiry, so Redis evicts dead sessions on its own.
type RedisBackend struct {
	rdb redis.Cmdable
	now func() time.Time
}

// NewRedisBackend wraps a go-redis client.
func NewRedisBackend(rdb redis.Cmdable) *RedisBackend {
	return &RedisBackend{rdb: rdb, now: time.Now}
}

func (b *RedisBackend) Get(ctx context.Context, sessionID string) (*Record, error) {
	data, err := b.rdb.Get(ctx, redisKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &rec, nil
}

func (b *RedisBackend) Put(ctx context.Context, rec *Record) error {
	ttl := rec.RefreshExpiresAt.Sub(b.now())
	if ttl <= 0 {
		return b.Delete(ctx, rec.SessionID)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := b.rdb.Set(ctx, redisKeyPrefix+rec.SessionID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, sessionID string) error {
	if err := b.rdb.Del(ctx, redisKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: keys expire through their TTL.
func (b *RedisBackend) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
