package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RicardoG06/BancaInternet/internal/domain"
)

const idempotencyKeyPrefix = "idem:"

// RedisIdempotency stores idempotency records in Redis, letting the server
// enforce the retention window through key TTLs. SET NX gives PutIfAbsent
// its at-most-once-per-key semantics.
type RedisIdempotency struct {
	client *redis.Client
}

var _ IdempotencyStore = (*RedisIdempotency)(nil)

func NewRedisIdempotency(client *redis.Client) *RedisIdempotency {
	return &RedisIdempotency{client: client}
}

type idempotencyEnvelope struct {
	Result    json.RawMessage `json:"result"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

func (r *RedisIdempotency) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	raw, err := r.client.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup failed: %w", err)
	}

	var env idempotencyEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("corrupt idempotency record for %q: %w", key, err)
	}

	return &domain.IdempotencyRecord{
		Key:       key,
		Result:    env.Result,
		CreatedAt: env.CreatedAt,
		ExpiresAt: env.ExpiresAt,
	}, nil
}

func (r *RedisIdempotency) PutIfAbsent(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	raw, err := json.Marshal(idempotencyEnvelope{
		Result:    result,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("idempotency record marshal failed: %w", err)
	}

	if err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency write failed: %w", err)
	}
	return nil
}
