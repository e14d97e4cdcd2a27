package cache

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
)

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{
		client: client,
		// the gateway retries failed deliveries for up to three days
		baseTTL: 72 * time.Hour,
	}
}

type RedisLedger struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisLedger) Claim(ctx context.Context, eventID string) (bool, error) {
	jitter := time.Duration(rand.IntN(60)) * time.Minute
	ok, err := r.client.SetNX(ctx, ledgerKey(eventID), time.Now().UTC().Format(time.RFC3339), r.baseTTL+jitter).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

func (r RedisLedger) Release(ctx context.Context, eventID string) error {
	if err := r.client.Del(ctx, ledgerKey(eventID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func ledgerKey(eventID string) string {
	return fmt.Sprintf("webhook:event:%s", eventID)
}
