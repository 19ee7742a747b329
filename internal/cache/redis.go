package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/velmostra/stagegate/config"
	"github.com/velmostra/stagegate/internal/domain"
)

type RedisCache struct {
	client    *redis.Client
	eventsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, eventsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:    redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		eventsTTL: eventsTTL,
	}
}

func (c *RedisCache) GetEvents(ctx context.Context) ([]domain.Event, error) {
	data, err := c.client.Get(ctx, eventsKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var events []domain.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *RedisCache) SetEvents(ctx context.Context, events []domain.Event) error {
	payload, err := json.Marshal(events)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, eventsKey(), payload, c.eventsTTL).Err()
}

// InvalidateEvents drops the cached listing after an admin write so buyers
// do not see stale capacity for a full TTL.
func (c *RedisCache) InvalidateEvents(ctx context.Context) error {
	return c.client.Del(ctx, eventsKey()).Err()
}

// AcquireCheckoutLock dampens concurrent checkout-session creation for one
// reservation. Correctness does not depend on it; confirmation is
// idempotent regardless of how many sessions exist.
func (c *RedisCache) AcquireCheckoutLock(ctx context.Context, reservationID string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, checkoutLockKey(reservationID), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseCheckoutLock(ctx context.Context, reservationID string) error {
	return c.client.Del(ctx, checkoutLockKey(reservationID)).Err()
}

func eventsKey() string {
	return "cache:events"
}

func checkoutLockKey(reservationID string) string {
	return fmt.Sprintf("lock:checkout:%s", reservationID)
}
