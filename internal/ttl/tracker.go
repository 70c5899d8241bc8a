package ttl

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"carrental-backend/internal/logger"
)

// Tracker registers deposit-window deadlines as expiring Redis keys.
type Tracker struct {
	client *redis.Client
}

func NewTracker(client *redis.Client) *Tracker {
	return &Tracker{client: client}
}

// Register creates the booking's key with the given time-to-live.
func (t *Tracker) Register(ctx context.Context, number string, ttl time.Duration) error {
	key := BookingKey(number)
	logger.ExternalServiceCall("redis", "SET", "key", key, "ttl", ttl)
	err := t.client.Set(ctx, key, number, ttl).Err()
	logger.ExternalServiceResult("redis", "SET", err, "key", key)
	if err != nil {
		return fmt.Errorf("register deposit window for %s: %w", number, err)
	}
	return nil
}

// Cancel removes the booking's key. Removing a key that already expired is not an error.
func (t *Tracker) Cancel(ctx context.Context, number string) error {
	key := BookingKey(number)
	logger.ExternalServiceCall("redis", "DEL", "key", key)
	err := t.client.Del(ctx, key).Err()
	logger.ExternalServiceResult("redis", "DEL", err, "key", key)
	if err != nil {
		return fmt.Errorf("cancel deposit window for %s: %w", number, err)
	}
	return nil
}
