package ttl

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"carrental-backend/internal/logger"
)

// ExpiryFunc receives the literal name of every key that expired.
type ExpiryFunc func(ctx context.Context, key string)

// Listener relays Redis keyspace expiry notifications. Redis publishes them
// fire-and-forget, so a notification missed while disconnected is lost.
type Listener struct {
	client          *redis.Client
	db              int
	configureEvents bool
}

func NewListener(client *redis.Client, db int, configureEvents bool) *Listener {
	return &Listener{client: client, db: db, configureEvents: configureEvents}
}

// ExpiredChannel is the keyevent channel for expirations in the given database.
func ExpiredChannel(db int) string {
	return fmt.Sprintf("__keyevent@%d__:expired", db)
}

// Run subscribes to expiry events and calls fn for each until ctx is cancelled.
func (l *Listener) Run(ctx context.Context, fn ExpiryFunc) error {
	if l.configureEvents {
		// Managed Redis may reject CONFIG; events must then be enabled server-side.
		if err := l.client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
			logger.Warn("Could not enable keyspace expiry events", "error", err)
		}
	}

	channel := ExpiredChannel(l.db)
	pubsub := l.client.PSubscribe(ctx, channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", channel, err)
	}
	logger.Info("Listening for deposit window expirations", "channel", channel)

	dispatch(ctx, pubsub.Channel(), fn)
	return nil
}

func dispatch(ctx context.Context, messages <-chan *redis.Message, fn ExpiryFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			fn(ctx, msg.Payload)
		}
	}
}
