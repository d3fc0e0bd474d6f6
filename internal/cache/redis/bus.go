package redis

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/bidhub/internal/domain"
	"github.com/redis/go-redis/v9"
)

// EventBus implements domain.EventBus using Redis Pub/Sub. The bid script
// publishes acceptance envelopes inside the atomic resolution step, so the
// order of messages on a channel matches acceptance order per auction.
type EventBus struct {
	rdb *redis.Client
}

// NewEventBus creates an EventBus backed by the given Client.
func NewEventBus(c *Client) *EventBus {
	return &EventBus{rdb: c.Underlying()}
}

// Subscribe creates a Redis Pub/Sub subscription and returns a read-only
// channel that emits raw payloads. The subscription is closed when the
// context is cancelled; the returned channel is closed at that point as
// well.
func (b *EventBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := b.rdb.Subscribe(ctx, channel)

	// Verify the subscription is established before returning.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Compile-time interface check.
var _ domain.EventBus = (*EventBus)(nil)
