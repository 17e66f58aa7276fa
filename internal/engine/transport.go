package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// BroadcastChannel carries notifications addressed to every user.
const BroadcastChannel = "notify:broadcast"

// UserChannel returns the user-scoped pub/sub channel name.
func UserChannel(userID uint) string {
	return fmt.Sprintf("notify:user:%d", userID)
}

// RedisTransport delivers live notification events over Redis pub/sub.
// Reconnection is go-redis's concern; redelivered duplicates are absorbed
// by the engine's idempotent upsert.
type RedisTransport struct {
	client *redis.Client
}

// NewRedisTransport wraps an existing Redis client.
func NewRedisTransport(client *redis.Client) *RedisTransport {
	return &RedisTransport{client: client}
}

// Subscribe opens one subscription over all given channels and feeds
// decoded payloads to the handler. Undecodable payloads are logged and
// skipped; they must never stall the stream.
func (t *RedisTransport) Subscribe(ctx context.Context, channels []string, handler func(Notification)) (func(), error) {
	sub := t.client.Subscribe(ctx, channels...)

	// Confirm the subscription before reporting success
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %v: %w", channels, err)
	}

	go func() {
		for msg := range sub.Channel() {
			var n Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				log.Printf("ERROR: Discarding undecodable event on %s: %v", msg.Channel, err)
				continue
			}
			if n.ID == "" {
				log.Printf("ERROR: Discarding event without id on %s", msg.Channel)
				continue
			}
			handler(n)
		}
	}()

	return func() { sub.Close() }, nil
}
