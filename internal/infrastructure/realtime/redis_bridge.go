package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/domain/events"
	"github.com/nexuscrm/salescrm/internal/domain/ports"
)

// RedisBridge relays changes between API instances over a pub/sub channel.
type RedisBridge struct {
	client  *redis.Client
	channel string
}

var _ ports.ChangeRelay = (*RedisBridge)(nil)

// NewRedisBridge uses channel on client.
func NewRedisBridge(client *redis.Client, channel string) *RedisBridge {
	if channel == "" {
		channel = "crm:changes"
	}
	return &RedisBridge{client: client, channel: channel}
}

// Publish sends c to every instance, including this one.
func (b *RedisBridge) Publish(ctx context.Context, c events.Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Run subscribes to the channel and calls deliver for every change until ctx
// is done.
func (b *RedisBridge) Run(ctx context.Context, ready func(), deliver func(events.Change)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// wait for the subscription to be confirmed so no message is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	ready()

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("subscription to %s closed", b.channel)
			}
			var c events.Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				zap.L().Warn("discarding malformed change", zap.String("channel", b.channel), zap.Error(err))
				continue
			}
			deliver(c)
		}
	}
}
