package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultChannel = "telehealth:events"

// RedisPublisher forwards events to a Redis pub/sub channel for out-of-process consumers.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = defaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", e.Type, err)
	}
	return nil
}

// Subscribe reads events from channel and hands each to fn until ctx is done.
// Undecodable payloads and handler errors are logged and skipped.
func Subscribe(ctx context.Context, client *redis.Client, channel string, logger zerolog.Logger, fn Handler) error {
	if channel == "" {
		channel = defaultChannel
	}

	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	// wait for the subscription confirmation so nothing published after return is missed
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				logger.Warn().Err(err).Str("channel", channel).Msg("dropping undecodable event")
				continue
			}
			if err := fn(ctx, e); err != nil {
				logger.Error().
					Err(err).
					Str("event_type", string(e.Type)).
					Str("event_id", e.ID.String()).
					Msg("event handler failed")
			}
		}
	}
}
