package notifications

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel transitions are published on.
const DefaultChannel = "ghg:workflow:transitions"

// RedisPublisher publishes every notification as JSON so other services can follow the workflow.
type RedisPublisher struct {
	Rdb     *redis.Client
	Channel string
}

func (p *RedisPublisher) Notify(ctx context.Context, n Notification) error {
	if p.Rdb == nil {
		return nil
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	channel := p.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	return p.Rdb.Publish(ctx, channel, payload).Err()
}
