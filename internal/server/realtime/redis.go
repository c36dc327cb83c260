package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/logging"
)

// RedisClient is the part of *redis.Client the bridge uses.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type bridgeMessage struct {
	Origin       string              `json:"origin"`
	Notification common.Notification `json:"notification"`
}

// Bridge fans change notifications out to the hubs of other server
// instances through a Redis channel. Messages carry the publishing
// instance's id so an instance never re-delivers its own notifications.
type Bridge struct {
	rdb     RedisClient
	channel string
	origin  string
	hub     *Hub
	logger  logging.Logger
}

func NewBridge(rdb RedisClient, channel string, hub *Hub, logger logging.Logger) *Bridge {
	return &Bridge{
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		hub:     hub,
		logger:  logger.With("module", "redis_bridge"),
	}
}

// Publish delivers n locally and forwards it to the other instances.
func (b *Bridge) Publish(ctx context.Context, n common.Notification) {
	b.hub.Broadcast(n)

	body, err := json.Marshal(bridgeMessage{Origin: b.origin, Notification: n})
	if err != nil {
		b.logger.Error(ctx, "cannot encode bridge message", "error", err)
		return
	}
	if err := b.rdb.Publish(ctx, b.channel, body).Err(); err != nil {
		b.logger.Warn(ctx, "redis publish failed", "channel", b.channel, "error", err)
	}
}

// Run relays notifications from other instances until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	ps := b.rdb.Subscribe(ctx, b.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	b.logger.Info(ctx, "redis bridge subscribed", "channel", b.channel)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.deliver(ctx, msg.Payload)
		}
	}
}

func (b *Bridge) deliver(ctx context.Context, payload string) {
	var m bridgeMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		b.logger.Warn(ctx, "undecodable bridge message", "error", err)
		return
	}
	if m.Origin == b.origin {
		return
	}
	b.hub.Broadcast(m.Notification)
}
