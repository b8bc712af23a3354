package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jdavido74/medical-pro/pkg/logging"
)

// DefaultChannel is the Redis pub/sub channel shared by all instances.
const DefaultChannel = "medicalpro:cache:invalidations"

type wireEvent struct {
	Origin string `json:"origin"`
	Type   string `json:"type,omitempty"`
	Key    string `json:"key,omitempty"`
}

// RedisBridge forwards local invalidations to other instances over Redis
// pub/sub and applies theirs locally.
type RedisBridge struct {
	client  *redis.Client
	cache   *Cache
	channel string
	origin  string
	logger  *logging.Logger
	ready   chan struct{}
}

func NewRedisBridge(client *redis.Client, c *Cache, logger *logging.Logger) *RedisBridge {
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisBridge{
		client:  client,
		cache:   c,
		channel: DefaultChannel,
		origin:  uuid.NewString(),
		logger:  logger,
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the bridge is subscribed.
func (b *RedisBridge) Ready() <-chan struct{} { return b.ready }

// Run blocks until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("cache: subscribe %s: %w", b.channel, err)
	}

	events, cancel := b.cache.Subscribe(256)
	defer cancel()
	msgs := sub.Channel()
	close(b.ready)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			b.applyRemote(msg.Payload)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Remote || ev.Kind != EventInvalidated {
				continue
			}
			if err := b.publish(ctx, ev); err != nil {
				b.logger.Warn("cache invalidation not forwarded", "key", ev.Key, "type", ev.Type, "error", err)
			}
		}
	}
}

func (b *RedisBridge) publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(wireEvent{Origin: b.origin, Type: ev.Type, Key: ev.Key})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBridge) applyRemote(payload string) {
	var w wireEvent
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		b.logger.Warn("cache invalidation payload ignored", "error", err)
		return
	}
	if w.Origin == b.origin {
		return
	}
	b.cache.apply(Event{Kind: EventInvalidated, Type: w.Type, Key: w.Key, Remote: true})
}
