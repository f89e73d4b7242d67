package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const topicPrefix = "inspection-audit:entity:"

// Topic returns the Redis pub/sub channel carrying events for an entity.
func Topic(entityID string) string {
	return topicPrefix + entityID
}

// RedisBus fans events out across processes through Redis pub/sub. Each
// subscription owns its own PubSub connection filtered to one entity topic.
type RedisBus struct {
	client *redis.Client
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string]*redisSubscription
}

type redisSubscription struct {
	handle Handle
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

// NewRedisBus wires a bus onto an existing client.
func NewRedisBus(client *redis.Client, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{client: client, logger: logger, subs: make(map[string]*redisSubscription)}
}

// Publish serializes the event onto the entity topic.
func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	payload, err := EncodeEvent(event)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, Topic(event.EntityID), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Subscribe opens a PubSub on the entity topic and waits for the
// subscription to be confirmed before delivering messages.
func (b *RedisBus) Subscribe(ctx context.Context, channel, entityID string, handler Handler) (Handle, error) {
	if channel == "" || entityID == "" || handler == nil {
		return Handle{}, ErrInvalidSubscription
	}

	b.mu.Lock()
	if _, exists := b.subs[channel]; exists {
		b.mu.Unlock()
		return Handle{}, ErrChannelExists
	}
	b.mu.Unlock()

	pubsub := b.client.Subscribe(ctx, Topic(entityID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return Handle{}, fmt.Errorf("subscribe %s: %w", Topic(entityID), err)
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &redisSubscription{
		handle: Handle{Channel: channel, EntityID: entityID},
		pubsub: pubsub,
		cancel: cancel,
	}

	b.mu.Lock()
	if _, exists := b.subs[channel]; exists {
		b.mu.Unlock()
		cancel()
		_ = pubsub.Close()
		return Handle{}, ErrChannelExists
	}
	b.subs[channel] = sub
	b.mu.Unlock()

	go b.deliver(subCtx, sub, handler)
	return sub.handle, nil
}

func (b *RedisBus) deliver(ctx context.Context, sub *redisSubscription, handler Handler) {
	messages := sub.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				b.logger.Warn("redis subscription closed", zap.String("channel", sub.handle.Channel))
				return
			}
			event, err := DecodeEvent([]byte(msg.Payload))
			if err != nil {
				b.logger.Warn("discarding malformed event",
					zap.String("channel", sub.handle.Channel),
					zap.Error(err))
				continue
			}
			if event.EntityID != sub.handle.EntityID || ctx.Err() != nil {
				continue
			}
			handler(ctx, event)
		}
	}
}

// Unsubscribe closes the PubSub backing the handle.
func (b *RedisBus) Unsubscribe(handle Handle) error {
	b.mu.Lock()
	sub, ok := b.subs[handle.Channel]
	if ok {
		delete(b.subs, handle.Channel)
	}
	b.mu.Unlock()
	if !ok {
		return ErrUnknownChannel
	}

	sub.cancel()
	return sub.pubsub.Close()
}

// EncodeEvent serializes an event for the wire.
func EncodeEvent(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return payload, nil
}

// DecodeEvent parses a wire event and rejects events without an entity.
func DecodeEvent(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if event.EntityID == "" {
		return Event{}, fmt.Errorf("decode event: missing entity_id")
	}
	return event, nil
}
