package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrChannelExists is returned when a channel name is reused while live.
	ErrChannelExists = errors.New("events: channel already subscribed")
	// ErrUnknownChannel is returned when unsubscribing a handle that is not live.
	ErrUnknownChannel = errors.New("events: unknown channel")
	// ErrInvalidSubscription is returned for empty channel or entity identifiers.
	ErrInvalidSubscription = errors.New("events: channel and entity id required")
)

const subscriptionBuffer = 64

type subscription struct {
	handle Handle
	queue  chan Event
	cancel context.CancelFunc
}

// Dispatcher is an in-process Bus. Each subscription gets its own queue and
// delivery goroutine so a slow handler never blocks the publisher.
type Dispatcher struct {
	mu       sync.RWMutex
	byEntity map[string]map[string]*subscription
	logger   *zap.Logger
	dropped  func(Event)
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		byEntity: make(map[string]map[string]*subscription),
		logger:   logger,
	}
}

// OnDropped registers a callback invoked when a full queue drops an event.
func (d *Dispatcher) OnDropped(fn func(Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropped = fn
}

// Publish enqueues the event for every subscriber of its entity.
func (d *Dispatcher) Publish(_ context.Context, event Event) error {
	d.mu.RLock()
	subs := make([]*subscription, 0, len(d.byEntity[event.EntityID]))
	for _, sub := range d.byEntity[event.EntityID] {
		subs = append(subs, sub)
	}
	dropped := d.dropped
	d.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.queue <- event:
		default:
			d.logger.Warn("subscription queue full; dropping event",
				zap.String("channel", sub.handle.Channel),
				zap.String("entity_id", event.EntityID),
				zap.String("event_type", string(event.Type)))
			if dropped != nil {
				dropped(event)
			}
		}
	}
	return nil
}

// Subscribe registers a handler for events scoped to entityID.
func (d *Dispatcher) Subscribe(ctx context.Context, channel, entityID string, handler Handler) (Handle, error) {
	if channel == "" || entityID == "" || handler == nil {
		return Handle{}, ErrInvalidSubscription
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lookupLocked(channel) != nil {
		return Handle{}, ErrChannelExists
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &subscription{
		handle: Handle{Channel: channel, EntityID: entityID},
		queue:  make(chan Event, subscriptionBuffer),
		cancel: cancel,
	}
	if d.byEntity[entityID] == nil {
		d.byEntity[entityID] = make(map[string]*subscription)
	}
	d.byEntity[entityID][channel] = sub

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case event := <-sub.queue:
				if subCtx.Err() != nil {
					return
				}
				handler(subCtx, event)
			}
		}
	}()

	return sub.handle, nil
}

// Unsubscribe stops delivery for the handle. Events still queued are dropped.
func (d *Dispatcher) Unsubscribe(handle Handle) error {
	d.mu.Lock()
	sub := d.lookupLocked(handle.Channel)
	if sub == nil {
		d.mu.Unlock()
		return ErrUnknownChannel
	}
	delete(d.byEntity[sub.handle.EntityID], handle.Channel)
	if len(d.byEntity[sub.handle.EntityID]) == 0 {
		delete(d.byEntity, sub.handle.EntityID)
	}
	d.mu.Unlock()

	sub.cancel()
	return nil
}

// SubscriberCount reports live subscriptions for an entity.
func (d *Dispatcher) SubscriberCount(entityID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byEntity[entityID])
}

func (d *Dispatcher) lookupLocked(channel string) *subscription {
	for _, subs := range d.byEntity {
		if sub, ok := subs[channel]; ok {
			return sub
		}
	}
	return nil
}
