package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/inspection-audit/internal/domain"
	"github.com/spec-kit/inspection-audit/internal/events"
)

var channelSeq atomic.Uint64

// ChannelName builds a subscription channel name unique per mount.
func ChannelName(entityID string, at time.Time) string {
	return fmt.Sprintf("change-history:%s:%d-%d", entityID, at.UnixNano(), channelSeq.Add(1))
}

// SubscriptionManager keeps at most one live subscription, bound to the
// entity currently being watched.
type SubscriptionManager struct {
	bus       events.Subscriber
	refresher Refresher
	tracker   *StatusTracker
	delay     time.Duration
	logger    *zap.Logger
	metrics   Metrics
	now       func() time.Time

	mu     sync.Mutex
	handle *events.Handle
}

// NewSubscriptionManager builds a manager. Change events schedule a refresh
// after delay; entity updates go to tracker when one is given.
func NewSubscriptionManager(bus events.Subscriber, refresher Refresher, tracker *StatusTracker, delay time.Duration, logger *zap.Logger, metrics Metrics, now func() time.Time) *SubscriptionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if now == nil {
		now = time.Now
	}
	return &SubscriptionManager{
		bus:       bus,
		refresher: refresher,
		tracker:   tracker,
		delay:     delay,
		logger:    logger,
		metrics:   metrics,
		now:       now,
	}
}

// Watch points the live subscription at entityID. The previous subscription
// is torn down first; an empty entity or missing actor leaves the manager
// unsubscribed.
func (m *SubscriptionManager) Watch(ctx context.Context, entityID string, actor *domain.Actor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil && m.handle.EntityID == entityID && actor.Valid() {
		return nil
	}
	m.teardownLocked()
	if entityID == "" || !actor.Valid() {
		return nil
	}

	channel := ChannelName(entityID, m.now())
	handle, err := m.bus.Subscribe(ctx, channel, entityID, m.handleEvent)
	if err != nil {
		m.logger.Warn("failed to subscribe to change feed",
			zap.String("entity_id", entityID),
			zap.String("channel", channel),
			zap.Error(err))
		return fmt.Errorf("subscribe %s: %w", entityID, err)
	}
	m.handle = &handle
	m.metrics.SubscriptionOpened()
	m.logger.Debug("subscribed to change feed", zap.String("entity_id", entityID), zap.String("channel", channel))
	return nil
}

// Close tears down the live subscription, if any.
func (m *SubscriptionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

// Active returns the watched entity.
func (m *SubscriptionManager) Active() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return "", false
	}
	return m.handle.EntityID, true
}

// Handle returns the live handle.
func (m *SubscriptionManager) Handle() (events.Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return events.Handle{}, false
	}
	return *m.handle, true
}

func (m *SubscriptionManager) teardownLocked() {
	if m.handle == nil {
		return
	}
	if err := m.bus.Unsubscribe(*m.handle); err != nil {
		m.logger.Warn("failed to unsubscribe",
			zap.String("channel", m.handle.Channel),
			zap.Error(err))
	}
	m.handle = nil
	m.metrics.SubscriptionClosed()
}

func (m *SubscriptionManager) handleEvent(_ context.Context, event events.Event) {
	m.mu.Lock()
	watched := m.handle != nil && m.handle.EntityID == event.EntityID
	m.mu.Unlock()
	if !watched {
		return
	}

	if event.Type == events.EventInspectionUpdated && event.Inspection != nil && m.tracker != nil {
		m.tracker.Observe(EntitySnapshot{
			EntityID:      event.EntityID,
			OverallStatus: event.Inspection.OverallStatus,
			UpdatedAt:     event.Inspection.UpdatedAt,
		})
		return
	}
	m.refresher.DebouncedRefresh(m.delay, false)
}
