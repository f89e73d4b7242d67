package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/inspection-audit/internal/domain"
	"github.com/spec-kit/inspection-audit/internal/events"
)

type failingSubscriber struct{}

func (failingSubscriber) Subscribe(context.Context, string, string, events.Handler) (events.Handle, error) {
	return events.Handle{}, errors.New("realtime unavailable")
}

func (failingSubscriber) Unsubscribe(events.Handle) error { return nil }

func newTestManager(t *testing.T) (*SubscriptionManager, *events.Dispatcher, *fakeRefresher) {
	t.Helper()
	bus := events.NewInMemoryDispatcher(nil)
	refresher := &fakeRefresher{}
	tracker := NewStatusTracker(refresher, 300*time.Millisecond)
	m := NewSubscriptionManager(bus, refresher, tracker, 1500*time.Millisecond, nil, nil, nil)
	t.Cleanup(m.Close)
	return m, bus, refresher
}

func TestSubscriptionManagerSwitchLeavesNoHandleForPreviousEntity(t *testing.T) {
	m, bus, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Watch(ctx, "insp-a", inspector()))
	assert.Equal(t, 1, bus.SubscriberCount("insp-a"))

	require.NoError(t, m.Watch(ctx, "insp-b", inspector()))
	assert.Equal(t, 0, bus.SubscriberCount("insp-a"))
	assert.Equal(t, 1, bus.SubscriberCount("insp-b"))

	entity, ok := m.Active()
	assert.True(t, ok)
	assert.Equal(t, "insp-b", entity)

	require.NoError(t, m.Watch(ctx, "", inspector()))
	assert.Equal(t, 0, bus.SubscriberCount("insp-b"))
	_, ok = m.Active()
	assert.False(t, ok)
}

func TestSubscriptionManagerRequiresActor(t *testing.T) {
	m, bus, _ := newTestManager(t)

	require.NoError(t, m.Watch(context.Background(), "insp-a", nil))
	assert.Equal(t, 0, bus.SubscriberCount("insp-a"))

	require.NoError(t, m.Watch(context.Background(), "insp-a", inspector()))
	require.NoError(t, m.Watch(context.Background(), "insp-a", &domain.Actor{}))
	assert.Equal(t, 0, bus.SubscriberCount("insp-a"))
}

func TestSubscriptionManagerKeepsHandleForSameEntity(t *testing.T) {
	m, bus, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Watch(ctx, "insp-a", inspector()))
	first, _ := m.Handle()
	require.NoError(t, m.Watch(ctx, "insp-a", inspector()))
	second, _ := m.Handle()

	assert.Equal(t, first, second)
	assert.Equal(t, 1, bus.SubscriberCount("insp-a"))
}

func TestSubscriptionManagerUsesFreshChannelPerMount(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Watch(ctx, "insp-a", inspector()))
	first, _ := m.Handle()
	m.Close()
	require.NoError(t, m.Watch(ctx, "insp-a", inspector()))
	second, _ := m.Handle()

	assert.NotEqual(t, first.Channel, second.Channel)
	assert.Contains(t, second.Channel, "change-history:insp-a:")
}

func TestSubscriptionManagerChangeEventSchedulesDelayedRefresh(t *testing.T) {
	m, bus, refresher := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Watch(ctx, "insp-a", inspector()))

	require.NoError(t, bus.Publish(ctx, events.Event{Type: events.EventChangeRecorded, EntityID: "insp-a"}))
	require.NoError(t, bus.Publish(ctx, events.Event{Type: events.EventChangeRecorded, EntityID: "insp-z"}))

	require.Eventually(t, func() bool {
		debounced, _ := refresher.counts()
		return debounced == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, refreshCall{delay: 1500 * time.Millisecond}, refresher.lastDebounced())
}

func TestSubscriptionManagerStatusTransitionRefreshesImmediately(t *testing.T) {
	m, bus, refresher := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Watch(ctx, "insp-a", inspector()))
	at := time.Date(2024, 6, 20, 15, 0, 0, 0, time.UTC)

	publish := func(status domain.InspectionStatus, updated time.Time) {
		require.NoError(t, bus.Publish(ctx, events.Event{
			Type:       events.EventInspectionUpdated,
			EntityID:   "insp-a",
			Inspection: &events.InspectionUpdatedPayload{OverallStatus: status, UpdatedAt: updated},
		}))
	}

	publish(domain.InspectionStatusInProgress, at)
	publish(domain.InspectionStatusPass, at.Add(time.Minute))
	require.Eventually(t, func() bool {
		_, immediate := refresher.counts()
		return immediate == 1
	}, time.Second, 5*time.Millisecond)
	debounced, _ := refresher.counts()
	assert.Equal(t, 0, debounced)

	publish(domain.InspectionStatusPass, at.Add(2*time.Minute))
	require.Eventually(t, func() bool {
		debounced, _ := refresher.counts()
		return debounced == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, refreshCall{delay: 300 * time.Millisecond, showRefreshing: true}, refresher.lastDebounced())
}

func TestSubscriptionManagerSubscribeFailure(t *testing.T) {
	m := NewSubscriptionManager(failingSubscriber{}, &fakeRefresher{}, nil, time.Second, nil, nil, nil)

	err := m.Watch(context.Background(), "insp-a", inspector())
	assert.Error(t, err)
	_, ok := m.Active()
	assert.False(t, ok)
}

func TestStatusTrackerTransitions(t *testing.T) {
	refresher := &fakeRefresher{}
	tracker := NewStatusTracker(refresher, 300*time.Millisecond)
	at := time.Date(2024, 6, 20, 15, 0, 0, 0, time.UTC)

	assert.Equal(t, TransitionSeeded, tracker.Observe(EntitySnapshot{EntityID: "a", OverallStatus: domain.InspectionStatusInProgress, UpdatedAt: at}))
	assert.Equal(t, TransitionNone, tracker.Observe(EntitySnapshot{EntityID: "a", OverallStatus: domain.InspectionStatusInProgress, UpdatedAt: at}))
	assert.Equal(t, TransitionStatusChanged, tracker.Observe(EntitySnapshot{EntityID: "a", OverallStatus: domain.InspectionStatusPass, UpdatedAt: at.Add(time.Second)}))
	assert.Equal(t, TransitionTouched, tracker.Observe(EntitySnapshot{EntityID: "a", OverallStatus: domain.InspectionStatusPass, UpdatedAt: at.Add(2 * time.Second)}))
	assert.Equal(t, TransitionSeeded, tracker.Observe(EntitySnapshot{EntityID: "b", OverallStatus: domain.InspectionStatusFail, UpdatedAt: at}))

	debounced, immediate := refresher.counts()
	assert.Equal(t, 1, debounced)
	assert.Equal(t, 1, immediate)

	tracker.Reset()
	_, seeded := tracker.Last()
	assert.False(t, seeded)
}
