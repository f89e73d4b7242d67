package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/inspection-audit/internal/domain"
)

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(_ context.Context, e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestDispatcherDeliversOnlyToEntity(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	ctx := context.Background()

	var a, b collector
	_, err := d.Subscribe(ctx, "ch-a", "insp-a", a.handle)
	require.NoError(t, err)
	_, err = d.Subscribe(ctx, "ch-b", "insp-b", b.handle)
	require.NoError(t, err)

	require.NoError(t, d.Publish(ctx, Event{Type: EventChangeRecorded, EntityID: "insp-a"}))
	require.NoError(t, d.Publish(ctx, Event{Type: EventChangeRecorded, EntityID: "insp-a"}))

	require.Eventually(t, func() bool { return a.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, b.count())
}

func TestDispatcherPreservesOrder(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	ctx := context.Background()

	var c collector
	_, err := d.Subscribe(ctx, "ch", "insp", c.handle)
	require.NoError(t, err)

	for _, status := range []domain.InspectionStatus{domain.InspectionStatusInProgress, domain.InspectionStatusPass, domain.InspectionStatusFail} {
		require.NoError(t, d.Publish(ctx, Event{
			Type:       EventInspectionUpdated,
			EntityID:   "insp",
			Inspection: &InspectionUpdatedPayload{OverallStatus: status},
		}))
	}

	require.Eventually(t, func() bool { return c.count() == 3 }, time.Second, 5*time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, domain.InspectionStatusInProgress, c.events[0].Inspection.OverallStatus)
	assert.Equal(t, domain.InspectionStatusFail, c.events[2].Inspection.OverallStatus)
}

func TestDispatcherUnsubscribe(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	ctx := context.Background()

	var c collector
	h, err := d.Subscribe(ctx, "ch", "insp", c.handle)
	require.NoError(t, err)
	assert.Equal(t, 1, d.SubscriberCount("insp"))

	require.NoError(t, d.Unsubscribe(h))
	assert.Equal(t, 0, d.SubscriberCount("insp"))
	assert.ErrorIs(t, d.Unsubscribe(h), ErrUnknownChannel)

	require.NoError(t, d.Publish(ctx, Event{Type: EventChangeRecorded, EntityID: "insp"}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, c.count())
}

func TestDispatcherRejectsDuplicateChannel(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	ctx := context.Background()
	noop := func(context.Context, Event) {}

	_, err := d.Subscribe(ctx, "ch", "insp", noop)
	require.NoError(t, err)
	_, err = d.Subscribe(ctx, "ch", "other", noop)
	assert.ErrorIs(t, err, ErrChannelExists)
	_, err = d.Subscribe(ctx, "", "insp", noop)
	assert.ErrorIs(t, err, ErrInvalidSubscription)
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	ctx := context.Background()

	release := make(chan struct{})
	var once sync.Once
	_, err := d.Subscribe(ctx, "ch", "insp", func(context.Context, Event) {
		once.Do(func() { <-release })
	})
	require.NoError(t, err)

	var dropped int
	var mu sync.Mutex
	d.OnDropped(func(Event) {
		mu.Lock()
		dropped++
		mu.Unlock()
	})

	for i := 0; i < subscriptionBuffer+10; i++ {
		require.NoError(t, d.Publish(ctx, Event{EntityID: "insp"}))
	}
	close(release)

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, dropped, 9)
}

func TestEventCodecRoundTripsInspectionPayload(t *testing.T) {
	at := time.Date(2024, 6, 20, 15, 4, 0, 0, time.UTC)
	payload, err := EncodeEvent(Event{
		Type:       EventInspectionUpdated,
		EntityID:   "insp",
		Inspection: &InspectionUpdatedPayload{OverallStatus: domain.InspectionStatusPass, UpdatedAt: at},
	})
	require.NoError(t, err)

	decoded, err := DecodeEvent(payload)
	require.NoError(t, err)
	require.NotNil(t, decoded.Inspection)
	assert.Equal(t, domain.InspectionStatusPass, decoded.Inspection.OverallStatus)
	assert.True(t, at.Equal(decoded.Inspection.UpdatedAt))

	_, err = DecodeEvent([]byte(`{"type":"change_recorded"}`))
	assert.Error(t, err)
	assert.Equal(t, "inspection-audit:entity:insp", Topic("insp"))
}
