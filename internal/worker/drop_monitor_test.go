package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/inspection-audit/internal/events"
)

type countingDrops struct{ n atomic.Int64 }

func (c *countingDrops) RecordDropped() { c.n.Add(1) }

func TestDropMonitorCountsDroppedEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	drops := &countingDrops{}
	StartDropMonitor(dispatcher, drops, nil)

	var once sync.Once
	release := make(chan struct{})
	started := make(chan struct{})
	handle, err := dispatcher.Subscribe(context.Background(), "chan-1", "insp-1", func(context.Context, events.Event) {
		once.Do(func() { close(started) })
		<-release
	})
	require.NoError(t, err)
	defer func() {
		close(release)
		_ = dispatcher.Unsubscribe(handle)
	}()

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{EntityID: "insp-1"}))
	<-started
	// One event is held by the blocked handler; 64 fill the queue.
	for i := 0; i < 64+3; i++ {
		require.NoError(t, dispatcher.Publish(ctx, events.Event{EntityID: "insp-1"}))
	}

	assert.Equal(t, int64(3), drops.n.Load())
}

func TestDropMonitorIgnoresNilDispatcher(t *testing.T) {
	assert.NotPanics(t, func() { StartDropMonitor(nil, nil, nil) })
}
