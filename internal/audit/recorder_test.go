package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/inspection-audit/internal/domain"
)

func newTestRecorder(t *testing.T) (*Recorder, *fakeStore, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	store := newFakeStore(clock.Now)
	r := NewRecorder(testAuditConfig(), RecorderDependencies{Store: store, Now: clock.Now})
	return r, store, clock
}

func TestRecorderSkipsUnchangedValues(t *testing.T) {
	r, store, _ := newTestRecorder(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		field string
		old   *string
		new   *string
	}{
		{name: "both nil", field: "comments", old: nil, new: nil},
		{name: "same text", field: "comments", old: str("ok"), new: str("ok")},
		{name: "same status", field: "status", old: str("pass"), new: str("pass")},
		{name: "same files", field: "evidenceFiles", old: str(`["a.jpg"]`), new: str(`["a.jpg"]`)},
		{name: "empty strings", field: "edit_session", old: str(""), new: str("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := r.Submit(ctx, Change{EntityID: "insp-1", Actor: inspector(), FieldName: tt.field, OldValue: tt.old, NewValue: tt.new})
			assert.Equal(t, OutcomeUnchanged, outcome)
		})
	}
	assert.Equal(t, 0, store.recordCount())
}

func TestRecorderSkipsWithoutActorOrEntity(t *testing.T) {
	r, store, _ := newTestRecorder(t)
	ctx := context.Background()

	assert.Equal(t, OutcomeSkipped, r.Submit(ctx, Change{EntityID: "insp-1", FieldName: "comments", NewValue: str("x")}))
	assert.Equal(t, OutcomeSkipped, r.Submit(ctx, Change{EntityID: "insp-1", Actor: &domain.Actor{}, FieldName: "comments", NewValue: str("x")}))
	assert.Equal(t, OutcomeSkipped, r.Submit(ctx, Change{Actor: inspector(), FieldName: "comments", NewValue: str("x")}))
	assert.Equal(t, OutcomeSkipped, r.Submit(ctx, Change{EntityID: "insp-1", Actor: inspector(), FieldName: "comments", NewValue: str("x"), ChangeType: "rename"}))
	assert.Equal(t, 0, store.recordCount())
}

func TestRecorderSuppressesDuplicateWithinWindow(t *testing.T) {
	r, store, clock := newTestRecorder(t)
	ctx := context.Background()
	change := Change{EntityID: "insp-1", Actor: inspector(), FieldName: "comments", OldValue: str("a"), NewValue: str("b")}

	assert.Equal(t, OutcomeRecorded, r.Submit(ctx, change))
	clock.Advance(4 * time.Second)
	assert.Equal(t, OutcomeSuppressed, r.Submit(ctx, change))
	assert.Equal(t, 1, store.recordCount())

	clock.Advance(time.Second)
	assert.Equal(t, OutcomeRecorded, r.Submit(ctx, change))
	assert.Equal(t, 2, store.recordCount())
}

func TestRecorderSuppressesConcurrentDuplicates(t *testing.T) {
	r, store, _ := newTestRecorder(t)
	gate := make(chan struct{})
	store.recordGate = gate
	change := Change{EntityID: "insp-1", Actor: inspector(), FieldName: "comments", OldValue: str("a"), NewValue: str("b")}

	r.Record(context.Background(), change)
	require.Eventually(t, func() bool { return r.Pending().Len() == 1 }, time.Second, time.Millisecond)

	assert.Equal(t, OutcomeInFlight, r.Submit(context.Background(), change))

	close(gate)
	r.Wait()
	assert.Equal(t, 1, store.recordCount())
	assert.Equal(t, 0, r.Pending().Len())
}

func TestRecorderBurstResultsInOneSubmission(t *testing.T) {
	r, store, _ := newTestRecorder(t)
	change := Change{EntityID: "insp-1", Actor: inspector(), ItemID: str("item-7"), FieldName: "comments", OldValue: str("a"), NewValue: str("b")}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Submit(context.Background(), change)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, store.recordCount())
}

func TestRecorderClearsPendingAfterFailure(t *testing.T) {
	r, store, _ := newTestRecorder(t)
	store.recordErr = errors.New("backend unavailable")
	change := Change{EntityID: "insp-1", Actor: inspector(), FieldName: "comments", OldValue: str("a"), NewValue: str("b")}

	assert.Equal(t, OutcomeFailed, r.Submit(context.Background(), change))
	assert.False(t, r.Pending().Contains(Fingerprint(nil, "comments", str("a"), str("b"))))

	store.mu.Lock()
	store.recordErr = nil
	store.mu.Unlock()
	assert.Equal(t, OutcomeRecorded, r.Submit(context.Background(), change))
}

func TestRecorderClearsPendingAfterSuccess(t *testing.T) {
	r, _, _ := newTestRecorder(t)
	r.Record(context.Background(), Change{EntityID: "insp-1", Actor: inspector(), FieldName: "comments", NewValue: str("b")})
	r.Wait()
	assert.Equal(t, 0, r.Pending().Len())
}

func TestRecorderSchedulesRefreshOnSuccessOnly(t *testing.T) {
	base, store, _ := newTestRecorder(t)
	refresher := &fakeRefresher{}
	r := base.WithRefresher(refresher)

	r.Submit(context.Background(), Change{EntityID: "insp-1", Actor: inspector(), FieldName: "comments", NewValue: str("b")})
	debounced, immediate := refresher.counts()
	assert.Equal(t, 1, debounced)
	assert.Equal(t, 0, immediate)
	assert.Equal(t, refreshCall{delay: 20 * time.Millisecond}, refresher.lastDebounced())

	store.recordErr = errors.New("nope")
	r.Submit(context.Background(), Change{EntityID: "insp-1", Actor: inspector(), FieldName: "comments", NewValue: str("c")})
	debounced, _ = refresher.counts()
	assert.Equal(t, 1, debounced)

	assert.Same(t, base.Window(), r.Window())
	assert.Same(t, base.Pending(), r.Pending())
}

func TestRecorderStatusChangeScenario(t *testing.T) {
	r, store, _ := newTestRecorder(t)
	ctx := context.Background()

	outcome := r.Submit(ctx, Change{
		EntityID:  "insp-1",
		Actor:     inspector(),
		FieldName: "status",
		OldValue:  str("incomplete-in-progress"),
		NewValue:  str("pass"),
	})
	require.Equal(t, OutcomeRecorded, outcome)
	require.Equal(t, 1, store.recordCount())

	submitted := store.lastRecorded()
	assert.Equal(t, "pass (6/20/2024, 3:04:00 PM)", *submitted.NewValue)
	assert.Equal(t, "incomplete-in-progress", *submitted.OldValue)
	assert.Equal(t, domain.ChangeTypeUpdate, submitted.ChangeType)

	f := NewFetcher(store, 2*time.Second, nil, nil, nil)
	require.Equal(t, FetchLoaded, f.Fetch(ctx, "insp-1", FetchOptions{}))
	entries := f.State().Entries
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ChangeTypeUpdate, entries[0].ChangeType)
	assert.Equal(t, "Dana Inspector", entries[0].UserName)
}

func TestRecorderEvidenceFilesScenario(t *testing.T) {
	r, store, _ := newTestRecorder(t)

	outcome := r.Submit(context.Background(), Change{
		EntityID:        "insp-1",
		Actor:           inspector(),
		ItemID:          str("item-3"),
		ItemDescription: str("Fire stopping at riser"),
		FieldName:       "evidenceFiles",
		OldValue:        str("[]"),
		NewValue:        str(`[{"name":"photo.jpg","url":"https://cdn.example.com/photo.jpg"}]`),
	})
	require.Equal(t, OutcomeRecorded, outcome)

	submitted := store.lastRecorded()
	assert.Nil(t, submitted.OldValue)
	assert.Equal(t, "Added file: photo.jpg", *submitted.NewValue)
	assert.Equal(t, "Fire stopping at riser", *submitted.ItemDescription)
}

func TestRecorderDedupesOnRawValues(t *testing.T) {
	r, store, clock := newTestRecorder(t)
	change := Change{EntityID: "insp-1", Actor: inspector(), FieldName: "status", OldValue: str("fail"), NewValue: str("pass")}

	assert.Equal(t, OutcomeRecorded, r.Submit(context.Background(), change))
	clock.Advance(time.Second)
	assert.Equal(t, OutcomeSuppressed, r.Submit(context.Background(), change))
	assert.Equal(t, 1, store.recordCount())
}
