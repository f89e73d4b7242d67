package audit

import (
	"sync"
	"time"

	"github.com/spec-kit/inspection-audit/internal/domain"
)

// EntitySnapshot is the part of the audited entity the tracker watches.
type EntitySnapshot struct {
	EntityID      string
	OverallStatus domain.InspectionStatus
	UpdatedAt     time.Time
}

// Transition classifies what an observed snapshot changed.
type Transition string

const (
	TransitionSeeded        Transition = "seeded"
	TransitionStatusChanged Transition = "status_changed"
	TransitionTouched       Transition = "touched"
	TransitionNone          Transition = "none"
)

type statusRefresher interface {
	Refresher
	ImmediateRefresh()
}

// StatusTracker remembers the last seen status and update time of the
// displayed entity. A status transition refreshes immediately because the
// user is waiting on it; any other update is debounced.
type StatusTracker struct {
	refresher statusRefresher
	delay     time.Duration

	mu     sync.Mutex
	seeded bool
	last   EntitySnapshot
}

// NewStatusTracker builds a tracker; delay applies to non-status updates.
func NewStatusTracker(refresher statusRefresher, delay time.Duration) *StatusTracker {
	return &StatusTracker{refresher: refresher, delay: delay}
}

// Observe records snapshot and triggers the matching refresh.
func (t *StatusTracker) Observe(snapshot EntitySnapshot) Transition {
	t.mu.Lock()
	if !t.seeded || t.last.EntityID != snapshot.EntityID {
		t.seeded = true
		t.last = snapshot
		t.mu.Unlock()
		return TransitionSeeded
	}
	prev := t.last
	t.last = snapshot
	t.mu.Unlock()

	switch {
	case prev.OverallStatus != snapshot.OverallStatus:
		t.refresher.ImmediateRefresh()
		return TransitionStatusChanged
	case !prev.UpdatedAt.Equal(snapshot.UpdatedAt):
		t.refresher.DebouncedRefresh(t.delay, true)
		return TransitionTouched
	default:
		return TransitionNone
	}
}

// Last returns the last observed snapshot.
func (t *StatusTracker) Last() (EntitySnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.seeded
}

// Reset forgets the tracked entity.
func (t *StatusTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seeded = false
	t.last = EntitySnapshot{}
}
