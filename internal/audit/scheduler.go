package audit

import (
	"sync"
	"time"
)

// Scheduler runs keyed, cancellable delayed callbacks. Scheduling a key that
// is already pending replaces it, which makes every key a trailing-edge
// debounce.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*scheduledCall
	seq     uint64
	stopped bool
}

type scheduledCall struct {
	timer *time.Timer
	seq   uint64
}

// NewScheduler returns an idle scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*scheduledCall)}
}

// ScheduleAfter runs fn once delay has elapsed, replacing any call pending
// under the same key. It returns false once the scheduler is stopped.
func (s *Scheduler) ScheduleAfter(key string, delay time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if prev, ok := s.timers[key]; ok {
		prev.timer.Stop()
	}
	s.seq++
	seq := s.seq
	call := &scheduledCall{seq: seq}
	call.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		current, ok := s.timers[key]
		if !ok || current.seq != seq {
			s.mu.Unlock()
			return
		}
		delete(s.timers, key)
		s.mu.Unlock()
		fn()
	})
	s.timers[key] = call
	return true
}

// Cancel drops the pending call for key and reports whether one existed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	call, ok := s.timers[key]
	if !ok {
		return false
	}
	call.timer.Stop()
	delete(s.timers, key)
	return true
}

// Pending reports whether a call is scheduled for key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// Stop cancels every pending call and refuses new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, call := range s.timers {
		call.timer.Stop()
		delete(s.timers, key)
	}
	s.stopped = true
}
