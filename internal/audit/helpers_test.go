package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/inspection-audit/internal/config"
	"github.com/spec-kit/inspection-audit/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 20, 15, 4, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeStore behaves like the change table: recorded changes show up in the
// history, newest first.
type fakeStore struct {
	mu           sync.Mutex
	now          func() time.Time
	recorded     []domain.ChangeInput
	history      map[string][]domain.ChangeRecord
	recordErr    error
	historyErr   error
	recordGate   chan struct{}
	historyGate  chan struct{}
	historyCalls int
	users        map[string]string
}

func newFakeStore(now func() time.Time) *fakeStore {
	if now == nil {
		now = time.Now
	}
	return &fakeStore{
		now:     now,
		history: make(map[string][]domain.ChangeRecord),
		users:   map[string]string{"user-1": "Dana Inspector"},
	}
}

func (s *fakeStore) RecordChange(ctx context.Context, change domain.ChangeInput) error {
	s.mu.Lock()
	gate := s.recordGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, change)
	if s.recordErr != nil {
		return s.recordErr
	}
	rec := domain.ChangeRecord{
		ID:              fmt.Sprintf("chg-%d", len(s.recorded)),
		EntityID:        change.EntityID,
		ItemID:          change.ItemID,
		ItemDescription: change.ItemDescription,
		FieldName:       change.FieldName,
		OldValue:        change.OldValue,
		NewValue:        change.NewValue,
		ChangeType:      change.ChangeType,
		UserID:          change.UserID,
		CreatedAt:       s.now(),
	}
	if name, ok := s.users[change.UserID]; ok {
		rec.UserName = &name
	}
	s.history[change.EntityID] = append([]domain.ChangeRecord{rec}, s.history[change.EntityID]...)
	return nil
}

func (s *fakeStore) GetChangeHistory(ctx context.Context, entityID string) ([]domain.ChangeRecord, error) {
	s.mu.Lock()
	s.historyCalls++
	gate := s.historyGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	return append([]domain.ChangeRecord(nil), s.history[entityID]...), nil
}

func (s *fakeStore) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recorded)
}

func (s *fakeStore) lastRecorded() domain.ChangeInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorded[len(s.recorded)-1]
}

func (s *fakeStore) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyCalls
}

func (s *fakeStore) seed(entityID string, records ...domain.ChangeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[entityID] = append(s.history[entityID], records...)
}

func (s *fakeStore) gateHistory() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyGate = make(chan struct{})
	return s.historyGate
}

func (s *fakeStore) ungateHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyGate = nil
}

type refreshCall struct {
	delay          time.Duration
	showRefreshing bool
}

// fakeRefresher counts refresh requests by path.
type fakeRefresher struct {
	mu        sync.Mutex
	debounced []refreshCall
	immediate int
}

func (r *fakeRefresher) DebouncedRefresh(delay time.Duration, showRefreshing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debounced = append(r.debounced, refreshCall{delay: delay, showRefreshing: showRefreshing})
}

func (r *fakeRefresher) ImmediateRefresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.immediate++
}

func (r *fakeRefresher) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.debounced), r.immediate
}

func (r *fakeRefresher) lastDebounced() refreshCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.debounced[len(r.debounced)-1]
}

func testAuditConfig() config.AuditConfig {
	cfg := config.DefaultAuditConfig()
	cfg.RecordRefreshDelay = 20 * time.Millisecond
	cfg.RealtimeRefreshDelay = 20 * time.Millisecond
	cfg.StatusRefreshDelay = 10 * time.Millisecond
	return cfg
}

func inspector() *domain.Actor {
	return &domain.Actor{UserID: "user-1", UserName: "Dana Inspector"}
}

func str(s string) *string { return &s }
