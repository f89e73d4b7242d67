package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/inspection-audit/internal/config"
	"github.com/spec-kit/inspection-audit/internal/domain"
	"github.com/spec-kit/inspection-audit/internal/events"
)

// SessionDependencies bundles collaborators for a Session.
type SessionDependencies struct {
	Store    PersistenceClient
	Bus      events.Subscriber
	Recorder *Recorder
	Logger   *zap.Logger
	Metrics  Metrics
	Now      func() time.Time
}

// Session is one consumer of an entity's change history: it owns the feed
// state, its refresh coordinator and its live subscription, and records
// edits through a recorder bound to that coordinator.
type Session struct {
	id       string
	fetcher  *Fetcher
	coord    *Coordinator
	tracker  *StatusTracker
	subs     *SubscriptionManager
	recorder *Recorder
	logger   *zap.Logger

	mu       sync.Mutex
	entityID string
	actor    *domain.Actor
	closed   bool
}

// NewSession wires a session. A recorder is created when deps has none.
func NewSession(cfg config.AuditConfig, deps SessionDependencies) *Session {
	id := uuid.NewString()
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session_id", id))

	s := &Session{id: id, logger: logger}
	s.fetcher = NewFetcher(deps.Store, cfg.SameEntityWindow, logger, deps.Metrics, deps.Now)
	s.coord = NewCoordinator(s.refresh, cfg.RecordRefreshDelay, logger, deps.Metrics)
	s.tracker = NewStatusTracker(s.coord, cfg.StatusRefreshDelay)
	s.subs = NewSubscriptionManager(deps.Bus, s.coord, s.tracker, cfg.RealtimeRefreshDelay, logger, deps.Metrics, deps.Now)

	recorder := deps.Recorder
	if recorder == nil {
		recorder = NewRecorder(cfg, RecorderDependencies{
			Store:   deps.Store,
			Logger:  deps.Logger,
			Metrics: deps.Metrics,
			Now:     deps.Now,
		})
	}
	s.recorder = recorder.WithRefresher(s.coord)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// EntityID returns the watched entity.
func (s *Session) EntityID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entityID
}

// Open points the session at entityID for actor: previous state and
// subscription are dropped, the new subscription is opened and the feed is
// loaded. Re-opening the watched entity is a no-op.
func (s *Session) Open(ctx context.Context, entityID string, actor *domain.Actor) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if entityID == s.entityID && entityID != "" {
		s.actor = actor
		s.mu.Unlock()
		return nil
	}
	s.entityID = entityID
	s.actor = actor
	s.mu.Unlock()

	s.coord.Cleanup()
	s.fetcher.Reset()
	s.tracker.Reset()

	err := s.subs.Watch(ctx, entityID, actor)
	s.fetcher.Fetch(ctx, entityID, FetchOptions{})
	return err
}

// SeedEntity hands the tracker the entity as loaded, so later updates can
// be compared against it.
func (s *Session) SeedEntity(snapshot EntitySnapshot) Transition {
	return s.tracker.Observe(snapshot)
}

// Record audits a change on the watched entity in the background. Entity
// and actor default to the session's.
func (s *Session) Record(ctx context.Context, change Change) {
	s.recorder.Record(ctx, s.fill(change))
}

// Submit audits a change synchronously.
func (s *Session) Submit(ctx context.Context, change Change) Outcome {
	return s.recorder.Submit(ctx, s.fill(change))
}

// Refresh forces a reload, as offered to the user after a fetch error.
func (s *Session) Refresh(ctx context.Context) FetchResult {
	return s.fetcher.Fetch(ctx, s.EntityID(), FetchOptions{Force: true, ShowRefreshing: true})
}

// State returns the current feed state.
func (s *Session) State() FetchState {
	return s.fetcher.State()
}

// Observe registers fn for feed state changes.
func (s *Session) Observe(fn func(FetchState)) func() {
	return s.fetcher.Observe(fn)
}

// Close cancels pending refreshes, drops the subscription and clears state.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.coord.Cleanup()
	s.coord.scheduler.Stop()
	s.subs.Close()
	s.fetcher.Reset()
	s.tracker.Reset()
}

// refresh forces only immediate refreshes. Debounced ones stay subject to
// the same-entity window.
func (s *Session) refresh(ctx context.Context, mode RefreshMode, showRefreshing bool) {
	entityID := s.EntityID()
	if entityID == "" {
		return
	}
	s.fetcher.Fetch(ctx, entityID, FetchOptions{
		Force:          mode == RefreshImmediate,
		ShowRefreshing: showRefreshing,
	})
}

func (s *Session) fill(change Change) Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	if change.EntityID == "" {
		change.EntityID = s.entityID
	}
	if change.Actor == nil {
		change.Actor = s.actor
	}
	return change
}
