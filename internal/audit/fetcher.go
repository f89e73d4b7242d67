package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/inspection-audit/internal/domain"
)

// FetchState is the observable state of one entity's change feed.
type FetchState struct {
	Entries      []domain.ChangeEntry `json:"entries"`
	Loading      bool                 `json:"loading"`
	Refreshing   bool                 `json:"refreshing"`
	Error        string               `json:"error,omitempty"`
	LastEntityID string               `json:"entity_id"`
	LastFetchAt  time.Time            `json:"last_fetch_at"`
}

// FetchOptions tunes a single fetch.
type FetchOptions struct {
	// Force bypasses the same-entity throttle.
	Force bool
	// ShowRefreshing flags the fetch as a background refresh instead of a
	// full load.
	ShowRefreshing bool
}

// FetchResult reports what a Fetch call did.
type FetchResult string

const (
	FetchLoaded          FetchResult = "loaded"
	FetchFailed          FetchResult = "failed"
	FetchCleared         FetchResult = "cleared"
	FetchSkippedInFlight FetchResult = "skipped_in_flight"
	FetchSkippedRecent   FetchResult = "skipped_recent"
	FetchStale           FetchResult = "stale"
)

type fetchPhase int

const (
	phaseIdle fetchPhase = iota
	phaseFetching
	phaseRefreshing
)

// Fetcher loads the change feed for one entity at a time. At most one fetch
// is tracked at once; switching entities starts a new generation and any
// response belonging to an older generation is discarded.
type Fetcher struct {
	store       PersistenceClient
	sameEntity  time.Duration
	logger      *zap.Logger
	metrics     Metrics
	now         func() time.Time
	mu          sync.Mutex
	phase       fetchPhase
	generation  uint64
	state       FetchState
	observers   map[uint64]func(FetchState)
	nextObserve uint64
}

// NewFetcher builds a fetcher. sameEntity is the minimum spacing between
// unforced fetches of the same entity.
func NewFetcher(store PersistenceClient, sameEntity time.Duration, logger *zap.Logger, metrics Metrics, now func() time.Time) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if now == nil {
		now = time.Now
	}
	return &Fetcher{
		store:      store,
		sameEntity: sameEntity,
		logger:     logger,
		metrics:    metrics,
		now:        now,
		observers:  make(map[uint64]func(FetchState)),
	}
}

// Observe registers fn to receive every state change. The returned func
// removes the observer.
func (f *Fetcher) Observe(fn func(FetchState)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextObserve++
	id := f.nextObserve
	f.observers[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.observers, id)
	}
}

// State returns a copy of the current state.
func (f *Fetcher) State() FetchState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Reset drops all state and detaches any in-flight fetch, whose result will
// be discarded when it arrives.
func (f *Fetcher) Reset() {
	f.mu.Lock()
	f.generation++
	f.phase = phaseIdle
	f.state = FetchState{}
	snapshot, observers := f.snapshotLocked(), f.observersLocked()
	f.mu.Unlock()
	notify(observers, snapshot)
}

// Fetch loads the feed for entityID and replaces the entries wholesale.
func (f *Fetcher) Fetch(ctx context.Context, entityID string, opts FetchOptions) FetchResult {
	result := f.fetch(ctx, entityID, opts)
	f.metrics.RecordFetch(result)
	return result
}

func (f *Fetcher) fetch(ctx context.Context, entityID string, opts FetchOptions) FetchResult {
	if entityID == "" {
		f.Reset()
		return FetchCleared
	}

	f.mu.Lock()
	if entityID != f.state.LastEntityID {
		// A new entity supersedes whatever the previous one was doing.
		f.generation++
		f.phase = phaseIdle
		f.state = FetchState{}
	}
	if f.phase != phaseIdle {
		f.mu.Unlock()
		f.logger.Debug("fetch skipped: already in progress", zap.String("entity_id", entityID))
		return FetchSkippedInFlight
	}
	now := f.now()
	if !opts.Force && !f.state.LastFetchAt.IsZero() && now.Sub(f.state.LastFetchAt) < f.sameEntity {
		f.mu.Unlock()
		f.logger.Debug("fetch skipped: fetched recently", zap.String("entity_id", entityID))
		return FetchSkippedRecent
	}

	generation := f.generation
	if opts.ShowRefreshing {
		f.phase = phaseRefreshing
		f.state.Refreshing = true
	} else {
		f.phase = phaseFetching
		f.state.Loading = true
	}
	f.state.LastEntityID = entityID
	f.state.LastFetchAt = now
	snapshot, observers := f.snapshotLocked(), f.observersLocked()
	f.mu.Unlock()
	notify(observers, snapshot)

	settled := false
	defer func() {
		if settled {
			return
		}
		// The store panicked; release the in-flight guard before unwinding.
		f.mu.Lock()
		if f.generation == generation {
			f.phase = phaseIdle
			f.state.Loading = false
			f.state.Refreshing = false
		}
		f.mu.Unlock()
	}()

	records, err := f.store.GetChangeHistory(ctx, entityID)
	settled = true

	f.mu.Lock()
	if f.generation != generation {
		f.mu.Unlock()
		f.logger.Debug("discarding stale change history", zap.String("entity_id", entityID))
		return FetchStale
	}
	f.phase = phaseIdle
	f.state.Loading = false
	f.state.Refreshing = false
	result := FetchLoaded
	if err != nil {
		f.state.Entries = nil
		f.state.Error = err.Error()
		result = FetchFailed
	} else {
		f.state.Entries = Normalize(records)
		f.state.Error = ""
	}
	snapshot, observers = f.snapshotLocked(), f.observersLocked()
	f.mu.Unlock()

	if err != nil {
		f.logger.Warn("failed to fetch change history", zap.String("entity_id", entityID), zap.Error(err))
	}
	notify(observers, snapshot)
	return result
}

func (f *Fetcher) snapshotLocked() FetchState {
	snapshot := f.state
	if f.state.Entries != nil {
		snapshot.Entries = append([]domain.ChangeEntry(nil), f.state.Entries...)
	}
	return snapshot
}

func (f *Fetcher) observersLocked() []func(FetchState) {
	out := make([]func(FetchState), 0, len(f.observers))
	for _, fn := range f.observers {
		out = append(out, fn)
	}
	return out
}

func notify(observers []func(FetchState), state FetchState) {
	for _, fn := range observers {
		fn(state)
	}
}

// Normalize converts stored records into display entries, keeping the
// store's order.
func Normalize(records []domain.ChangeRecord) []domain.ChangeEntry {
	entries := make([]domain.ChangeEntry, 0, len(records))
	for _, rec := range records {
		userName := domain.UnknownUserName
		if rec.UserName != nil && *rec.UserName != "" {
			userName = *rec.UserName
		}
		changeType := rec.ChangeType
		if changeType == "" {
			changeType = domain.ChangeTypeUpdate
		}
		entries = append(entries, domain.ChangeEntry{
			ID:              rec.ID,
			EntityID:        rec.EntityID,
			ItemID:          rec.ItemID,
			ItemDescription: rec.ItemDescription,
			FieldName:       rec.FieldName,
			OldValue:        rec.OldValue,
			NewValue:        rec.NewValue,
			ChangeType:      changeType,
			UserID:          rec.UserID,
			UserName:        userName,
			Timestamp:       rec.CreatedAt,
		})
	}
	return entries
}
