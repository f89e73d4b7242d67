package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/inspection-audit/internal/config"
	"github.com/spec-kit/inspection-audit/internal/domain"
)

// PersistenceClient is the store the engine records to and reads from.
type PersistenceClient interface {
	RecordChange(ctx context.Context, change domain.ChangeInput) error
	GetChangeHistory(ctx context.Context, entityID string) ([]domain.ChangeRecord, error)
}

// Refresher schedules a feed refresh after a successful submission.
type Refresher interface {
	DebouncedRefresh(delay time.Duration, showRefreshing bool)
}

// Outcome reports what happened to one submission.
type Outcome string

const (
	OutcomeRecorded   Outcome = "recorded"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeUnchanged  Outcome = "unchanged"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeInFlight   Outcome = "in_flight"
	OutcomeFailed     Outcome = "failed"
)

// Change is one field edit submitted for auditing.
type Change struct {
	EntityID        string
	Actor           *domain.Actor
	FieldName       string
	OldValue        *string
	NewValue        *string
	ChangeType      domain.ChangeType
	ItemID          *string
	ItemDescription *string
}

// RecorderDependencies bundles collaborators for the recorder. Window and
// Pending are shared by every recorder of the process when provided.
type RecorderDependencies struct {
	Store   PersistenceClient
	Window  *DedupWindow
	Pending *PendingSet
	Logger  *zap.Logger
	Metrics Metrics
	Now     func() time.Time
}

// Recorder submits field changes to the store. Auditing never blocks or
// fails the mutation it accompanies, so every failure is logged and
// reported as an Outcome instead of an error.
type Recorder struct {
	store        PersistenceClient
	window       *DedupWindow
	pending      *PendingSet
	formatter    *Formatter
	refresher    Refresher
	refreshDelay time.Duration
	logger       *zap.Logger
	metrics      Metrics
	now          func() time.Time
	inflight     *sync.WaitGroup
}

// NewRecorder builds a recorder from the audit tunables.
func NewRecorder(cfg config.AuditConfig, deps RecorderDependencies) *Recorder {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	window := deps.Window
	if window == nil {
		window = NewDedupWindow(cfg.DedupWindow, cfg.DedupMaxEntries, cfg.DedupKeepEntries, now)
	}
	pending := deps.Pending
	if pending == nil {
		pending = NewPendingSet()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var metrics Metrics = nopMetrics{}
	if deps.Metrics != nil {
		metrics = deps.Metrics
	}
	return &Recorder{
		store:        deps.Store,
		window:       window,
		pending:      pending,
		formatter:    NewFormatter(now, cfg.Location()),
		refreshDelay: cfg.RecordRefreshDelay,
		logger:       logger,
		metrics:      metrics,
		now:          now,
		inflight:     &sync.WaitGroup{},
	}
}

// WithRefresher returns a recorder sharing this one's dedup state that asks
// refresher for a debounced refresh after each recorded change.
func (r *Recorder) WithRefresher(refresher Refresher) *Recorder {
	clone := *r
	clone.refresher = refresher
	return &clone
}

// Window exposes the dedup window.
func (r *Recorder) Window() *DedupWindow { return r.window }

// Pending exposes the in-flight fingerprints.
func (r *Recorder) Pending() *PendingSet { return r.pending }

// Record submits change in the background and returns immediately.
func (r *Recorder) Record(ctx context.Context, change Change) {
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		r.Submit(context.WithoutCancel(ctx), change)
	}()
}

// Wait blocks until every background submission has settled.
func (r *Recorder) Wait() {
	r.inflight.Wait()
}

// Submit records change synchronously.
func (r *Recorder) Submit(ctx context.Context, change Change) Outcome {
	outcome := r.submit(ctx, change)
	r.metrics.RecordOutcome(outcome)
	return outcome
}

func (r *Recorder) submit(ctx context.Context, change Change) Outcome {
	if !change.Actor.Valid() || change.EntityID == "" {
		r.logger.Debug("change skipped: missing actor or entity",
			zap.String("entity_id", change.EntityID),
			zap.String("field", change.FieldName))
		return OutcomeSkipped
	}
	if equalValues(change.OldValue, change.NewValue) {
		return OutcomeUnchanged
	}

	changeType := change.ChangeType
	if changeType == "" {
		changeType = domain.ChangeTypeUpdate
	}
	if !changeType.Valid() {
		r.logger.Warn("change skipped: unknown change type",
			zap.String("entity_id", change.EntityID),
			zap.String("change_type", string(changeType)))
		return OutcomeSkipped
	}

	key := NewChangeKey(change.ItemID, change.FieldName, change.OldValue, change.NewValue)
	fingerprint := key.String()
	if r.window.ShouldSuppress(fingerprint) {
		r.logger.Debug("change suppressed: recently recorded",
			zap.String("entity_id", change.EntityID),
			zap.String("fingerprint", key.Digest()))
		return OutcomeSuppressed
	}
	if !r.pending.TryAdd(fingerprint) {
		r.logger.Debug("change suppressed: already in flight",
			zap.String("entity_id", change.EntityID),
			zap.String("fingerprint", key.Digest()))
		return OutcomeInFlight
	}
	defer r.pending.Remove(fingerprint)
	// A submission that settled between the two checks above has already
	// recorded into the window.
	if r.window.ShouldSuppress(fingerprint) {
		return OutcomeSuppressed
	}

	oldValue, newValue := r.formatter.Format(change.FieldName, change.OldValue, change.NewValue)
	err := r.store.RecordChange(ctx, domain.ChangeInput{
		EntityID:        change.EntityID,
		UserID:          change.Actor.UserID,
		FieldName:       change.FieldName,
		OldValue:        oldValue,
		NewValue:        newValue,
		ChangeType:      changeType,
		ItemID:          change.ItemID,
		ItemDescription: change.ItemDescription,
	})
	if err != nil {
		r.logger.Warn("failed to record change",
			zap.String("entity_id", change.EntityID),
			zap.String("field", change.FieldName),
			zap.String("fingerprint", key.Digest()),
			zap.Error(err))
		return OutcomeFailed
	}

	r.window.Record(fingerprint, r.now())
	if r.refresher != nil {
		r.refresher.DebouncedRefresh(r.refreshDelay, false)
	}
	return OutcomeRecorded
}
