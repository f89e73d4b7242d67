package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/inspection-audit/internal/audit"
	"github.com/spec-kit/inspection-audit/internal/domain"
	"github.com/spec-kit/inspection-audit/internal/events"
	"github.com/spec-kit/inspection-audit/internal/repository"
	apperrors "github.com/spec-kit/inspection-audit/pkg/util/errorutil"
)

// InspectionService coordinates inspection edits and their audit trail.
type InspectionService struct {
	inspections repository.InspectionRepository
	store       audit.PersistenceClient
	recorder    *audit.Recorder
	publisher   events.Publisher
	logger      *zap.Logger
}

// InspectionDependencies bundles collaborators for the inspection service.
type InspectionDependencies struct {
	InspectionRepo repository.InspectionRepository
	Store          audit.PersistenceClient
	Recorder       *audit.Recorder
	Publisher      events.Publisher
	Logger         *zap.Logger
}

// StatusUpdate is the result of a status change request.
type StatusUpdate struct {
	Inspection *domain.Inspection
	Outcome    audit.Outcome
}

// NewInspectionService builds the service.
func NewInspectionService(deps InspectionDependencies) *InspectionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InspectionService{
		inspections: deps.InspectionRepo,
		store:       deps.Store,
		recorder:    deps.Recorder,
		publisher:   deps.Publisher,
		logger:      logger,
	}
}

// Get loads one inspection.
func (s *InspectionService) Get(ctx context.Context, id string) (*domain.Inspection, error) {
	insp, err := s.inspections.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("inspection", map[string]any{"id": id})
		}
		return nil, err
	}
	return insp, nil
}

// UpdateStatus sets the overall status, audits the transition and notifies
// subscribers. Setting the current status again changes nothing.
func (s *InspectionService) UpdateStatus(ctx context.Context, id string, status domain.InspectionStatus, actor *domain.Actor) (*StatusUpdate, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid overall_status", map[string]any{"overall_status": status})
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.OverallStatus == status {
		return &StatusUpdate{Inspection: current, Outcome: audit.OutcomeUnchanged}, nil
	}

	updated, err := s.inspections.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("inspection", map[string]any{"id": id})
		}
		return nil, err
	}

	oldValue, newValue := string(current.OverallStatus), string(updated.OverallStatus)
	outcome := s.recorder.Submit(ctx, audit.Change{
		EntityID:   id,
		Actor:      actor,
		FieldName:  domain.FieldStatus,
		OldValue:   &oldValue,
		NewValue:   &newValue,
		ChangeType: domain.ChangeTypeUpdate,
	})

	publishEvent(ctx, s.publisher, s.logger, events.Event{
		Type:      events.EventInspectionUpdated,
		Operation: events.OperationUpdate,
		EntityID:  id,
		Timestamp: updated.UpdatedAt,
		Inspection: &events.InspectionUpdatedPayload{
			OverallStatus: updated.OverallStatus,
			UpdatedAt:     updated.UpdatedAt,
		},
	})
	return &StatusUpdate{Inspection: updated, Outcome: outcome}, nil
}

// RecordChange audits one field edit on an existing inspection.
func (s *InspectionService) RecordChange(ctx context.Context, id string, change audit.Change) (audit.Outcome, error) {
	if change.FieldName == "" {
		return "", apperrors.NewValidationError("field_name is required", nil)
	}
	if change.ChangeType != "" && !change.ChangeType.Valid() {
		return "", apperrors.NewValidationError("invalid change_type", map[string]any{"change_type": change.ChangeType})
	}
	if _, err := s.Get(ctx, id); err != nil {
		return "", err
	}
	change.EntityID = id
	return s.recorder.Submit(ctx, change), nil
}

// History returns the normalized change feed of an inspection.
func (s *InspectionService) History(ctx context.Context, id string) ([]domain.ChangeEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	records, err := s.store.GetChangeHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	return audit.Normalize(records), nil
}
