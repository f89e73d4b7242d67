package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/inspection-audit/internal/audit"
	"github.com/spec-kit/inspection-audit/internal/domain"
	"github.com/spec-kit/inspection-audit/internal/events"
	"github.com/spec-kit/inspection-audit/internal/repository"
)

// ChangeStore persists change entries and announces each insert to
// subscribers of the inspection.
type ChangeStore struct {
	history   repository.ChangeHistoryRepository
	publisher events.Publisher
	logger    *zap.Logger
}

// NewChangeStore builds the store.
func NewChangeStore(history repository.ChangeHistoryRepository, publisher events.Publisher, logger *zap.Logger) *ChangeStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChangeStore{history: history, publisher: publisher, logger: logger}
}

func (s *ChangeStore) RecordChange(ctx context.Context, change domain.ChangeInput) error {
	rec, err := s.history.Create(ctx, change)
	if err != nil {
		return err
	}
	publishEvent(ctx, s.publisher, s.logger, events.Event{
		Type:      events.EventChangeRecorded,
		Operation: events.OperationInsert,
		EntityID:  rec.EntityID,
		Timestamp: rec.CreatedAt,
		Change: &events.ChangeRecordedPayload{
			ChangeID:  rec.ID,
			FieldName: rec.FieldName,
			ItemID:    rec.ItemID,
			Type:      rec.ChangeType,
		},
	})
	return nil
}

func (s *ChangeStore) GetChangeHistory(ctx context.Context, entityID string) ([]domain.ChangeRecord, error) {
	return s.history.ListByEntity(ctx, entityID)
}

var _ audit.PersistenceClient = (*ChangeStore)(nil)
