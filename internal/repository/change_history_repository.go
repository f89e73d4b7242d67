package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/inspection-audit/internal/domain"
)

// ChangeHistoryRepository stores inspection change entries.
type ChangeHistoryRepository interface {
	Create(ctx context.Context, change domain.ChangeInput) (*domain.ChangeRecord, error)
	ListByEntity(ctx context.Context, entityID string) ([]domain.ChangeRecord, error)
}

type changeHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewChangeHistoryRepository builds a Postgres-backed repository.
func NewChangeHistoryRepository(pool *pgxpool.Pool) ChangeHistoryRepository {
	return &changeHistoryRepository{pool: pool}
}

func (r *changeHistoryRepository) Create(ctx context.Context, change domain.ChangeInput) (*domain.ChangeRecord, error) {
	const query = `
        INSERT INTO inspection_change_history
            (inspection_id, item_id, item_description, field_name, old_value, new_value, change_type, user_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`

	rec := domain.ChangeRecord{
		EntityID:        change.EntityID,
		ItemID:          change.ItemID,
		ItemDescription: change.ItemDescription,
		FieldName:       change.FieldName,
		OldValue:        change.OldValue,
		NewValue:        change.NewValue,
		ChangeType:      change.ChangeType,
		UserID:          change.UserID,
	}
	if err := r.pool.QueryRow(ctx, query,
		change.EntityID,
		change.ItemID,
		change.ItemDescription,
		change.FieldName,
		change.OldValue,
		change.NewValue,
		change.ChangeType,
		change.UserID,
	).Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *changeHistoryRepository) ListByEntity(ctx context.Context, entityID string) ([]domain.ChangeRecord, error) {
	const query = `
        SELECT h.id, h.inspection_id, h.item_id, h.item_description, h.field_name,
               h.old_value, h.new_value, h.change_type, h.user_id, u.name, h.created_at
        FROM inspection_change_history h
        LEFT JOIN users u ON u.id = h.user_id
        WHERE h.inspection_id=$1
        ORDER BY h.created_at DESC`
	rows, err := r.pool.Query(ctx, query, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.ChangeRecord, 0)
	for rows.Next() {
		var rec domain.ChangeRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.EntityID,
			&rec.ItemID,
			&rec.ItemDescription,
			&rec.FieldName,
			&rec.OldValue,
			&rec.NewValue,
			&rec.ChangeType,
			&rec.UserID,
			&rec.UserName,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}
