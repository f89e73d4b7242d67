package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/inspection-audit/internal/domain"
)

// InspectionRepository reads and updates inspections.
type InspectionRepository interface {
	Create(ctx context.Context, insp *domain.Inspection) error
	GetByID(ctx context.Context, id string) (*domain.Inspection, error)
	UpdateStatus(ctx context.Context, id string, status domain.InspectionStatus) (*domain.Inspection, error)
}

type inspectionRepository struct {
	pool *pgxpool.Pool
}

// NewInspectionRepository returns a Postgres-backed implementation.
func NewInspectionRepository(pool *pgxpool.Pool) InspectionRepository {
	return &inspectionRepository{pool: pool}
}

func (r *inspectionRepository) Create(ctx context.Context, insp *domain.Inspection) error {
	const query = `
        INSERT INTO inspections (project_id, title, overall_status)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`

	if insp.OverallStatus == "" {
		insp.OverallStatus = domain.InspectionStatusNotStarted
	}
	return r.pool.QueryRow(ctx, query,
		insp.ProjectID,
		insp.Title,
		insp.OverallStatus,
	).Scan(&insp.ID, &insp.CreatedAt, &insp.UpdatedAt)
}

func (r *inspectionRepository) GetByID(ctx context.Context, id string) (*domain.Inspection, error) {
	const query = `
        SELECT id, project_id, title, overall_status, created_at, updated_at
        FROM inspections WHERE id=$1`

	var insp domain.Inspection
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&insp.ID,
		&insp.ProjectID,
		&insp.Title,
		&insp.OverallStatus,
		&insp.CreatedAt,
		&insp.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &insp, nil
}

func (r *inspectionRepository) UpdateStatus(ctx context.Context, id string, status domain.InspectionStatus) (*domain.Inspection, error) {
	const query = `
        UPDATE inspections SET overall_status=$1, updated_at=NOW()
        WHERE id=$2
        RETURNING id, project_id, title, overall_status, created_at, updated_at`

	var insp domain.Inspection
	if err := r.pool.QueryRow(ctx, query, status, id).Scan(
		&insp.ID,
		&insp.ProjectID,
		&insp.Title,
		&insp.OverallStatus,
		&insp.CreatedAt,
		&insp.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &insp, nil
}
