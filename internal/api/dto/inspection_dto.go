package dto

import (
	"time"

	"github.com/spec-kit/inspection-audit/internal/domain"
)

// InspectionResponse is the public view of an inspection.
type InspectionResponse struct {
	ID            string                  `json:"id"`
	ProjectID     string                  `json:"project_id"`
	Title         string                  `json:"title"`
	OverallStatus domain.InspectionStatus `json:"overall_status"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// NewInspectionResponse maps the domain model.
func NewInspectionResponse(insp *domain.Inspection) InspectionResponse {
	return InspectionResponse{
		ID:            insp.ID,
		ProjectID:     insp.ProjectID,
		Title:         insp.Title,
		OverallStatus: insp.OverallStatus,
		CreatedAt:     insp.CreatedAt,
		UpdatedAt:     insp.UpdatedAt,
	}
}

// UpdateStatusRequest changes the overall status.
type UpdateStatusRequest struct {
	OverallStatus domain.InspectionStatus `json:"overall_status"`
}

// RecordChangeRequest submits one field edit for auditing.
type RecordChangeRequest struct {
	FieldName       string            `json:"field_name"`
	OldValue        *string           `json:"old_value"`
	NewValue        *string           `json:"new_value"`
	ChangeType      domain.ChangeType `json:"change_type"`
	ItemID          *string           `json:"item_id"`
	ItemDescription *string           `json:"item_description"`
}

// OutcomeResponse reports what the recorder did with a submission.
type OutcomeResponse struct {
	Outcome string `json:"outcome"`
}
