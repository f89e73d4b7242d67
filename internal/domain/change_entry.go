package domain

import "time"

// ChangeType classifies a recorded mutation.
type ChangeType string

const (
	ChangeTypeCreate ChangeType = "create"
	ChangeTypeUpdate ChangeType = "update"
	ChangeTypeDelete ChangeType = "delete"
)

// Valid reports whether the change type is one of the known values.
func (c ChangeType) Valid() bool {
	switch c {
	case ChangeTypeCreate, ChangeTypeUpdate, ChangeTypeDelete:
		return true
	}
	return false
}

// Well-known field names with presentation rules.
const (
	FieldStatus        = "status"
	FieldComments      = "comments"
	FieldEvidenceFiles = "evidenceFiles"
	FieldEditSession   = "edit_session"
)

// UnknownUserName labels entries whose author could not be resolved.
const UnknownUserName = "Unknown User"

// ChangeEntry is an immutable audit trail entry for one field mutation.
type ChangeEntry struct {
	ID              string     `json:"id"`
	EntityID        string     `json:"entity_id"`
	ItemID          *string    `json:"item_id,omitempty"`
	ItemDescription *string    `json:"item_description,omitempty"`
	FieldName       string     `json:"field_name"`
	OldValue        *string    `json:"old_value"`
	NewValue        *string    `json:"new_value"`
	ChangeType      ChangeType `json:"change_type"`
	UserID          string     `json:"user_id"`
	UserName        string     `json:"user_name"`
	Timestamp       time.Time  `json:"timestamp"`
}

// ChangeRecord is a stored change as returned by the store, before
// normalization. UserName is nil when the author row is missing.
type ChangeRecord struct {
	ID              string
	EntityID        string
	ItemID          *string
	ItemDescription *string
	FieldName       string
	OldValue        *string
	NewValue        *string
	ChangeType      ChangeType
	UserID          string
	UserName        *string
	CreatedAt       time.Time
}

// ChangeInput is what gets submitted to the store for one change.
type ChangeInput struct {
	EntityID        string
	UserID          string
	FieldName       string
	OldValue        *string
	NewValue        *string
	ChangeType      ChangeType
	ItemID          *string
	ItemDescription *string
}
