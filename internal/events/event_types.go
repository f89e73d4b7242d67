package events

import (
	"context"
	"time"

	"github.com/spec-kit/inspection-audit/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	// EventChangeRecorded fires when a row lands in the change-history table.
	EventChangeRecorded EventType = "change_recorded"
	// EventInspectionUpdated fires when the inspection row itself changes.
	EventInspectionUpdated EventType = "inspection_updated"
)

// Operation mirrors the row-level operation that produced the event.
type Operation string

const (
	OperationInsert Operation = "INSERT"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// Event represents a row change pushed to subscribers of an entity.
type Event struct {
	ID         string                    `json:"id"`
	Type       EventType                 `json:"type"`
	Operation  Operation                 `json:"operation"`
	EntityID   string                    `json:"entity_id"`
	Timestamp  time.Time                 `json:"timestamp"`
	Change     *ChangeRecordedPayload    `json:"change,omitempty"`
	Inspection *InspectionUpdatedPayload `json:"inspection,omitempty"`
}

// ChangeRecordedPayload payload.
type ChangeRecordedPayload struct {
	ChangeID  string            `json:"change_id"`
	FieldName string            `json:"field_name"`
	ItemID    *string           `json:"item_id,omitempty"`
	Type      domain.ChangeType `json:"change_type"`
}

// InspectionUpdatedPayload payload.
type InspectionUpdatedPayload struct {
	OverallStatus domain.InspectionStatus `json:"overall_status"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// Handler receives events for one subscription, in publication order.
type Handler func(context.Context, Event)

// Handle identifies one live subscription.
type Handle struct {
	Channel  string
	EntityID string
}

// Publisher pushes events to every subscriber of the event's entity.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber opens and closes per-entity subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, channel, entityID string, handler Handler) (Handle, error)
	Unsubscribe(handle Handle) error
}

// Bus is both ends of the realtime feed.
type Bus interface {
	Publisher
	Subscriber
}
