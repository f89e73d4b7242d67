package domain

import "time"

// InspectionStatus enumerates the overall result of a QA inspection.
type InspectionStatus string

const (
	InspectionStatusNotStarted InspectionStatus = "not-started"
	InspectionStatusInProgress InspectionStatus = "incomplete-in-progress"
	InspectionStatusPass       InspectionStatus = "pass"
	InspectionStatusFail       InspectionStatus = "fail"
)

// Valid reports whether the status is a known value.
func (s InspectionStatus) Valid() bool {
	switch s {
	case InspectionStatusNotStarted, InspectionStatusInProgress, InspectionStatusPass, InspectionStatusFail:
		return true
	}
	return false
}

// Inspection is the audited entity.
type Inspection struct {
	ID            string
	ProjectID     string
	Title         string
	OverallStatus InspectionStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
