package domain

import "time"

// UserStatus represents lifecycle states for an inspector account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is an inspector who edits inspections.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor identifies who performed a change.
type Actor struct {
	UserID   string
	UserName string
}

// Valid reports whether the actor carries an identity.
func (a *Actor) Valid() bool {
	return a != nil && a.UserID != ""
}
