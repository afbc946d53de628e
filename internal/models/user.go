package models

import "time"

// User represents an identity resolved from the external user directory.
type User struct {
	// ID is the unique identifier for the user.
	ID string

	// DisplayName is the name shown in balances and reports.
	DisplayName string

	// Email is the user's email address, optional.
	Email string

	// CreatedAt is the Unix timestamp when the user was provisioned.
	CreatedAt int64
}

// NewUser creates a user record stamped with the current time.
func NewUser(id, displayName, email string) *User {
	return &User{
		ID:          id,
		DisplayName: displayName,
		Email:       email,
		CreatedAt:   time.Now().Unix(),
	}
}
