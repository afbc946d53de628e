package models

// Group represents a set of users who share expenses.
// Membership is managed by the external directory; the ledger only reads it.
type Group struct {
	// ID is the unique identifier for the group.
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Work Lunch").
	Name string

	// Members is the list of current member user IDs.
	Members []string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}
