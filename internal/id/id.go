// Package id generates and checks the TypeID identifiers used by splitledger.
//
// IDs are K-sortable (UUIDv7-based), globally unique and URL-safe, in the
// format "prefix_suffix". Transaction IDs are always TypeIDs; user and group
// IDs come from the external directory and are only TypeIDs when the bundled
// directory provisions them.
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

const (
	PrefixTransaction Prefix = "txn"
	PrefixGroup       Prefix = "grp"
	PrefixUser        Prefix = "usr"
)

// New generates a new ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) string {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return tid.String()
}

// NewTransactionID generates a new transaction ID.
func NewTransactionID() string { return New(PrefixTransaction) }

// NewGroupID generates a new group ID.
func NewGroupID() string { return New(PrefixGroup) }

// NewUserID generates a new user ID.
func NewUserID() string { return New(PrefixUser) }

// PrefixOf parses s and returns its prefix.
func PrefixOf(s string) (Prefix, error) {
	if s == "" {
		return "", fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("id: parse %q: %w", s, err)
	}
	return Prefix(tid.Prefix()), nil
}

// Check reports an error unless s is a valid TypeID carrying the expected prefix.
func Check(s string, expected Prefix) error {
	p, err := PrefixOf(s)
	if err != nil {
		return err
	}
	if p != expected {
		return fmt.Errorf("id: expected prefix %q, got %q", expected, p)
	}
	return nil
}
