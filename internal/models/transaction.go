package models

import "math"

// SplitKind records how a transaction's splits were computed.
// It is informational only: deletion always reverses the stored splits.
type SplitKind string

const (
	SplitEqual      SplitKind = "equal"
	SplitExact      SplitKind = "exact"
	SplitPercentage SplitKind = "percentage"
	SplitItemized   SplitKind = "itemized"
)

// Transaction represents one shared expense recorded in a group.
// It is immutable once created, except for being tombstoned by a deletion.
type Transaction struct {
	// ID is the unique identifier for the transaction (TypeID, prefix "txn").
	ID string

	// GroupID is the group whose balances this transaction affects.
	GroupID string

	// Amount is the total paid, in minor currency units. Always positive.
	Amount int64

	// PayerID is the user who paid the full amount.
	PayerID string

	// CreatorID is the user who recorded the transaction. May differ from PayerID.
	CreatorID string

	// Splits is the ordered list of owed shares. Their amounts sum to Amount.
	// The payer may appear here; their own share never creates a balance delta.
	Splits []Split

	// Kind is the split rule used at creation time.
	Kind SplitKind

	// Description is a free-form note (e.g., "Groceries").
	Description string

	// CreatedAt is the Unix timestamp when the transaction was recorded.
	CreatedAt int64

	// DeletedAt is the Unix timestamp of the deletion tombstone, 0 while live.
	DeletedAt int64

	// Seq is the store-assigned position in the transaction log (creation order).
	Seq int64
}

// Split is one participant's owed share of a transaction.
type Split struct {
	UserID string
	Amount int64
}

// Deleted reports whether the transaction has been tombstoned.
func (t *Transaction) Deleted() bool {
	return t.DeletedAt != 0
}

// SplitTotal returns the sum of all split amounts.
// ok is false if the sum does not fit in an int64.
func (t *Transaction) SplitTotal() (total int64, ok bool) {
	for _, s := range t.Splits {
		if (s.Amount > 0 && total > math.MaxInt64-s.Amount) ||
			(s.Amount < 0 && total < math.MinInt64-s.Amount) {
			return 0, false
		}
		total += s.Amount
	}
	return total, true
}

// Participants returns the split user IDs in split order.
func (t *Transaction) Participants() []string {
	ids := make([]string, len(t.Splits))
	for i, s := range t.Splits {
		ids[i] = s.UserID
	}
	return ids
}

// Clone returns a deep copy, so stores can hand out records without sharing the splits slice.
func (t *Transaction) Clone() *Transaction {
	c := *t
	c.Splits = append([]Split(nil), t.Splits...)
	return &c
}
