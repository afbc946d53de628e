package models

// BalanceEntry is the running balance between two users of a group.
// Amount is signed and reads "UserA owes UserB Amount"; a negative Amount means UserB owes UserA.
// UserA always sorts before UserB, so exactly one entry exists per unordered pair.
type BalanceEntry struct {
	GroupID string
	UserA   string
	UserB   string
	Amount  int64
}

// CanonicalPair orders (debtor, creditor, amount) so that the first user sorts first.
// When the users are swapped the amount is negated, preserving the meaning "a owes b amount".
func CanonicalPair(a, b string, amount int64) (string, string, int64) {
	if a > b {
		return b, a, -amount
	}
	return a, b, amount
}

// Debtor returns the user who owes money on this entry, or "" when settled.
func (e BalanceEntry) Debtor() string {
	switch {
	case e.Amount > 0:
		return e.UserA
	case e.Amount < 0:
		return e.UserB
	}
	return ""
}

// Creditor returns the user who is owed money on this entry, or "" when settled.
func (e BalanceEntry) Creditor() string {
	switch {
	case e.Amount > 0:
		return e.UserB
	case e.Amount < 0:
		return e.UserA
	}
	return ""
}

// Owed returns the absolute amount owed on this entry.
func (e BalanceEntry) Owed() int64 {
	if e.Amount < 0 {
		return -e.Amount
	}
	return e.Amount
}

// Touches reports whether userID is one side of the entry.
func (e BalanceEntry) Touches(userID string) bool {
	return e.UserA == userID || e.UserB == userID
}

// PositionOf returns the entry's contribution to userID's net position:
// positive when the user is owed, negative when the user owes.
func (e BalanceEntry) PositionOf(userID string) int64 {
	switch userID {
	case e.UserA:
		return -e.Amount
	case e.UserB:
		return e.Amount
	}
	return 0
}
