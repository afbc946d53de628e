package calculator

import (
	"sort"

	"github.com/mmynk/splitledger/internal/models"
)

// Delta is one balance change produced by a transaction: Debtor owes Creditor Amount more.
type Delta struct {
	Debtor   string
	Creditor string
	Amount   int64
}

// Deltas returns the balance changes a transaction contributes, in split order.
// The payer's own share is skipped: it would be a self-loop with no net effect.
func Deltas(txn *models.Transaction) []Delta {
	deltas := make([]Delta, 0, len(txn.Splits))
	for _, s := range txn.Splits {
		if s.UserID == txn.PayerID {
			continue
		}
		deltas = append(deltas, Delta{Debtor: s.UserID, Creditor: txn.PayerID, Amount: s.Amount})
	}
	return deltas
}

// SortDeltas returns a copy of ds ordered by canonical pair.
func SortDeltas(ds []Delta) []Delta {
	sorted := append([]Delta(nil), ds...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ai, bi, _ := models.CanonicalPair(sorted[i].Debtor, sorted[i].Creditor, 0)
		aj, bj, _ := models.CanonicalPair(sorted[j].Debtor, sorted[j].Creditor, 0)
		if ai != aj {
			return ai < aj
		}
		return bi < bj
	})
	return sorted
}

// Inverse returns the deltas that exactly undo ds.
func Inverse(ds []Delta) []Delta {
	inv := make([]Delta, len(ds))
	for i, d := range ds {
		inv[i] = Delta{Debtor: d.Debtor, Creditor: d.Creditor, Amount: -d.Amount}
	}
	return inv
}

type pairKey struct {
	a, b string
}

// DeriveBalances replays the stored splits of every live transaction in txns and returns
// the resulting balance entries for groupID, sorted by (UserA, UserB).
// Pairs that net to zero are kept, matching a store that never deletes rows.
// This is the correctness oracle for the incrementally maintained balances.
func DeriveBalances(groupID string, txns []*models.Transaction) []models.BalanceEntry {
	totals := make(map[pairKey]int64)
	for _, txn := range txns {
		if txn.GroupID != groupID || txn.Deleted() {
			continue
		}
		for _, d := range Deltas(txn) {
			a, b, amt := models.CanonicalPair(d.Debtor, d.Creditor, d.Amount)
			totals[pairKey{a, b}] += amt
		}
	}

	entries := make([]models.BalanceEntry, 0, len(totals))
	for k, amt := range totals {
		entries = append(entries, models.BalanceEntry{GroupID: groupID, UserA: k.a, UserB: k.b, Amount: amt})
	}
	SortEntries(entries)
	return entries
}

// SortEntries orders entries by (UserA, UserB).
func SortEntries(entries []models.BalanceEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].UserA != entries[j].UserA {
			return entries[i].UserA < entries[j].UserA
		}
		return entries[i].UserB < entries[j].UserB
	})
}

// NonZero returns the entries with an outstanding amount, preserving order.
func NonZero(entries []models.BalanceEntry) []models.BalanceEntry {
	out := make([]models.BalanceEntry, 0, len(entries))
	for _, e := range entries {
		if e.Amount != 0 {
			out = append(out, e)
		}
	}
	return out
}

// NetPositions sums every entry touching each user.
// Positive = is owed money, negative = owes money. Over a group the positions sum to zero.
func NetPositions(entries []models.BalanceEntry) map[string]int64 {
	positions := make(map[string]int64)
	for _, e := range entries {
		positions[e.UserA] += e.PositionOf(e.UserA)
		positions[e.UserB] += e.PositionOf(e.UserB)
	}
	return positions
}

// NetPosition returns a single user's position over entries.
func NetPosition(entries []models.BalanceEntry, userID string) int64 {
	var pos int64
	for _, e := range entries {
		pos += e.PositionOf(userID)
	}
	return pos
}

type member struct {
	id     string
	amount int64
}

// SimplifyDebts turns net positions into a short list of payments that would settle the group.
//
// Algorithm:
// - Split users into creditors (owed money) and debtors (owe money)
// - Order both by amount, largest first, ties by user ID
// - Greedily match the current debtor with the current creditor for min(debt, credit)
// - Advance whichever side is fully settled
//
// Amounts are exact integers, so no tolerance is needed when deciding a side is settled.
func SimplifyDebts(positions map[string]int64) []models.Settlement {
	var creditors, debtors []member
	for id, amount := range positions {
		switch {
		case amount > 0:
			creditors = append(creditors, member{id, amount})
		case amount < 0:
			debtors = append(debtors, member{id, -amount})
		}
	}
	byAmount := func(ms []member) {
		sort.Slice(ms, func(i, j int) bool {
			if ms[i].amount != ms[j].amount {
				return ms[i].amount > ms[j].amount
			}
			return ms[i].id < ms[j].id
		})
	}
	byAmount(creditors)
	byAmount(debtors)

	var settlements []models.Settlement
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := min(debtors[i].amount, creditors[j].amount)

		settlements = append(settlements, models.Settlement{
			FromUserID: debtors[i].id,
			ToUserID:   creditors[j].id,
			Amount:     amount,
		})

		debtors[i].amount -= amount
		creditors[j].amount -= amount

		if debtors[i].amount == 0 {
			i++
		}
		if creditors[j].amount == 0 {
			j++
		}
	}
	return settlements
}
