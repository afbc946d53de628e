package calculator

import (
	"errors"
	"fmt"
	"math/bits"
	"sort"

	"github.com/mmynk/splitledger/internal/models"
)

// ErrInvalidSplit is returned for any malformed split input.
var ErrInvalidSplit = errors.New("invalid split")

// BasisPointsTotal is the sum every percentage split must reach (100.00%).
const BasisPointsTotal = 10000

// Share is a caller-supplied value for one participant.
// For exact splits Value is minor currency units; for percentage splits it is basis points.
type Share struct {
	UserID string
	Value  int64
}

// Item represents a single line item on an itemized bill.
// The item amount is split equally among the users it is assigned to.
type Item struct {
	Description string
	Amount      int64
	AssignedTo  []string
}

// SplitSpec describes how a transaction amount is divided.
// Only the field matching Kind is read.
type SplitSpec struct {
	Kind models.SplitKind

	// Participants is used by equal splits.
	Participants []string

	// Shares is used by exact and percentage splits.
	Shares []Share

	// Items is used by itemized splits.
	Items []Item
}

// Equal builds an equal split spec.
func Equal(participants ...string) SplitSpec {
	return SplitSpec{Kind: models.SplitEqual, Participants: participants}
}

// Exact builds an exact split spec.
func Exact(shares ...Share) SplitSpec {
	return SplitSpec{Kind: models.SplitExact, Shares: shares}
}

// Percentage builds a percentage split spec from basis points.
func Percentage(shares ...Share) SplitSpec {
	return SplitSpec{Kind: models.SplitPercentage, Shares: shares}
}

// Itemized builds an itemized split spec.
func Itemized(items ...Item) SplitSpec {
	return SplitSpec{Kind: models.SplitItemized, Items: items}
}

// ComputeSplits computes how much each participant owes of amount.
// The returned splits always sum exactly to amount. Equal, percentage and itemized
// splits are ordered by ascending user ID; exact splits keep the caller's order.
func ComputeSplits(amount int64, payer string, spec SplitSpec) ([]models.Split, error) {
	if amount <= 0 {
		return nil, invalid("amount must be positive, got %d", amount)
	}
	if payer == "" {
		return nil, invalid("payer is required")
	}

	switch spec.Kind {
	case models.SplitEqual:
		return equalSplit(amount, spec.Participants)
	case models.SplitExact:
		return exactSplit(amount, spec.Shares)
	case models.SplitPercentage:
		return percentageSplit(amount, spec.Shares)
	case models.SplitItemized:
		return itemizedSplit(amount, spec.Items)
	default:
		return nil, invalid("unknown split kind %q", spec.Kind)
	}
}

func equalSplit(amount int64, participants []string) ([]models.Split, error) {
	users, err := sortedUnique(participants)
	if err != nil {
		return nil, err
	}
	return toSplits(users, apportion(amount, ones(len(users)), int64(len(users)))), nil
}

func exactSplit(amount int64, shares []Share) ([]models.Split, error) {
	if err := checkShares(shares); err != nil {
		return nil, err
	}

	var total int64
	splits := make([]models.Split, len(shares))
	for i, s := range shares {
		// total never exceeds amount, so amount-total cannot overflow
		if s.Value > amount-total {
			return nil, invalid("exact shares exceed amount %d", amount)
		}
		total += s.Value
		splits[i] = models.Split{UserID: s.UserID, Amount: s.Value}
	}
	if total != amount {
		return nil, invalid("exact shares sum to %d, want %d", total, amount)
	}
	return splits, nil
}

func percentageSplit(amount int64, shares []Share) ([]models.Split, error) {
	if err := checkShares(shares); err != nil {
		return nil, err
	}

	sorted := append([]Share(nil), shares...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UserID < sorted[j].UserID })

	var total int64
	users := make([]string, len(sorted))
	weights := make([]int64, len(sorted))
	for i, s := range sorted {
		if s.Value > BasisPointsTotal-total {
			return nil, invalid("percentages exceed 100%% at %s", s.UserID)
		}
		total += s.Value
		users[i] = s.UserID
		weights[i] = s.Value
	}
	if total != BasisPointsTotal {
		return nil, invalid("percentages sum to %d basis points, want %d", total, BasisPointsTotal)
	}
	return toSplits(users, apportion(amount, weights, BasisPointsTotal)), nil
}

// itemizedSplit divides each item among its assignees, then spreads whatever the
// amount has on top of the items (tax, tip, fees) proportionally to each person's subtotal.
func itemizedSplit(amount int64, items []Item) ([]models.Split, error) {
	if len(items) == 0 {
		return nil, invalid("itemized split needs at least one item")
	}

	subtotals := make(map[string]int64)
	var itemsTotal int64
	for i, item := range items {
		if item.Amount <= 0 {
			return nil, invalid("item %d (%s) must have a positive amount", i+1, item.Description)
		}
		assignees, err := sortedUnique(item.AssignedTo)
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i+1, item.Description, err)
		}
		if item.Amount > amount-itemsTotal {
			return nil, invalid("items total exceeds amount %d", amount)
		}
		itemsTotal += item.Amount
		shares := apportion(item.Amount, ones(len(assignees)), int64(len(assignees)))
		for j, user := range assignees {
			subtotals[user] += shares[j]
		}
	}

	users := make([]string, 0, len(subtotals))
	for user := range subtotals {
		users = append(users, user)
	}
	sort.Strings(users)

	owed := make([]int64, len(users))
	for i, user := range users {
		owed[i] = subtotals[user]
	}

	if surplus := amount - itemsTotal; surplus > 0 {
		extra := apportion(surplus, owed, itemsTotal)
		for i := range owed {
			owed[i] += extra[i]
		}
	}
	return toSplits(users, owed), nil
}

func checkShares(shares []Share) error {
	if len(shares) == 0 {
		return invalid("no participants")
	}
	seen := make(map[string]bool, len(shares))
	for _, s := range shares {
		if s.UserID == "" {
			return invalid("participant ID is empty")
		}
		if seen[s.UserID] {
			return invalid("duplicate participant %s", s.UserID)
		}
		if s.Value < 0 {
			return invalid("negative share %d for %s", s.Value, s.UserID)
		}
		seen[s.UserID] = true
	}
	return nil
}

func sortedUnique(participants []string) ([]string, error) {
	if len(participants) == 0 {
		return nil, invalid("no participants")
	}
	seen := make(map[string]bool, len(participants))
	users := make([]string, 0, len(participants))
	for _, p := range participants {
		if p == "" {
			return nil, invalid("participant ID is empty")
		}
		if seen[p] {
			return nil, invalid("duplicate participant %s", p)
		}
		seen[p] = true
		users = append(users, p)
	}
	sort.Strings(users)
	return users, nil
}

// apportion distributes total across weights using the largest-remainder rule.
// Each slot first gets floor(total*w/weightSum); the leftover units go one at a time
// to the slots with the largest remainders, earlier slots winning ties.
// The weights must be non-negative and sum to weightSum > 0.
func apportion(total int64, weights []int64, weightSum int64) []int64 {
	shares := make([]int64, len(weights))
	remainders := make([]uint64, len(weights))

	var assigned int64
	for i, w := range weights {
		q, r := mulDiv(total, w, weightSum)
		shares[i] = q
		remainders[i] = r
		assigned += q
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return remainders[order[i]] > remainders[order[j]]
	})

	for k := int64(0); k < total-assigned; k++ {
		shares[order[k]]++
	}
	return shares
}

// mulDiv returns the quotient and remainder of a*b/d using 128-bit intermediate math.
// Callers guarantee b <= d, so the quotient never exceeds a.
func mulDiv(a, b, d int64) (int64, uint64) {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	q, r := bits.Div64(hi, lo, uint64(d))
	return int64(q), r
}

func ones(n int) []int64 {
	w := make([]int64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

func toSplits(users []string, amounts []int64) []models.Split {
	splits := make([]models.Split, len(users))
	for i, user := range users {
		splits[i] = models.Split{UserID: user, Amount: amounts[i]}
	}
	return splits
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSplit, fmt.Sprintf(format, args...))
}
