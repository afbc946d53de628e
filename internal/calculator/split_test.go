package calculator

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/mmynk/splitledger/internal/models"
)

func TestComputeSplits(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		payer   string
		spec    SplitSpec
		want    []models.Split
		wantErr bool
	}{
		{
			name:   "equal split with remainder goes to lowest IDs",
			amount: 100,
			payer:  "alice",
			spec:   Equal("carol", "alice", "bob"),
			want: []models.Split{
				{UserID: "alice", Amount: 34},
				{UserID: "bob", Amount: 33},
				{UserID: "carol", Amount: 33},
			},
		},
		{
			name:   "equal split with two units of remainder",
			amount: 101,
			payer:  "alice",
			spec:   Equal("alice", "bob", "carol"),
			want: []models.Split{
				{UserID: "alice", Amount: 34},
				{UserID: "bob", Amount: 34},
				{UserID: "carol", Amount: 33},
			},
		},
		{
			name:   "equal split even",
			amount: 90,
			payer:  "alice",
			spec:   Equal("alice", "bob", "carol"),
			want: []models.Split{
				{UserID: "alice", Amount: 30},
				{UserID: "bob", Amount: 30},
				{UserID: "carol", Amount: 30},
			},
		},
		{
			name:   "equal split smaller than participant count",
			amount: 2,
			payer:  "alice",
			spec:   Equal("alice", "bob", "carol"),
			want: []models.Split{
				{UserID: "alice", Amount: 1},
				{UserID: "bob", Amount: 1},
				{UserID: "carol", Amount: 0},
			},
		},
		{
			name:   "exact split keeps caller order",
			amount: 30,
			payer:  "bob",
			spec:   Exact(Share{UserID: "carol", Value: 20}, Share{UserID: "alice", Value: 10}),
			want: []models.Split{
				{UserID: "carol", Amount: 20},
				{UserID: "alice", Amount: 10},
			},
		},
		{
			name:    "exact split sum mismatch",
			amount:  30,
			payer:   "bob",
			spec:    Exact(Share{UserID: "carol", Value: 20}),
			wantErr: true,
		},
		{
			name:    "exact split over amount",
			amount:  30,
			payer:   "bob",
			spec:    Exact(Share{UserID: "carol", Value: 20}, Share{UserID: "alice", Value: 20}),
			wantErr: true,
		},
		{
			name:    "exact split negative share",
			amount:  10,
			payer:   "bob",
			spec:    Exact(Share{UserID: "carol", Value: 20}, Share{UserID: "alice", Value: -10}),
			wantErr: true,
		},
		{
			name:   "percentage split uses largest remainder",
			amount: 1000,
			payer:  "alice",
			// 33.33% / 33.33% / 33.34%: 333.3, 333.3, 333.4 -> 333, 333, 334
			spec: Percentage(
				Share{UserID: "carol", Value: 3334},
				Share{UserID: "bob", Value: 3333},
				Share{UserID: "alice", Value: 3333},
			),
			want: []models.Split{
				{UserID: "alice", Amount: 333},
				{UserID: "bob", Amount: 333},
				{UserID: "carol", Amount: 334},
			},
		},
		{
			name:   "percentage split remainder tie broken by user ID",
			amount: 5,
			payer:  "alice",
			spec: Percentage(
				Share{UserID: "bob", Value: 5000},
				Share{UserID: "alice", Value: 5000},
			),
			want: []models.Split{
				{UserID: "alice", Amount: 3},
				{UserID: "bob", Amount: 2},
			},
		},
		{
			name:    "percentage must total 100%",
			amount:  100,
			payer:   "alice",
			spec:    Percentage(Share{UserID: "alice", Value: 5000}, Share{UserID: "bob", Value: 4000}),
			wantErr: true,
		},
		{
			name:   "itemized split spreads tax by subtotal",
			amount: 3300,
			payer:  "alice",
			// alice: 1000 + 1000 = 2000, bob: 1000; tax 300 -> 200 / 100
			spec: Itemized(
				Item{Description: "Pizza", Amount: 2000, AssignedTo: []string{"alice", "bob"}},
				Item{Description: "Salad", Amount: 1000, AssignedTo: []string{"alice"}},
			),
			want: []models.Split{
				{UserID: "alice", Amount: 2200},
				{UserID: "bob", Amount: 1100},
			},
		},
		{
			name:   "itemized split without surplus",
			amount: 1000,
			payer:  "bob",
			spec: Itemized(
				Item{Description: "Shared", Amount: 1000, AssignedTo: []string{"carol", "alice", "bob"}},
			),
			want: []models.Split{
				{UserID: "alice", Amount: 334},
				{UserID: "bob", Amount: 333},
				{UserID: "carol", Amount: 333},
			},
		},
		{
			name:    "itemized items exceed amount",
			amount:  100,
			payer:   "alice",
			spec:    Itemized(Item{Description: "Steak", Amount: 200, AssignedTo: []string{"alice"}}),
			wantErr: true,
		},
		{
			name:    "itemized item without assignees",
			amount:  100,
			payer:   "alice",
			spec:    Itemized(Item{Description: "Steak", Amount: 100}),
			wantErr: true,
		},
		{
			name:    "no participants",
			amount:  100,
			payer:   "alice",
			spec:    Equal(),
			wantErr: true,
		},
		{
			name:    "duplicate participant",
			amount:  100,
			payer:   "alice",
			spec:    Equal("alice", "bob", "alice"),
			wantErr: true,
		},
		{
			name:    "zero amount",
			amount:  0,
			payer:   "alice",
			spec:    Equal("alice", "bob"),
			wantErr: true,
		},
		{
			name:    "missing payer",
			amount:  100,
			spec:    Equal("alice", "bob"),
			wantErr: true,
		},
		{
			name:   "exact shares that wrap past int64",
			amount: 100,
			payer:  "alice",
			spec: Exact(
				Share{UserID: "alice", Value: 100},
				Share{UserID: "bob", Value: math.MaxInt64},
				Share{UserID: "carol", Value: math.MaxInt64},
				Share{UserID: "dave", Value: 2},
			),
			wantErr: true,
		},
		{
			name:   "itemized items that wrap past int64",
			amount: 98,
			payer:  "alice",
			spec: Itemized(
				Item{Description: "Soup", Amount: 98, AssignedTo: []string{"alice"}},
				Item{Description: "Yacht", Amount: math.MaxInt64, AssignedTo: []string{"bob"}},
				Item{Description: "Jet", Amount: math.MaxInt64, AssignedTo: []string{"carol"}},
				Item{Description: "Gum", Amount: 2, AssignedTo: []string{"carol"}},
			),
			wantErr: true,
		},
		{
			name:   "percentages that wrap past int64",
			amount: 100,
			payer:  "alice",
			spec: Percentage(
				Share{UserID: "alice", Value: BasisPointsTotal},
				Share{UserID: "bob", Value: math.MaxInt64},
			),
			wantErr: true,
		},
		{
			name:    "unknown kind",
			amount:  100,
			payer:   "alice",
			spec:    SplitSpec{Kind: "shares", Participants: []string{"alice"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeSplits(tt.amount, tt.payer, tt.spec)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSplit) {
					t.Fatalf("ComputeSplits() error = %v, want ErrInvalidSplit", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ComputeSplits() unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ComputeSplits() returned %d splits, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("split %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// Every valid equal and percentage split must sum exactly to the amount.
func TestComputeSplitsExactness(t *testing.T) {
	users := []string{"u01", "u02", "u03", "u04", "u05", "u06", "u07"}

	for n := 1; n <= len(users); n++ {
		for _, amount := range []int64{1, 2, 3, 7, 99, 100, 101, 1000, 9999, 123457} {
			t.Run(fmt.Sprintf("equal/%d/%d", n, amount), func(t *testing.T) {
				splits, err := ComputeSplits(amount, users[0], Equal(users[:n]...))
				if err != nil {
					t.Fatalf("ComputeSplits failed: %v", err)
				}
				assertSum(t, splits, amount)
				assertSpread(t, splits)
			})

			t.Run(fmt.Sprintf("percentage/%d/%d", n, amount), func(t *testing.T) {
				shares := make([]Share, n)
				remaining := int64(BasisPointsTotal)
				for i := 0; i < n; i++ {
					bp := int64(BasisPointsTotal / n)
					if i == n-1 {
						bp = remaining
					}
					shares[i] = Share{UserID: users[i], Value: bp}
					remaining -= bp
				}
				splits, err := ComputeSplits(amount, users[0], Percentage(shares...))
				if err != nil {
					t.Fatalf("ComputeSplits failed: %v", err)
				}
				assertSum(t, splits, amount)
			})
		}
	}
}

func TestComputeSplitsLargeAmount(t *testing.T) {
	// amount * basis points overflows int64 without 128-bit intermediates
	const amount = int64(4_000_000_000_000_000)
	splits, err := ComputeSplits(amount, "alice", Percentage(
		Share{UserID: "alice", Value: 3333},
		Share{UserID: "bob", Value: 6667},
	))
	if err != nil {
		t.Fatalf("ComputeSplits failed: %v", err)
	}
	assertSum(t, splits, amount)
}

func assertSum(t *testing.T, splits []models.Split, amount int64) {
	t.Helper()
	var total int64
	for _, s := range splits {
		if s.Amount < 0 {
			t.Errorf("negative share %+v", s)
		}
		total += s.Amount
	}
	if total != amount {
		t.Errorf("splits sum to %d, want %d", total, amount)
	}
}

// assertSpread checks equal shares differ by at most one unit.
func assertSpread(t *testing.T, splits []models.Split) {
	t.Helper()
	lo, hi := splits[0].Amount, splits[0].Amount
	for _, s := range splits {
		lo = min(lo, s.Amount)
		hi = max(hi, s.Amount)
	}
	if hi-lo > 1 {
		t.Errorf("equal shares spread %d..%d", lo, hi)
	}
}
