package cli

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/pkg/api"
)

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRenderBalances(t *testing.T) {
	tests := []struct {
		name   string
		report *balancesReport
	}{
		{
			name: "balances_three_friends",
			report: &balancesReport{
				GroupID:  "trip",
				Currency: "USD",
				Names:    map[string]string{"alice": "Alice", "bob": "Bob", "carol": "Carol"},
				Balances: []reportEntry{
					{Debtor: "bob", Creditor: "alice", Amount: 3000},
					{Debtor: "carol", Creditor: "alice", Amount: 3000},
					{Debtor: "carol", Creditor: "bob", Amount: 3000},
				},
				Positions:   map[string]int64{"alice": 6000, "bob": 0, "carol": -6000},
				Settlements: []api.Settlement{{FromUserID: "carol", ToUserID: "alice", Amount: 6000}},
			},
		},
		{
			name: "balances_settled",
			report: &balancesReport{
				GroupID:   "flat",
				Currency:  "USD",
				Positions: map[string]int64{"dave": 0, "alice": 0},
			},
		},
		{
			name: "balances_thousands",
			report: &balancesReport{
				GroupID:     "office",
				Currency:    "USD",
				Balances:    []reportEntry{{Debtor: "bob", Creditor: "alice", Amount: 123456}},
				Positions:   map[string]int64{"alice": 123456, "bob": -123456},
				Settlements: []api.Settlement{{FromUserID: "bob", ToUserID: "alice", Amount: 123456}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, renderBalances(&buf, tt.report))
			newGolden(t).Assert(t, tt.name, buf.Bytes())
		})
	}
}
