package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/pkg/api"
)

// balancesReport is everything the balances command prints for one group.
type balancesReport struct {
	GroupID     string            `json:"group_id"`
	Currency    string            `json:"currency"`
	Names       map[string]string `json:"-"`
	Balances    []reportEntry     `json:"balances"`
	Positions   map[string]int64  `json:"positions"`
	Settlements []api.Settlement  `json:"settlements"`
}

type reportEntry struct {
	Debtor   string `json:"debtor"`
	Creditor string `json:"creditor"`
	Amount   int64  `json:"amount"`
}

// NewBalancesCommand creates the balances command.
func NewBalancesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balances <group-id>",
		Short: "Show who owes whom in a group",
		Long: `Prints the group's outstanding pairwise balances, each member's net
position (positive when owed money) and a short list of payments that would settle up.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(rootOpts, nil)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to initialize storage", err)
			}
			defer b.Close()

			report, err := loadBalances(cmd.Context(), b, args[0], rootOpts.cfg.Ledger.Currency)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load balances", err)
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return renderBalances(cmd.OutOrStdout(), report)
		},
	}
	return cmd
}

func loadBalances(ctx context.Context, b *backend, groupID, currency string) (*balancesReport, error) {
	entries, err := b.engine.GetGroupBalances(ctx, groupID)
	if err != nil {
		return nil, err
	}
	positions, err := b.engine.GetNetPositions(ctx, groupID)
	if err != nil {
		return nil, err
	}
	settlements, err := b.engine.SuggestSettlements(ctx, groupID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	users, err := b.dir.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve users: %w", err)
	}
	names := make(map[string]string, len(users))
	for id, u := range users {
		if u.DisplayName != "" {
			names[id] = u.DisplayName
		}
	}

	report := &balancesReport{
		GroupID:   groupID,
		Currency:  currency,
		Names:     names,
		Positions: positions,
	}
	for _, st := range settlements {
		report.Settlements = append(report.Settlements, api.Settlement{FromUserID: st.FromUserID, ToUserID: st.ToUserID, Amount: st.Amount})
	}
	for _, e := range entries {
		report.Balances = append(report.Balances, reportEntry{Debtor: e.Debtor(), Creditor: e.Creditor(), Amount: e.Owed()})
	}
	return report, nil
}

func renderBalances(w io.Writer, r *balancesReport) error {
	name := func(id string) string {
		if n, ok := r.Names[id]; ok {
			return n
		}
		return id
	}

	fmt.Fprintf(w, "Balances for %s (%s)\n", r.GroupID, r.Currency)
	if len(r.Balances) == 0 {
		fmt.Fprintln(w, "  all settled")
	}
	for _, e := range r.Balances {
		fmt.Fprintf(w, "  %s owes %s %s\n", name(e.Debtor), name(e.Creditor), formatAmount(e.Amount, r.Currency))
	}

	if len(r.Positions) > 0 {
		users := make([]string, 0, len(r.Positions))
		for id := range r.Positions {
			users = append(users, id)
		}
		sort.Strings(users)

		fmt.Fprintln(w, "\nNet positions")
		for _, id := range users {
			fmt.Fprintf(w, "  %s %s\n", name(id), formatSigned(r.Positions[id], r.Currency))
		}
	}

	if len(r.Settlements) > 0 {
		fmt.Fprintln(w, "\nSuggested settlements")
		for _, s := range r.Settlements {
			fmt.Fprintf(w, "  %s pays %s %s\n", name(s.FromUserID), name(s.ToUserID), formatAmount(s.Amount, r.Currency))
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}
