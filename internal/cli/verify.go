package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/ledger"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [group-id...]",
		Short: "Check stored balances against a replay of the transaction log",
		Long: `Re-derives every balance from the live transactions and compares it with
the stored entry. With no arguments every group with recorded transactions is checked.
Exits 1 when any group has drifted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(rootOpts, nil)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to initialize storage", err)
			}
			defer b.Close()

			var reports []*ledger.VerifyReport
			if len(args) == 0 {
				reports, err = b.engine.VerifyAll(cmd.Context())
				if err != nil {
					return WrapExitError(ExitCommandError, "verify failed", err)
				}
			}
			for _, groupID := range args {
				r, err := b.engine.Verify(cmd.Context(), groupID)
				if err != nil {
					return WrapExitError(ExitCommandError, "verify failed", err)
				}
				reports = append(reports, r)
			}

			if rootOpts.Format == "json" {
				err = writeJSON(cmd.OutOrStdout(), reports)
			} else {
				err = renderVerify(cmd.OutOrStdout(), reports)
			}
			if err != nil {
				return err
			}

			for _, r := range reports {
				if !r.OK() {
					return NewExitError(ExitFailure, fmt.Sprintf("group %s: stored balances do not match the log", r.GroupID))
				}
			}
			return nil
		},
	}
	return cmd
}

func renderVerify(w io.Writer, reports []*ledger.VerifyReport) error {
	if len(reports) == 0 {
		_, err := fmt.Fprintln(w, "no groups with transactions")
		return err
	}
	for _, r := range reports {
		status := "ok"
		if !r.OK() {
			status = "MISMATCH"
		}
		fmt.Fprintf(w, "%s: %s (%d transactions, %d entries, net %d)\n",
			r.GroupID, status, r.Transactions, r.Entries, r.NetSum)
		for _, m := range r.Mismatches {
			fmt.Fprintf(w, "  %s/%s stored %d, log says %d\n", m.UserA, m.UserB, m.Stored, m.Derived)
		}
	}
	return nil
}
