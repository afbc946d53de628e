package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/pkg/api"
)

// NewTxCommand creates the tx command group.
func NewTxCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Record, delete and list transactions",
	}
	cmd.AddCommand(newTxAddCommand(rootOpts))
	cmd.AddCommand(newTxDeleteCommand(rootOpts))
	cmd.AddCommand(newTxListCommand(rootOpts))
	return cmd
}

type txAddOptions struct {
	id          string
	payer       string
	creator     string
	amount      string
	split       string
	with        []string
	shares      []string
	items       []string
	description string
}

func newTxAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &txAddOptions{}

	cmd := &cobra.Command{
		Use:   "add <group-id>",
		Short: "Record a transaction",
		Long: `Records an expense paid by --payer. Amounts are in major units of the
configured currency ("12.50").

  equal:       --with alice,bob,carol
  exact:       --share bob=7.00 --share carol=3.00
  percentage:  --share bob=70 --share carol=30      (percent, two decimals)
  itemized:    --item 20.00:alice,bob:Pizza --item 5.00:carol`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			currency := rootOpts.cfg.Ledger.Currency
			req, err := opts.request(args[0], currency)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid transaction", err)
			}

			b, err := openBackend(rootOpts, nil)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to initialize storage", err)
			}
			defer b.Close()

			txn, err := b.engine.CreateTransaction(cmd.Context(), req)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to record transaction", err)
			}
			return printTransaction(cmd.OutOrStdout(), rootOpts.Format, txn, currency)
		},
	}

	cmd.Flags().StringVar(&opts.id, "id", "", "transaction ID (generated when empty; reuse it to retry safely)")
	cmd.Flags().StringVar(&opts.payer, "payer", "", "user who paid")
	cmd.Flags().StringVar(&opts.creator, "creator", "", "user recording the transaction (default: payer)")
	cmd.Flags().StringVar(&opts.amount, "amount", "", "total amount paid")
	cmd.Flags().StringVar(&opts.split, "split", string(models.SplitEqual), "split kind (equal|exact|percentage|itemized)")
	cmd.Flags().StringSliceVar(&opts.with, "with", nil, "participants of an equal split")
	cmd.Flags().StringArrayVar(&opts.shares, "share", nil, "user=value for exact or percentage splits (repeatable)")
	cmd.Flags().StringArrayVar(&opts.items, "item", nil, "amount:user1,user2[:description] for itemized splits (repeatable)")
	cmd.Flags().StringVarP(&opts.description, "description", "d", "", "free-form note")
	_ = cmd.MarkFlagRequired("payer")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func (o *txAddOptions) request(groupID, currency string) (ledger.CreateRequest, error) {
	amount, err := parseAmount(o.amount, currency)
	if err != nil {
		return ledger.CreateRequest{}, fmt.Errorf("--amount: %w", err)
	}

	spec := calculator.SplitSpec{Kind: models.SplitKind(o.split)}
	switch spec.Kind {
	case models.SplitEqual:
		spec.Participants = o.with
	case models.SplitExact, models.SplitPercentage:
		for _, raw := range o.shares {
			user, value, ok := strings.Cut(raw, "=")
			if !ok || user == "" {
				return ledger.CreateRequest{}, fmt.Errorf("--share %q: want user=value", raw)
			}
			var v int64
			if spec.Kind == models.SplitExact {
				v, err = parseAmount(value, currency)
			} else {
				v, err = parsePercent(value)
			}
			if err != nil {
				return ledger.CreateRequest{}, fmt.Errorf("--share %q: %w", raw, err)
			}
			spec.Shares = append(spec.Shares, calculator.Share{UserID: user, Value: v})
		}
	case models.SplitItemized:
		for _, raw := range o.items {
			item, err := parseItem(raw, currency)
			if err != nil {
				return ledger.CreateRequest{}, fmt.Errorf("--item %q: %w", raw, err)
			}
			spec.Items = append(spec.Items, item)
		}
	default:
		return ledger.CreateRequest{}, fmt.Errorf("unknown split kind %q", o.split)
	}

	return ledger.CreateRequest{
		ID:          o.id,
		GroupID:     groupID,
		PayerID:     o.payer,
		CreatorID:   o.creator,
		Amount:      amount,
		Split:       spec,
		Description: o.description,
	}, nil
}

// parseItem parses "amount:user1,user2[:description]".
func parseItem(raw, currency string) (calculator.Item, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 || parts[1] == "" {
		return calculator.Item{}, fmt.Errorf("want amount:user1,user2[:description]")
	}
	amount, err := parseAmount(parts[0], currency)
	if err != nil {
		return calculator.Item{}, err
	}
	item := calculator.Item{Amount: amount, AssignedTo: strings.Split(parts[1], ",")}
	if len(parts) == 3 {
		item.Description = parts[2]
	}
	return item, nil
}

func newTxDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <txn-id>",
		Short: "Reverse a transaction's effect on balances and tombstone it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(rootOpts, nil)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to initialize storage", err)
			}
			defer b.Close()

			txn, err := b.engine.DeleteTransaction(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to delete transaction", err)
			}
			return printTransaction(cmd.OutOrStdout(), rootOpts.Format, txn, rootOpts.cfg.Ledger.Currency)
		},
	}
}

func newTxListCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list <group-id>",
		Short: "List a group's transactions in creation order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(rootOpts, nil)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to initialize storage", err)
			}
			defer b.Close()

			txns, err := b.engine.ListTransactions(cmd.Context(), args[0], all)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list transactions", err)
			}

			w := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				out := make([]*api.Transaction, len(txns))
				for i, txn := range txns {
					out[i] = service.TransactionToAPI(txn)
				}
				return writeJSON(w, out)
			}
			currency := rootOpts.cfg.Ledger.Currency
			for _, txn := range txns {
				state := ""
				if txn.Deleted() {
					state = " [deleted]"
				}
				fmt.Fprintf(w, "%d %s %s paid %s (%s)%s\n",
					txn.Seq, txn.ID, txn.PayerID, formatAmount(txn.Amount, currency), txn.Kind, state)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include deleted transactions")
	return cmd
}

func printTransaction(w io.Writer, format string, txn *models.Transaction, currency string) error {
	if format == "json" {
		return writeJSON(w, service.TransactionToAPI(txn))
	}

	verb := "Recorded"
	if txn.Deleted() {
		verb = "Deleted"
	}
	fmt.Fprintf(w, "%s %s in %s: %s paid %s\n", verb, txn.ID, txn.GroupID, txn.PayerID, formatAmount(txn.Amount, currency))
	for _, s := range txn.Splits {
		fmt.Fprintf(w, "  %s %s\n", s.UserID, formatAmount(s.Amount, currency))
	}
	return nil
}
