// Package transactions implements the transactions listing subcommand.
package transactions

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dlev/finsync/cmd/root"
	"dlev/finsync/internal/category"
	"dlev/finsync/internal/dateutils"
	"dlev/finsync/internal/ledger"
	"dlev/finsync/internal/models"
)

var (
	accountID     int64
	fromStr       string
	toStr         string
	uncategorized bool
)

// Cmd represents the transactions command.
var Cmd = &cobra.Command{
	Use:   "transactions",
	Short: "List stored transactions",
	RunE:  runTransactions,
}

func init() {
	Cmd.Flags().Int64Var(&accountID, "account-id", 0, "Filter by internal account id")
	Cmd.Flags().StringVar(&fromStr, "from", "", "Start date (YYYY-MM-DD)")
	Cmd.Flags().StringVar(&toStr, "to", "", "End date (YYYY-MM-DD)")
	Cmd.Flags().BoolVar(&uncategorized, "uncategorized", false, "Only transactions without a derived category")
}

func runTransactions(cmd *cobra.Command, args []string) error {
	store, err := root.OpenStore()
	if err != nil {
		return err
	}
	defer store.Close()

	filter := ledger.TransactionFilter{AccountID: accountID, Uncategorized: uncategorized}
	if fromStr != "" {
		if filter.From, err = dateutils.ParseDate(fromStr); err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
	}
	if toStr != "" {
		if filter.To, err = dateutils.ParseDate(toStr); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}

	txns, err := store.ListTransactions(cmd.Context(), store.DB(), filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tDESCRIPTION\tAMOUNT\tSTATUS\tCATEGORY")
	for _, t := range txns {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s %s\t%s\t%s\n",
			t.ID, t.Date.Format(models.DateLayout), t.Description,
			t.Amount.StringFixed(2), t.Currency, t.Status, category.Effective(t))
	}
	return w.Flush()
}
