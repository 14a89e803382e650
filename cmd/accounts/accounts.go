// Package accounts implements the accounts listing subcommand.
package accounts

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dlev/finsync/cmd/root"
	"dlev/finsync/internal/models"
	"dlev/finsync/internal/report"
)

// Cmd represents the accounts command.
var Cmd = &cobra.Command{
	Use:   "accounts",
	Short: "List stored accounts with their latest balance",
	RunE:  runAccounts,
}

func runAccounts(cmd *cobra.Command, args []string) error {
	store, err := root.OpenStore()
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := report.AccountSummaries(cmd.Context(), store.DB())
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		root.Log.Info("No accounts yet; run 'finsync sync' first")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INSTITUTION\tTYPE\tACCOUNT\tNAME\tBALANCE\tAS OF\tLAST SYNC")
	for _, s := range summaries {
		balance := "-"
		asOf := "-"
		if s.Total.Valid {
			balance = s.Total.Decimal.StringFixed(2) + " " + string(s.Currency)
			asOf = s.BalanceDate.Format(models.DateLayout)
		}
		lastSync := "-"
		if !s.Account.LastSyncedAt.IsZero() {
			lastSync = s.Account.LastSyncedAt.Format(models.DateLayout)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Account.Institution, s.Account.Type, s.Account.Number, s.Account.Name, balance, asOf, lastSync)
	}
	return w.Flush()
}
