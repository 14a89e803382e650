// Package report implements the spending report subcommand.
package report

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"dlev/finsync/cmd/root"
	"dlev/finsync/internal/dateutils"
	"dlev/finsync/internal/report"
)

var (
	fromStr string
	toStr   string
	monthly bool
)

// Cmd represents the report command.
var Cmd = &cobra.Command{
	Use:   "report",
	Short: "Spending report grouped by effective category",
	Long: `Report aggregates stored transactions grouped by effective category
(user override first, then the mapped category, then the raw source category)
or by calendar month. Aggregation runs inside the database.`,
	RunE: runReport,
}

func init() {
	Cmd.Flags().StringVar(&fromStr, "from", "", "Start date (YYYY-MM-DD)")
	Cmd.Flags().StringVar(&toStr, "to", "", "End date (YYYY-MM-DD)")
	Cmd.Flags().BoolVarP(&monthly, "monthly", "m", false, "Group by month instead of category")
}

func runReport(cmd *cobra.Command, args []string) error {
	store, err := root.OpenStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var from, to time.Time
	if fromStr != "" {
		if from, err = dateutils.ParseDate(fromStr); err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
	}
	if toStr != "" {
		if to, err = dateutils.ParseDate(toStr); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if monthly {
		totals, err := report.MonthlyTotals(cmd.Context(), store.DB(), from, to)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "MONTH\tCOUNT\tTOTAL")
		for _, mt := range totals {
			fmt.Fprintf(w, "%s\t%d\t%s\n", mt.Month, mt.Count, mt.Total.StringFixed(2))
		}
		return nil
	}

	totals, err := report.SpendingByCategory(cmd.Context(), store.DB(), from, to)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "CATEGORY\tCOUNT\tTOTAL")
	for _, ct := range totals {
		name := ct.Category
		if name == "" {
			name = "(uncategorized)"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", name, ct.Count, ct.Total.StringFixed(2))
	}
	return nil
}
