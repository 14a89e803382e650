// Package history implements the sync history subcommand.
package history

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dlev/finsync/cmd/root"
)

var limit int

// Cmd represents the history command.
var Cmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sync runs",
	RunE:  runHistory,
}

func init() {
	Cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := root.OpenStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListSyncHistory(cmd.Context(), store.DB(), limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tINSTITUTION\tSTATUS\tSTARTED\tADDED\tUPDATED\tERROR")
	for _, h := range runs {
		errMsg := h.ErrorMessage
		if len(errMsg) > 60 {
			errMsg = errMsg[:57] + "..."
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			h.ID, h.SyncType, h.Institution, h.Status,
			h.StartedAt.Format("2006-01-02 15:04"), h.RecordsAdded, h.RecordsUpdated, errMsg)
	}
	return w.Flush()
}
