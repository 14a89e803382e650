// Package categorize implements the categorization subcommand.
package categorize

import (
	"fmt"

	"github.com/spf13/cobra"

	"dlev/finsync/cmd/root"
	"dlev/finsync/internal/category"
)

var (
	txnID         int64
	setValue      string
	clearOverride bool
)

// Cmd represents the categorize command.
var Cmd = &cobra.Command{
	Use:   "categorize",
	Short: "Apply category mappings or set a manual override",
	Long: `Without flags, categorize runs the mapping pass: every transaction whose
derived category is still empty is matched against the provider and merchant
mapping tables. With --id and --set it records a manual override for one
transaction; the override always wins over mapped and raw categories and is
never touched by sync.`,
	RunE: runCategorize,
}

func init() {
	Cmd.Flags().Int64Var(&txnID, "id", 0, "Transaction id for a manual override")
	Cmd.Flags().StringVar(&setValue, "set", "", "Category to set as the manual override")
	Cmd.Flags().BoolVar(&clearOverride, "clear", false, "Clear the manual override instead")
}

func runCategorize(cmd *cobra.Command, args []string) error {
	store, err := root.OpenStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if txnID != 0 {
		if setValue == "" && !clearOverride {
			return fmt.Errorf("--id requires --set or --clear")
		}
		value := setValue
		if clearOverride {
			value = ""
		}
		if err := store.SetTransactionUserCategory(cmd.Context(), store.DB(), txnID, value); err != nil {
			return err
		}
		root.Log.WithField("transaction", txnID).Info("User category updated")
		return nil
	}

	mappings, err := category.LoadMappings(root.Cfg.Mappings.File)
	if err != nil {
		return err
	}
	applied, err := category.Apply(cmd.Context(), store, mappings, root.Log)
	if err != nil {
		return err
	}
	root.Log.Infof("Categorized %d transactions", applied)
	return nil
}
