// Package export implements CSV export of stored transactions.
package export

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"dlev/finsync/cmd/root"
	"dlev/finsync/internal/category"
	"dlev/finsync/internal/dateutils"
	"dlev/finsync/internal/ledger"
	"dlev/finsync/internal/models"
)

var (
	output  string
	fromStr string
	toStr   string
)

// exportRow is the CSV layout of one exported transaction.
type exportRow struct {
	ID                int64  `csv:"ID"`
	Institution       string `csv:"Institution"`
	Account           string `csv:"Account"`
	Date              string `csv:"Date"`
	Description       string `csv:"Description"`
	Amount            string `csv:"Amount"`
	Currency          string `csv:"Currency"`
	Status            string `csv:"Status"`
	EffectiveCategory string `csv:"EffectiveCategory"`
	Memo              string `csv:"Memo"`
}

// Cmd represents the export command.
var Cmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored transactions to CSV",
	RunE:  runExport,
}

func init() {
	Cmd.Flags().StringVarP(&output, "output", "o", "", "Output CSV file (required)")
	Cmd.Flags().StringVar(&fromStr, "from", "", "Start date (YYYY-MM-DD)")
	Cmd.Flags().StringVar(&toStr, "to", "", "End date (YYYY-MM-DD)")
	_ = Cmd.MarkFlagRequired("output")
}

func runExport(cmd *cobra.Command, args []string) error {
	store, err := root.OpenStore()
	if err != nil {
		return err
	}
	defer store.Close()

	filter := ledger.TransactionFilter{}
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

	accounts, err := store.ListAccounts(cmd.Context(), store.DB())
	if err != nil {
		return err
	}
	accountOf := make(map[int64]models.Account, len(accounts))
	for _, a := range accounts {
		accountOf[a.ID] = a
	}

	txns, err := store.ListTransactions(cmd.Context(), store.DB(), filter)
	if err != nil {
		return err
	}

	rows := make([]exportRow, 0, len(txns))
	for _, t := range txns {
		acc := accountOf[t.AccountID]
		rows = append(rows, exportRow{
			ID:                t.ID,
			Institution:       string(acc.Institution),
			Account:           acc.Number,
			Date:              t.Date.Format(models.DateLayout),
			Description:       t.Description,
			Amount:            t.Amount.StringFixed(2),
			Currency:          string(t.Currency),
			Status:            string(t.Status),
			EffectiveCategory: category.Effective(t),
			Memo:              t.Memo,
		})
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	root.Log.WithField("file", output).Infof("Exported %d transactions", len(rows))
	return nil
}
