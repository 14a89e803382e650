package category

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"

	"dlev/finsync/internal/ledger"
	"dlev/finsync/internal/models"
)

// Apply runs the maintenance pass that fills the derived middle tier: every
// transaction whose category is still empty gets the mapping-table result, if
// any. Raw and user tiers are never touched. Returns how many rows were
// categorized.
func Apply(ctx context.Context, store *ledger.Store, m *Mappings, log *logrus.Logger) (int, error) {
	accounts, err := store.ListAccounts(ctx, store.DB())
	if err != nil {
		return 0, err
	}
	institutionOf := make(map[int64]models.Institution, len(accounts))
	for _, a := range accounts {
		institutionOf[a.ID] = a.Institution
	}

	pending, err := store.ListTransactions(ctx, store.DB(), ledger.TransactionFilter{Uncategorized: true})
	if err != nil {
		return 0, err
	}

	var applied int
	err = store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, t := range pending {
			cat := m.Lookup(institutionOf[t.AccountID], t)
			if cat == "" {
				continue
			}
			if err := store.SetTransactionCategory(ctx, tx, t.ID, cat); err != nil {
				return err
			}
			applied++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.WithFields(logrus.Fields{
		"pending": len(pending),
		"applied": applied,
	}).Info("Category mapping pass completed")
	return applied, nil
}
