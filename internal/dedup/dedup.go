// Package dedup decides, for each canonical record, whether to insert,
// update in place, or leave the stored row alone. It is the only write path
// for balances and transactions, and it assumes input already normalized.
package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"dlev/finsync/internal/ledger"
	"dlev/finsync/internal/models"
)

// Outcome reports what an upsert did.
type Outcome string

const (
	Created   Outcome = "created"
	Updated   Outcome = "updated"
	Unchanged Outcome = "unchanged"
)

// Engine performs idempotent upserts against the ledger. Like the identity
// resolver it runs on the caller's Querier and never commits.
type Engine struct {
	store *ledger.Store
	log   *logrus.Logger
}

// NewEngine creates an upsert engine backed by the given store.
func NewEngine(store *ledger.Store, log *logrus.Logger) *Engine {
	return &Engine{store: store, log: log}
}

// UpsertBalance records a balance snapshot for (account, day). A snapshot
// already present for that day is overwritten in place; optional fields the
// new snapshot does not carry keep their stored values.
func (e *Engine) UpsertBalance(ctx context.Context, q ledger.Querier, accountID int64, bal models.Balance) (Outcome, error) {
	bal.AccountID = accountID

	existing, err := e.store.GetBalance(ctx, q, accountID, bal.Date)
	if errors.Is(err, ledger.ErrNotFound) {
		if _, insErr := e.store.InsertBalance(ctx, q, bal); insErr != nil {
			if !ledger.IsUniqueViolation(insErr) {
				return "", fmt.Errorf("insert balance: %w", insErr)
			}
			// Concurrent insert; fall through to the update path.
			existing, err = e.store.GetBalance(ctx, q, accountID, bal.Date)
			if err != nil {
				return "", fmt.Errorf("re-read balance after conflict: %w", err)
			}
			if err := e.store.UpdateBalance(ctx, q, existing.ID, bal); err != nil {
				return "", err
			}
			return Updated, nil
		}
		return Created, nil
	}
	if err != nil {
		return "", err
	}
	if err := e.store.UpdateBalance(ctx, q, existing.ID, bal); err != nil {
		return "", err
	}
	return Updated, nil
}

// UpsertTransaction records a transaction, deduplicating on the compound key
// (account, external id, date, description, amount). A re-sighting refreshes
// only the fields that legitimately change after creation (status, processed
// date, charged amount); identity fields and the three category tiers are
// never rewritten by sync. Returns Unchanged when the refresh would be a
// no-op so callers can keep accurate added/updated counters.
func (e *Engine) UpsertTransaction(ctx context.Context, q ledger.Querier, accountID int64, txn models.Transaction) (Outcome, error) {
	txn.AccountID = accountID

	existing, err := e.store.GetTransactionByDedupKey(ctx, q, accountID, txn.ExternalID, txn.Date, txn.Description, txn.Amount)
	if errors.Is(err, ledger.ErrNotFound) {
		if _, insErr := e.store.InsertTransaction(ctx, q, txn); insErr != nil {
			if !ledger.IsUniqueViolation(insErr) {
				return "", fmt.Errorf("insert transaction: %w", insErr)
			}
			existing, err = e.store.GetTransactionByDedupKey(ctx, q, accountID, txn.ExternalID, txn.Date, txn.Description, txn.Amount)
			if err != nil {
				return "", fmt.Errorf("re-read transaction after conflict: %w", err)
			}
			return e.refresh(ctx, q, existing, txn)
		}
		return Created, nil
	}
	if err != nil {
		return "", err
	}
	return e.refresh(ctx, q, existing, txn)
}

func (e *Engine) refresh(ctx context.Context, q ledger.Querier, existing, incoming models.Transaction) (Outcome, error) {
	if mutableEqual(existing, incoming) {
		return Unchanged, nil
	}
	// Merge: an incoming record without a processed date or charged amount
	// must not erase what a previous sync recorded.
	processed := incoming.ProcessedDate
	if processed.IsZero() {
		processed = existing.ProcessedDate
	}
	charged := incoming.ChargedAmount
	chargedCcy := incoming.ChargedCcy
	if !charged.Valid {
		charged = existing.ChargedAmount
		chargedCcy = existing.ChargedCcy
	}
	if err := e.store.UpdateTransactionMutable(ctx, q, existing.ID, incoming.Status, processed, charged, chargedCcy); err != nil {
		return "", err
	}
	e.log.WithFields(logrus.Fields{
		"transaction": existing.ID,
		"status":      incoming.Status,
	}).Debug("Refreshed mutable transaction fields")
	return Updated, nil
}

func mutableEqual(existing, incoming models.Transaction) bool {
	if existing.Status != incoming.Status {
		return false
	}
	if !incoming.ProcessedDate.IsZero() && !existing.ProcessedDate.Equal(incoming.ProcessedDate) {
		return false
	}
	if incoming.ChargedAmount.Valid {
		if !existing.ChargedAmount.Valid {
			return false
		}
		if !existing.ChargedAmount.Decimal.Equal(incoming.ChargedAmount.Decimal) {
			return false
		}
		if existing.ChargedCcy != incoming.ChargedCcy {
			return false
		}
	}
	return true
}
