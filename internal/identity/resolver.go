// Package identity maps (institution, account number) pairs to durable
// internal account identities, creating them lazily on first sight.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dlev/finsync/internal/ledger"
	"dlev/finsync/internal/models"
)

// Resolver resolves account identities against the ledger. It never commits
// on its own; it runs on whatever Querier the caller passes, so it
// participates in the caller's transaction.
type Resolver struct {
	store *ledger.Store
	log   *logrus.Logger
}

// NewResolver creates a resolver backed by the given store.
func NewResolver(store *ledger.Store, log *logrus.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

// Resolve looks up the account by its natural key, creating it if absent.
// On every call the last-synced timestamp advances, and a non-empty name or
// card unique id overwrites the stored value (last-write-wins).
//
// A unique-constraint violation on create means another writer inserted the
// same natural key concurrently; the row is re-read and treated as found.
func (r *Resolver) Resolve(ctx context.Context, q ledger.Querier, accountType models.AccountType, institution models.Institution, number, name, cardUID string) (models.Account, error) {
	now := time.Now()

	a, err := r.store.GetAccountByNaturalKey(ctx, q, accountType, institution, number)
	switch {
	case err == nil:
		if err := r.store.TouchAccount(ctx, q, a.ID, name, cardUID, now); err != nil {
			return a, err
		}
		if name != "" {
			a.Name = name
		}
		if cardUID != "" {
			a.CardUniqueID = cardUID
		}
		a.LastSyncedAt = now
		return a, nil

	case errors.Is(err, ledger.ErrNotFound):
		created, err := r.store.InsertAccount(ctx, q, models.Account{
			Type:         accountType,
			Institution:  institution,
			Number:       number,
			Name:         name,
			CardUniqueID: cardUID,
			CreatedAt:    now,
			LastSyncedAt: now,
			Active:       true,
		})
		if err == nil {
			r.log.WithFields(logrus.Fields{
				"institution": institution,
				"account":     number,
			}).Info("Discovered new account")
			return created, nil
		}
		if !ledger.IsUniqueViolation(err) {
			return created, fmt.Errorf("create account %s/%s: %w", institution, number, err)
		}
		// Lost the race; the row exists now.
		a, err = r.store.GetAccountByNaturalKey(ctx, q, accountType, institution, number)
		if err != nil {
			return a, fmt.Errorf("re-read account %s/%s after conflict: %w", institution, number, err)
		}
		if err := r.store.TouchAccount(ctx, q, a.ID, name, cardUID, now); err != nil {
			return a, err
		}
		a.LastSyncedAt = now
		return a, nil

	default:
		return a, err
	}
}
