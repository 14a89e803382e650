// Package syncer drives synchronization runs: one orchestrated, transactional
// run per credential set, fanned out sequentially across credential sets and
// institutions by the coordinator.
package syncer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"dlev/finsync/internal/creds"
	"dlev/finsync/internal/dedup"
	"dlev/finsync/internal/identity"
	"dlev/finsync/internal/ledger"
	"dlev/finsync/internal/models"
	"dlev/finsync/internal/normalize"
	"dlev/finsync/internal/source"
	"dlev/finsync/internal/syncerror"
)

// AccountOutcome is the per-account detail folded into a run's result and
// serialized into the sync history details column.
type AccountOutcome struct {
	AccountNumber string `json:"account_number"`
	Name          string `json:"name,omitempty"`
	Balance       string `json:"balance,omitempty"` // created/updated when a snapshot was written
	Added         int    `json:"added"`
	Updated       int    `json:"updated"`
	Unchanged     int    `json:"unchanged"`
	Skipped       int    `json:"skipped"`
}

// Result is the outcome of one orchestrated run for one credential set.
type Result struct {
	SyncType       models.SyncType
	Institution    models.Institution
	Label          string
	Success        bool
	HistoryID      int64
	AccountsSynced int
	RecordsAdded   int
	RecordsUpdated int
	RecordsSkipped int
	ErrorMessage   string
	Accounts       []AccountOutcome
}

// RetryPolicy bounds the exponential backoff applied to source calls.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// Orchestrator executes one sync attempt for one credential set: fetch,
// normalize, resolve, upsert, all data writes inside a single transaction,
// bracketed by one sync history record.
type Orchestrator struct {
	store     *ledger.Store
	resolver  *identity.Resolver
	engine    *dedup.Engine
	sourceFor func(models.Institution) (source.Source, error)
	retry     RetryPolicy
	log       *logrus.Logger
}

// NewOrchestrator wires an orchestrator. sourceFor is the variant factory;
// tests substitute fakes through it.
func NewOrchestrator(store *ledger.Store, sourceFor func(models.Institution) (source.Source, error), retry RetryPolicy, log *logrus.Logger) *Orchestrator {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	if retry.InitialDelay <= 0 {
		retry.InitialDelay = 500 * time.Millisecond
	}
	return &Orchestrator{
		store:     store,
		resolver:  identity.NewResolver(store, log),
		engine:    dedup.NewEngine(store, log),
		sourceFor: sourceFor,
		retry:     retry,
		log:       log,
	}
}

// Run executes one sync attempt. Source failures, authentication failures and
// exhausted retries are folded into the returned Result; the returned error is
// non-nil only for store-level failures, the one condition that aborts the
// whole run.
func (o *Orchestrator) Run(ctx context.Context, syncType models.SyncType, institution models.Institution, set creds.Set, window models.DateRange) (Result, error) {
	res := Result{SyncType: syncType, Institution: institution, Label: set.Label}

	historyID, err := o.store.CreateSyncHistory(ctx, o.store.DB(), syncType, institution, time.Now())
	if err != nil {
		return res, err
	}
	res.HistoryID = historyID

	log := o.log.WithFields(logrus.Fields{
		"institution": institution,
		"label":       set.Label,
		"history_id":  historyID,
	})
	log.Info("Starting sync run")

	raws, fetchErr := o.fetch(ctx, institution, set, window)
	if fetchErr != nil {
		log.WithError(fetchErr).Warn("Sync run failed before any write")
		res.ErrorMessage = fetchErr.Error()
		return res, o.finalizeFailed(ctx, historyID, fetchErr)
	}

	txErr := o.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, raw := range raws {
			outcome, err := o.syncAccount(ctx, tx, syncType, institution, raw)
			if err != nil {
				return err
			}
			res.Accounts = append(res.Accounts, outcome)
			res.AccountsSynced++
			res.RecordsAdded += outcome.Added
			res.RecordsUpdated += outcome.Updated
			res.RecordsSkipped += outcome.Skipped
		}
		details, err := json.Marshal(res.Accounts)
		if err != nil {
			return fmt.Errorf("marshal run details: %w", err)
		}
		return o.store.FinalizeSyncHistory(ctx, tx, historyID,
			models.SyncStatusSuccess, res.RecordsAdded, res.RecordsUpdated, "", string(details), time.Now())
	})
	if txErr != nil {
		// Data writes are rolled back; the audit row still records the failure.
		res.Accounts = nil
		res.AccountsSynced = 0
		res.RecordsAdded = 0
		res.RecordsUpdated = 0
		res.RecordsSkipped = 0
		res.ErrorMessage = txErr.Error()
		log.WithError(txErr).Error("Sync run failed, data writes rolled back")
		if finErr := o.store.FinalizeSyncHistory(ctx, o.store.DB(), historyID,
			models.SyncStatusFailed, 0, 0, txErr.Error(), "", time.Now()); finErr != nil {
			log.WithError(finErr).Error("Could not finalize sync history")
		}
		// Bad source data fails this attempt only; the coordinator keeps
		// going. A store failure propagates and aborts the whole run.
		if syncerror.IsSourceFailure(txErr) {
			return res, nil
		}
		return res, txErr
	}

	res.Success = true
	log.WithFields(logrus.Fields{
		"accounts": res.AccountsSynced,
		"added":    res.RecordsAdded,
		"updated":  res.RecordsUpdated,
		"skipped":  res.RecordsSkipped,
	}).Info("Sync run completed")
	return res, nil
}

// fetch authenticates and pulls raw records, retrying transient failures with
// exponential backoff. The session is released on every exit path.
func (o *Orchestrator) fetch(ctx context.Context, institution models.Institution, set creds.Set, window models.DateRange) ([]models.RawAccount, error) {
	src, err := o.sourceFor(institution)
	if err != nil {
		return nil, err
	}

	var sess source.Session
	if err := o.withBackoff(ctx, func() error {
		var err error
		sess, err = src.Authenticate(ctx, set)
		return err
	}); err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			o.log.WithError(err).Warn("Closing source session failed")
		}
	}()

	var raws []models.RawAccount
	if err := o.withBackoff(ctx, func() error {
		var err error
		raws, err = src.Fetch(ctx, sess, window)
		return err
	}); err != nil {
		return nil, err
	}
	return raws, nil
}

func (o *Orchestrator) withBackoff(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = o.retry.InitialDelay
	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !syncerror.IsTransient(err) {
			return backoff.Permanent(err)
		}
		o.log.WithError(err).Warn("Transient source failure, will retry")
		return err
	}
	return backoff.Retry(wrapped,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(o.retry.MaxAttempts-1)), ctx))
}

// syncAccount normalizes and upserts everything one raw account exposes.
// Malformed records are skipped and counted; store errors abort the
// transaction.
func (o *Orchestrator) syncAccount(ctx context.Context, tx *sql.Tx, syncType models.SyncType, institution models.Institution, raw models.RawAccount) (AccountOutcome, error) {
	outcome := AccountOutcome{AccountNumber: raw.AccountNumber, Name: raw.Name}
	if raw.AccountNumber == "" {
		return outcome, &syncerror.DataExtractionError{
			Institution: string(institution),
			Permanent:   true,
			Err:         errors.New("source returned an account without a number"),
		}
	}

	account, err := o.resolver.Resolve(ctx, tx, syncType.AccountType(), institution, raw.AccountNumber, raw.Name, raw.CardUniqueID)
	if err != nil {
		return outcome, err
	}

	if raw.Balance != nil {
		bal, err := normalize.Balance(*raw.Balance)
		if err != nil {
			if !syncerror.IsValidation(err) {
				return outcome, err
			}
			o.log.WithError(err).WithField("account", raw.AccountNumber).Warn("Skipping malformed balance")
			outcome.Skipped++
		} else {
			balOutcome, err := o.engine.UpsertBalance(ctx, tx, account.ID, bal)
			if err != nil {
				return outcome, err
			}
			outcome.Balance = string(balOutcome)
		}
	}

	for _, rawTxn := range raw.Transactions {
		txn, err := normalize.Transaction(rawTxn)
		if err != nil {
			if !syncerror.IsValidation(err) {
				return outcome, err
			}
			o.log.WithError(err).WithField("account", raw.AccountNumber).Warn("Skipping malformed transaction")
			outcome.Skipped++
			continue
		}
		upsert, err := o.engine.UpsertTransaction(ctx, tx, account.ID, txn)
		if err != nil {
			return outcome, err
		}
		switch upsert {
		case dedup.Created:
			outcome.Added++
		case dedup.Updated:
			outcome.Updated++
		default:
			outcome.Unchanged++
		}
	}
	return outcome, nil
}

func (o *Orchestrator) finalizeFailed(ctx context.Context, historyID int64, cause error) error {
	if err := o.store.FinalizeSyncHistory(ctx, o.store.DB(), historyID,
		models.SyncStatusFailed, 0, 0, cause.Error(), "", time.Now()); err != nil {
		// Losing the audit trail means the store itself is failing.
		return err
	}
	return nil
}
