package syncer_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dlev/finsync/internal/config"
	"dlev/finsync/internal/creds"
	"dlev/finsync/internal/ledger"
	"dlev/finsync/internal/models"
	"dlev/finsync/internal/source"
	"dlev/finsync/internal/syncer"
	"dlev/finsync/internal/syncerror"
)

// fakeSource scripts the source boundary: per-label authentication failures,
// transient failures for the first N calls, and fixed or per-label account
// payloads.
type fakeSource struct {
	accounts      []models.RawAccount
	accountsFor   map[string][]models.RawAccount
	failAuthFor   map[string]bool
	transientLeft int
	fetchErr      error

	authCalls  int
	fetchCalls int
	closed     int
	lastLabel  string
}

type fakeSession struct{ src *fakeSource }

func (s *fakeSession) Close() error {
	s.src.closed++
	return nil
}

func (f *fakeSource) Authenticate(ctx context.Context, set creds.Set) (source.Session, error) {
	f.authCalls++
	f.lastLabel = set.Label
	if f.transientLeft > 0 {
		f.transientLeft--
		return nil, &syncerror.NetworkError{Institution: "cal", Err: errors.New("connection reset")}
	}
	if f.failAuthFor[set.Label] {
		return nil, &syncerror.AuthenticationError{Institution: "cal", Err: errors.New("bad password")}
	}
	return &fakeSession{src: f}, nil
}

func (f *fakeSource) Fetch(ctx context.Context, sess source.Session, window models.DateRange) ([]models.RawAccount, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.accountsFor != nil {
		return f.accountsFor[f.lastLabel], nil
	}
	return f.accounts, nil
}

func newStore(t *testing.T) *ledger.Store {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	store, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func newOrchestrator(store *ledger.Store, fake *fakeSource) *syncer.Orchestrator {
	return syncer.NewOrchestrator(store,
		func(models.Institution) (source.Source, error) { return fake, nil },
		syncer.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond},
		quietLog())
}

func window() models.DateRange {
	return models.DateRange{
		From: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func supermarket() models.RawTransaction {
	return models.RawTransaction{Date: "2024-01-01", Description: "Supermarket", Amount: "-100.00"}
}

func fuel() models.RawTransaction {
	return models.RawTransaction{Date: "2024-01-03", Description: "Fuel", Amount: "-250.00"}
}

func TestRun_OverlappingWindowsDedup(t *testing.T) {
	store := newStore(t)
	fake := &fakeSource{accounts: []models.RawAccount{
		{AccountNumber: "1234", Transactions: []models.RawTransaction{supermarket()}},
	}}
	orch := newOrchestrator(store, fake)
	ctx := context.Background()

	first, err := orch.Run(ctx, models.SyncTypeCreditCard, models.InstitutionCal, creds.Set{Label: "main"}, window())
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, 1, first.RecordsAdded)
	assert.Equal(t, 0, first.RecordsUpdated)

	// Re-sync with a wider window re-fetching the same transaction plus a new
	// one: the re-fetched record is unchanged, not updated.
	fake.accounts = []models.RawAccount{
		{AccountNumber: "1234", Transactions: []models.RawTransaction{supermarket(), fuel()}},
	}
	second, err := orch.Run(ctx, models.SyncTypeCreditCard, models.InstitutionCal, creds.Set{Label: "main"}, window())
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Equal(t, 1, second.RecordsAdded)
	assert.Equal(t, 0, second.RecordsUpdated)
	require.Len(t, second.Accounts, 1)
	assert.Equal(t, 1, second.Accounts[0].Unchanged)

	acc, err := store.GetAccountByNaturalKey(ctx, store.DB(), models.AccountTypeCreditCard, models.InstitutionCal, "1234")
	require.NoError(t, err)
	txns, err := store.ListTransactions(ctx, store.DB(), ledger.TransactionFilter{AccountID: acc.ID})
	require.NoError(t, err)
	assert.Len(t, txns, 2)

	// Sessions were released on both runs.
	assert.Equal(t, 2, fake.closed)
}

func TestRun_MalformedRecordsSkippedNotFatal(t *testing.T) {
	store := newStore(t)
	fake := &fakeSource{accounts: []models.RawAccount{
		{AccountNumber: "1234", Transactions: []models.RawTransaction{
			supermarket(),
			{Date: "2024-01-02", Description: "", Amount: "-5"},       // missing description
			{Date: "2024-01-02", Description: "Cafe", Amount: "oops"}, // bad amount
		}},
	}}
	orch := newOrchestrator(store, fake)

	res, err := orch.Run(context.Background(), models.SyncTypeCreditCard, models.InstitutionCal, creds.Set{}, window())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.RecordsAdded)
	assert.Equal(t, 2, res.RecordsSkipped)
}

func TestRun_BalanceSnapshotRecorded(t *testing.T) {
	store := newStore(t)
	fake := &fakeSource{accounts: []models.RawAccount{
		{
			AccountNumber: "acc-1",
			Name:          "Pension fund",
			Balance:       &models.RawBalance{Date: "2024-01-01", Total: "50000", ProfitLoss: "1200"},
		},
	}}
	orch := newOrchestrator(store, fake)
	ctx := context.Background()

	res, err := orch.Run(ctx, models.SyncTypePension, models.InstitutionMenora, creds.Set{}, window())
	require.NoError(t, err)
	require.Len(t, res.Accounts, 1)
	assert.Equal(t, "created", res.Accounts[0].Balance)

	acc, err := store.GetAccountByNaturalKey(ctx, store.DB(), models.AccountTypePension, models.InstitutionMenora, "acc-1")
	require.NoError(t, err)
	bal, err := store.LatestBalance(ctx, store.DB(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "50000", bal.Total.String())
}

func TestRun_FailureKeepsAuditRowDiscardsData(t *testing.T) {
	store := newStore(t)
	fake := &fakeSource{
		fetchErr: &syncerror.DataExtractionError{Institution: "cal", Permanent: true, Err: errors.New("layout changed")},
	}
	orch := newOrchestrator(store, fake)
	ctx := context.Background()

	res, err := orch.Run(ctx, models.SyncTypeCreditCard, models.InstitutionCal, creds.Set{}, window())
	require.NoError(t, err, "a source failure is a sync outcome, not a store error")
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "layout changed")
	assert.Equal(t, 1, fake.closed, "session released on the failure path too")

	// No account materialized.
	_, err = store.GetAccountByNaturalKey(ctx, store.DB(), models.AccountTypeCreditCard, models.InstitutionCal, "1234")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	// The audit trail survives with the failure recorded.
	runs, err := store.ListSyncHistory(ctx, store.DB(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.SyncStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].ErrorMessage, "layout changed")
	assert.False(t, runs[0].CompletedAt.IsZero())
}

func TestRun_TransientFailuresRetried(t *testing.T) {
	store := newStore(t)
	fake := &fakeSource{
		transientLeft: 2,
		accounts:      []models.RawAccount{{AccountNumber: "1234", Transactions: []models.RawTransaction{supermarket()}}},
	}
	orch := newOrchestrator(store, fake)

	res, err := orch.Run(context.Background(), models.SyncTypeCreditCard, models.InstitutionCal, creds.Set{}, window())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, fake.authCalls, "two transient failures then success")
}

func TestRun_AuthenticationErrorNotRetried(t *testing.T) {
	store := newStore(t)
	fake := &fakeSource{failAuthFor: map[string]bool{"main": true}}
	orch := newOrchestrator(store, fake)

	res, err := orch.Run(context.Background(), models.SyncTypeCreditCard, models.InstitutionCal, creds.Set{Label: "main"}, window())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, fake.authCalls, "bad credentials are a permanent failure")
	assert.Contains(t, res.ErrorMessage, "authentication failed")
}

func testConfig(labels ...string) *config.Config {
	cfg := &config.Config{}
	ic := config.InstitutionConfig{Name: "cal", Type: "credit_card"}
	for _, l := range labels {
		ic.Credentials = append(ic.Credentials, config.CredentialConfig{Label: l, Username: l})
	}
	cfg.Institutions = []config.InstitutionConfig{ic}
	return cfg
}

func TestCoordinator_PartialFailureIsolation(t *testing.T) {
	store := newStore(t)
	fake := &fakeSource{
		failAuthFor: map[string]bool{"b": true},
	}
	// Each credential set exposes its own card.
	fake.accounts = []models.RawAccount{
		{AccountNumber: "1111", Transactions: []models.RawTransaction{supermarket()}},
	}
	orch := newOrchestrator(store, fake)
	cfg := testConfig("a", "b", "c")
	coord := syncer.NewCoordinator(orch, cfg, creds.NewProvider(cfg), quietLog())

	report, err := coord.SyncOne(context.Background(), models.InstitutionCal, "", window())
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalSucceeded)
	assert.Equal(t, 1, report.TotalFailed)
	assert.Equal(t, "partial", report.Outcome())
	assert.Equal(t, 0, report.ExitCode(), "partial success is not a hard failure")
	require.Len(t, report.Results, 3)
	assert.True(t, report.Results[0].Success)
	assert.False(t, report.Results[1].Success)
	assert.True(t, report.Results[2].Success, "failure on b does not abort c")
}

func TestCoordinator_BadSourceDataDoesNotAbortSiblings(t *testing.T) {
	store := newStore(t)
	// Set a's payload is rotten: one healthy account with a malformed record
	// that gets skipped, then an account the source never numbered. Set b is
	// fine.
	fake := &fakeSource{accountsFor: map[string][]models.RawAccount{
		"a": {
			{AccountNumber: "1111", Transactions: []models.RawTransaction{
				supermarket(),
				{Date: "2024-01-02", Description: "", Amount: "-5"},
			}},
			{AccountNumber: "", Transactions: []models.RawTransaction{fuel()}},
		},
		"b": {
			{AccountNumber: "2222", Transactions: []models.RawTransaction{fuel()}},
		},
	}}
	orch := newOrchestrator(store, fake)
	cfg := testConfig("a", "b")
	coord := syncer.NewCoordinator(orch, cfg, creds.NewProvider(cfg), quietLog())
	ctx := context.Background()

	report, err := coord.SyncOne(ctx, models.InstitutionCal, "", window())
	require.NoError(t, err, "rotten source data is a per-set outcome, not a run abort")
	require.Len(t, report.Results, 2, "set b still ran")

	failed := report.Results[0]
	assert.False(t, failed.Success)
	assert.Contains(t, failed.ErrorMessage, "account without a number")
	assert.Equal(t, 0, failed.RecordsAdded)
	assert.Equal(t, 0, failed.RecordsSkipped, "counters reflect the rollback")

	assert.True(t, report.Results[1].Success)
	assert.Equal(t, 1, report.TotalSucceeded)
	assert.Equal(t, 1, report.TotalFailed)
	assert.Equal(t, "partial", report.Outcome())
	assert.Equal(t, 0, report.ExitCode())

	// Set a's writes were rolled back; set b's survived.
	_, err = store.GetAccountByNaturalKey(ctx, store.DB(), models.AccountTypeCreditCard, models.InstitutionCal, "1111")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = store.GetAccountByNaturalKey(ctx, store.DB(), models.AccountTypeCreditCard, models.InstitutionCal, "2222")
	require.NoError(t, err)

	// Both runs left an audit row, the first one failed.
	runs, err := store.ListSyncHistory(ctx, store.DB(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	statuses := []models.SyncStatus{runs[0].Status, runs[1].Status}
	assert.Contains(t, statuses, models.SyncStatusFailed)
	assert.Contains(t, statuses, models.SyncStatusSuccess)
}

func TestCoordinator_AllFailed(t *testing.T) {
	store := newStore(t)
	fake := &fakeSource{failAuthFor: map[string]bool{"a": true, "b": true}}
	orch := newOrchestrator(store, fake)
	cfg := testConfig("a", "b")
	coord := syncer.NewCoordinator(orch, cfg, creds.NewProvider(cfg), quietLog())

	report, err := coord.SyncOne(context.Background(), models.InstitutionCal, "", window())
	require.NoError(t, err)
	assert.Equal(t, "failed", report.Outcome())
	assert.Equal(t, 1, report.ExitCode())
}

func TestCoordinator_SelectorPicksOneSet(t *testing.T) {
	store := newStore(t)
	fake := &fakeSource{accounts: []models.RawAccount{
		{AccountNumber: "1111", Transactions: []models.RawTransaction{supermarket()}},
	}}
	orch := newOrchestrator(store, fake)
	cfg := testConfig("a", "b")
	coord := syncer.NewCoordinator(orch, cfg, creds.NewProvider(cfg), quietLog())

	report, err := coord.SyncOne(context.Background(), models.InstitutionCal, "b", window())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "b", report.Results[0].Label)

	_, err = coord.SyncOne(context.Background(), models.InstitutionCal, "nope", window())
	assert.Error(t, err)
}

func TestCoordinator_UnconfiguredInstitution(t *testing.T) {
	store := newStore(t)
	orch := newOrchestrator(store, &fakeSource{})
	cfg := testConfig("a")
	coord := syncer.NewCoordinator(orch, cfg, creds.NewProvider(cfg), quietLog())

	report := &syncer.Report{}
	err := coord.SyncInstitution(context.Background(), report, models.InstitutionMax, "", window())
	assert.Error(t, err)
}
