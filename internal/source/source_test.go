package source_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dlev/finsync/internal/config"
	"dlev/finsync/internal/creds"
	"dlev/finsync/internal/models"
	"dlev/finsync/internal/source"
	"dlev/finsync/internal/syncerror"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func window(from, to string) models.DateRange {
	f, _ := time.Parse(models.DateLayout, from)
	t, _ := time.Parse(models.DateLayout, to)
	return models.DateRange{From: f, To: t}
}

const cardCSV = `Date,Description,Amount,Category
2024-01-05,Shufersal Deal,-100.50,מזון
2024-01-20,Paz,-250.00,דלק
2023-06-01,Old charge,-10.00,
not-a-date,Broken row,-5.00,
`

func writeCardDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestCardExportFetch(t *testing.T) {
	dir := writeCardDir(t, map[string]string{
		"1234.csv":  cardCSV,
		"notes.txt": "ignored",
		"5678.csv":  "Date,Description,Amount\n2024-01-10,Coffee,-12.00\n",
	})
	src, err := source.ForInstitution(models.InstitutionCal, config.SourceConfig{Kind: "file", Path: dir}, quietLog())
	require.NoError(t, err)

	ctx := context.Background()
	sess, err := src.Authenticate(ctx, creds.Set{})
	require.NoError(t, err)
	defer sess.Close()

	accounts, err := src.Fetch(ctx, sess, window("2024-01-01", "2024-12-31"))
	require.NoError(t, err)
	require.Len(t, accounts, 2, "one account per csv file, non-csv entries skipped")

	byNumber := map[string]models.RawAccount{}
	for _, a := range accounts {
		byNumber[a.AccountNumber] = a
	}
	card := byNumber["1234"]
	// The out-of-window row is dropped; the unparsable date passes through
	// for the normalizer to reject and count.
	require.Len(t, card.Transactions, 3)
	assert.Equal(t, "Shufersal Deal", card.Transactions[0].Description)
	assert.Equal(t, "מזון", card.Transactions[0].Category)
	assert.Equal(t, "not-a-date", card.Transactions[2].Date)

	require.Len(t, byNumber["5678"].Transactions, 1)
}

func TestCardExportAuthenticateMissingDir(t *testing.T) {
	src, err := source.ForInstitution(models.InstitutionMax,
		config.SourceConfig{Path: filepath.Join(t.TempDir(), "nope")}, quietLog())
	require.NoError(t, err)

	_, err = src.Authenticate(context.Background(), creds.Set{})
	require.Error(t, err)
	assert.True(t, syncerror.IsAuthentication(err))
	assert.False(t, syncerror.IsTransient(err))
}

func TestCardExportMalformedFile(t *testing.T) {
	dir := writeCardDir(t, map[string]string{
		"1234.csv": "Date,Description\n\"unterminated,-1\n",
	})
	src, err := source.ForInstitution(models.InstitutionCal, config.SourceConfig{Path: dir}, quietLog())
	require.NoError(t, err)

	ctx := context.Background()
	sess, err := src.Authenticate(ctx, creds.Set{})
	require.NoError(t, err)
	defer sess.Close()

	_, err = src.Fetch(ctx, sess, window("2024-01-01", "2024-12-31"))
	require.Error(t, err)
	assert.False(t, syncerror.IsTransient(err), "a broken export layout will not fix itself on retry")
}

func TestPortfolioExportFetch(t *testing.T) {
	body := `[
	  {
	    "account_number": "pension-1",
	    "name": "Pension fund",
	    "balance": {"date": "2024-01-31", "total": "50000", "profit_loss": "1200"},
	    "transactions": [
	      {"date": "2024-01-15", "description": "Deposit", "amount": "2000"},
	      {"date": "2022-01-15", "description": "Ancient deposit", "amount": "1000"}
	    ]
	  }
	]`
	path := filepath.Join(t.TempDir(), "portfolio.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	src, err := source.ForInstitution(models.InstitutionMeitav, config.SourceConfig{Path: path}, quietLog())
	require.NoError(t, err)

	ctx := context.Background()
	sess, err := src.Authenticate(ctx, creds.Set{})
	require.NoError(t, err)
	defer sess.Close()

	accounts, err := src.Fetch(ctx, sess, window("2024-01-01", "2024-12-31"))
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "pension-1", accounts[0].AccountNumber)
	require.NotNil(t, accounts[0].Balance)
	assert.Equal(t, "50000", accounts[0].Balance.Total)
	require.Len(t, accounts[0].Transactions, 1, "out-of-window deposit filtered")
}

func TestPortfolioExportMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	src, err := source.ForInstitution(models.InstitutionMenora, config.SourceConfig{Path: path}, quietLog())
	require.NoError(t, err)

	ctx := context.Background()
	sess, err := src.Authenticate(ctx, creds.Set{})
	require.NoError(t, err)
	defer sess.Close()

	_, err = src.Fetch(ctx, sess, window("2024-01-01", "2024-12-31"))
	require.Error(t, err)
	assert.False(t, syncerror.IsTransient(err))
}

func TestForInstitutionRejectsUnknown(t *testing.T) {
	_, err := source.ForInstitution(models.Institution("hapoalim"), config.SourceConfig{}, quietLog())
	assert.Error(t, err)

	_, err = source.ForInstitution(models.InstitutionCal, config.SourceConfig{Kind: "scraper"}, quietLog())
	assert.Error(t, err)
}
