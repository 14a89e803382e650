package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"

	"dlev/finsync/internal/creds"
	"dlev/finsync/internal/dateutils"
	"dlev/finsync/internal/models"
	"dlev/finsync/internal/syncerror"
)

// fileSession is the session handle of the file-backed variants. There is no
// remote connection to tear down, but the handle still flows through the
// orchestrator's acquire/release discipline like any scraper session would.
type fileSession struct {
	path string
}

func (s *fileSession) Close() error { return nil }

// cardExportSource reads credit-card statement exports from a directory: one
// CSV file per card, named <account_number>.csv, columns matching
// models.RawTransaction.
type cardExportSource struct {
	institution models.Institution
	dir         string
	log         *logrus.Logger
}

func newCardExportSource(inst models.Institution, dir string, log *logrus.Logger) *cardExportSource {
	return &cardExportSource{institution: inst, dir: dir, log: log}
}

func (s *cardExportSource) Authenticate(ctx context.Context, set creds.Set) (Session, error) {
	info, err := os.Stat(s.dir)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", s.dir)
		}
		return nil, &syncerror.AuthenticationError{Institution: string(s.institution), Err: err}
	}
	return &fileSession{path: s.dir}, nil
}

func (s *cardExportSource) Fetch(ctx context.Context, sess Session, window models.DateRange) ([]models.RawAccount, error) {
	fs, ok := sess.(*fileSession)
	if !ok {
		return nil, fmt.Errorf("%s: session is not a file session", s.institution)
	}
	entries, err := os.ReadDir(fs.path)
	if err != nil {
		return nil, &syncerror.NetworkError{Institution: string(s.institution), Err: err}
	}

	var accounts []models.RawAccount
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		number := strings.TrimSuffix(entry.Name(), ".csv")
		txns, err := s.readCard(filepath.Join(fs.path, entry.Name()), window)
		if err != nil {
			return nil, err
		}
		s.log.WithFields(logrus.Fields{
			"institution":  s.institution,
			"account":      number,
			"transactions": len(txns),
		}).Debug("Read card export")
		accounts = append(accounts, models.RawAccount{
			AccountNumber: number,
			Transactions:  txns,
		})
	}
	return accounts, nil
}

func (s *cardExportSource) readCard(path string, window models.DateRange) ([]models.RawTransaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &syncerror.NetworkError{Institution: string(s.institution), Err: err}
	}
	defer f.Close()

	var all []models.RawTransaction
	if err := gocsv.UnmarshalFile(f, &all); err != nil {
		return nil, &syncerror.DataExtractionError{
			Institution: string(s.institution),
			Field:       filepath.Base(path),
			Permanent:   true,
			Err:         err,
		}
	}
	return filterWindow(all, window), nil
}

// portfolioExportSource reads broker/pension portfolio exports: one JSON file
// holding the full account list with balances and transactions.
type portfolioExportSource struct {
	institution models.Institution
	path        string
	log         *logrus.Logger
}

func newPortfolioExportSource(inst models.Institution, path string, log *logrus.Logger) *portfolioExportSource {
	return &portfolioExportSource{institution: inst, path: path, log: log}
}

func (s *portfolioExportSource) Authenticate(ctx context.Context, set creds.Set) (Session, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, &syncerror.AuthenticationError{Institution: string(s.institution), Err: err}
	}
	return &fileSession{path: s.path}, nil
}

func (s *portfolioExportSource) Fetch(ctx context.Context, sess Session, window models.DateRange) ([]models.RawAccount, error) {
	fs, ok := sess.(*fileSession)
	if !ok {
		return nil, fmt.Errorf("%s: session is not a file session", s.institution)
	}
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return nil, &syncerror.NetworkError{Institution: string(s.institution), Err: err}
	}
	var accounts []models.RawAccount
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, &syncerror.DataExtractionError{
			Institution: string(s.institution),
			Field:       filepath.Base(fs.path),
			Permanent:   true,
			Err:         err,
		}
	}
	for i := range accounts {
		accounts[i].Transactions = filterWindow(accounts[i].Transactions, window)
	}
	s.log.WithFields(logrus.Fields{
		"institution": s.institution,
		"accounts":    len(accounts),
	}).Debug("Read portfolio export")
	return accounts, nil
}

// filterWindow keeps transactions whose date falls inside the fetch window.
// Records with unparsable dates pass through so the normalizer rejects and
// counts them instead of them silently vanishing here.
func filterWindow(txns []models.RawTransaction, window models.DateRange) []models.RawTransaction {
	out := txns[:0:0]
	for _, t := range txns {
		d, err := dateutils.ParseDate(t.Date)
		if err != nil || window.Contains(d) {
			out = append(out, t)
		}
	}
	return out
}
