package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"dlev/finsync/internal/models"
)

const txnColumns = `id, account_id, external_id, txn_date, processed_date, description, amount, currency,
	charged_amount, charged_currency, txn_type, status, raw_category, category, user_category, memo,
	installment_no, installments`

func scanTransaction(row interface{ Scan(...any) error }) (models.Transaction, error) {
	var t models.Transaction
	var date, processed string
	err := row.Scan(&t.ID, &t.AccountID, &t.ExternalID, &date, &processed, &t.Description,
		&t.Amount, &t.Currency, &t.ChargedAmount, &t.ChargedCcy, &t.Type, &t.Status,
		&t.RawCategory, &t.Category, &t.UserCategory, &t.Memo, &t.InstallmentNo, &t.Installments)
	if err != nil {
		return t, err
	}
	t.Date = parseDay(date)
	t.ProcessedDate = parseDay(processed)
	return t, nil
}

// GetTransactionByDedupKey looks up a transaction by the compound key that
// defines its identity. The external id participates even when empty so that
// id-less sources still dedup on (date, description, amount).
func (s *Store) GetTransactionByDedupKey(ctx context.Context, q Querier, accountID int64, externalID string, date time.Time, description string, amount decimal.Decimal) (models.Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+txnColumns+` FROM transactions
		 WHERE account_id = ? AND external_id = ? AND txn_date = ? AND description = ? AND amount = ?`,
		accountID, externalID, formatDay(date), description, amount)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	if err != nil {
		return t, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// InsertTransaction creates a new transaction row. Category and user_category
// start empty; only raw_category is taken from the source.
func (s *Store) InsertTransaction(ctx context.Context, q Querier, t models.Transaction) (models.Transaction, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO transactions (account_id, external_id, txn_date, processed_date, description, amount, currency,
		   charged_amount, charged_currency, txn_type, status, raw_category, category, user_category, memo,
		   installment_no, installments)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', ?, ?, ?)`,
		t.AccountID, t.ExternalID, formatDay(t.Date), formatDay(t.ProcessedDate), t.Description,
		t.Amount, t.Currency, t.ChargedAmount, string(t.ChargedCcy), t.Type, t.Status,
		t.RawCategory, t.Memo, t.InstallmentNo, t.Installments)
	if err != nil {
		return t, err
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return t, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

// UpdateTransactionMutable refreshes the fields that legitimately change
// after creation: status, processed date and the charged amount of a
// transaction that settled. Identity fields and all three category tiers are
// deliberately not touched here.
func (s *Store) UpdateTransactionMutable(ctx context.Context, q Querier, id int64, status models.TransactionStatus, processedDate time.Time, chargedAmount decimal.NullDecimal, chargedCcy models.Currency) error {
	_, err := q.ExecContext(ctx,
		`UPDATE transactions SET status = ?, processed_date = ?, charged_amount = ?, charged_currency = ? WHERE id = ?`,
		status, formatDay(processedDate), chargedAmount, string(chargedCcy), id)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", id, err)
	}
	return nil
}

// SetTransactionCategory writes the system-derived middle tier. Only the
// category maintenance pass calls this.
func (s *Store) SetTransactionCategory(ctx context.Context, q Querier, id int64, category string) error {
	if _, err := q.ExecContext(ctx, `UPDATE transactions SET category = ? WHERE id = ?`, category, id); err != nil {
		return fmt.Errorf("set category on %d: %w", id, err)
	}
	return nil
}

// SetTransactionUserCategory writes the manual-override tier. An empty string
// clears the override.
func (s *Store) SetTransactionUserCategory(ctx context.Context, q Querier, id int64, category string) error {
	res, err := q.ExecContext(ctx, `UPDATE transactions SET user_category = ? WHERE id = ?`, category, id)
	if err != nil {
		return fmt.Errorf("set user category on %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	AccountID     int64
	From          time.Time
	To            time.Time
	Uncategorized bool // only rows whose derived category tier is still empty
}

// ListTransactions returns transactions matching the filter, newest first.
func (s *Store) ListTransactions(ctx context.Context, q Querier, f TransactionFilter) ([]models.Transaction, error) {
	query := `SELECT ` + txnColumns + ` FROM transactions WHERE 1=1`
	var args []any
	if f.AccountID != 0 {
		query += ` AND account_id = ?`
		args = append(args, f.AccountID)
	}
	if !f.From.IsZero() {
		query += ` AND txn_date >= ?`
		args = append(args, formatDay(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND txn_date <= ?`
		args = append(args, formatDay(f.To))
	}
	if f.Uncategorized {
		query += ` AND category = ''`
	}
	query += ` ORDER BY txn_date DESC, id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
