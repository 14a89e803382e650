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

const balanceColumns = `id, account_id, balance_date, total, available, used, blocked, profit_loss, profit_loss_pct, currency`

func scanBalance(row interface{ Scan(...any) error }) (models.Balance, error) {
	var b models.Balance
	var date string
	err := row.Scan(&b.ID, &b.AccountID, &date, &b.Total,
		&b.Available, &b.Used, &b.Blocked, &b.ProfitLoss, &b.ProfitLossPct, &b.Currency)
	if err != nil {
		return b, err
	}
	b.Date = parseDay(date)
	return b, nil
}

// GetBalance looks up the snapshot for (account, day).
func (s *Store) GetBalance(ctx context.Context, q Querier, accountID int64, day time.Time) (models.Balance, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+balanceColumns+` FROM balances WHERE account_id = ? AND balance_date = ?`,
		accountID, formatDay(day))
	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrNotFound
	}
	if err != nil {
		return b, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// InsertBalance creates a new snapshot row.
func (s *Store) InsertBalance(ctx context.Context, q Querier, b models.Balance) (models.Balance, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO balances (account_id, balance_date, total, available, used, blocked, profit_loss, profit_loss_pct, currency)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.AccountID, formatDay(b.Date), b.Total,
		b.Available, b.Used, b.Blocked, b.ProfitLoss, b.ProfitLossPct, b.Currency)
	if err != nil {
		return b, err
	}
	b.ID, err = res.LastInsertId()
	if err != nil {
		return b, fmt.Errorf("insert balance: %w", err)
	}
	return b, nil
}

// UpdateBalance overwrites an existing snapshot in place. Optional fields are
// only written when supplied, so a partial re-sync merges with prior data
// instead of nulling it out.
func (s *Store) UpdateBalance(ctx context.Context, q Querier, id int64, b models.Balance) error {
	set := "total = ?, currency = ?"
	args := []any{b.Total, b.Currency}
	for _, f := range []struct {
		col string
		val decimal.NullDecimal
	}{
		{"available", b.Available},
		{"used", b.Used},
		{"blocked", b.Blocked},
		{"profit_loss", b.ProfitLoss},
		{"profit_loss_pct", b.ProfitLossPct},
	} {
		if f.val.Valid {
			set += ", " + f.col + " = ?"
			args = append(args, f.val)
		}
	}
	args = append(args, id)
	if _, err := q.ExecContext(ctx, `UPDATE balances SET `+set+` WHERE id = ?`, args...); err != nil {
		return fmt.Errorf("update balance %d: %w", id, err)
	}
	return nil
}

// LatestBalance returns the most recent snapshot for an account.
func (s *Store) LatestBalance(ctx context.Context, q Querier, accountID int64) (models.Balance, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+balanceColumns+` FROM balances WHERE account_id = ? ORDER BY balance_date DESC LIMIT 1`,
		accountID)
	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrNotFound
	}
	if err != nil {
		return b, fmt.Errorf("latest balance: %w", err)
	}
	return b, nil
}
