// Package report issues read queries against the ledger for the reporting
// surfaces. Aggregation happens inside the store with the effective-category
// expression pushed down, so grouped reports never materialize and
// re-classify rows one at a time.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"dlev/finsync/internal/category"
	"dlev/finsync/internal/ledger"
	"dlev/finsync/internal/models"
)

// CategoryTotal is one row of a spending-by-category report.
type CategoryTotal struct {
	Category string
	Count    int
	Total    decimal.Decimal
}

// MonthTotal is one row of a monthly totals report.
type MonthTotal struct {
	Month string // YYYY-MM
	Count int
	Total decimal.Decimal
}

// AccountSummary pairs an account with its most recent balance snapshot.
type AccountSummary struct {
	Account     models.Account
	BalanceDate time.Time
	Total       decimal.NullDecimal
	Currency    models.Currency
}

// SpendingByCategory aggregates transaction amounts grouped by effective
// category over the date range.
func SpendingByCategory(ctx context.Context, q ledger.Querier, from, to time.Time) ([]CategoryTotal, error) {
	// Amounts are stored as decimal text but SQLite can only sum REAL.
	// Cent-precision sums stay exact well past any single-user volume
	// (float64 holds 15 significant digits); results are rounded back to
	// cents on scan.
	query := `SELECT ` + category.EffectiveSQL + ` AS effective, COUNT(*), SUM(CAST(amount AS REAL))
		FROM transactions WHERE 1=1`
	var args []any
	if !from.IsZero() {
		query += ` AND txn_date >= ?`
		args = append(args, from.Format(models.DateLayout))
	}
	if !to.IsZero() {
		query += ` AND txn_date <= ?`
		args = append(args, to.Format(models.DateLayout))
	}
	query += ` GROUP BY effective ORDER BY SUM(CAST(amount AS REAL)) ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("spending by category: %w", err)
	}
	defer rows.Close()

	var out []CategoryTotal
	for rows.Next() {
		var ct CategoryTotal
		var total float64
		if err := rows.Scan(&ct.Category, &ct.Count, &total); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		ct.Total = decimal.NewFromFloat(total).Round(2)
		out = append(out, ct)
	}
	return out, rows.Err()
}

// MonthlyTotals aggregates transaction amounts per calendar month.
func MonthlyTotals(ctx context.Context, q ledger.Querier, from, to time.Time) ([]MonthTotal, error) {
	// Same REAL-sum tradeoff as SpendingByCategory.
	query := `SELECT substr(txn_date, 1, 7) AS month, COUNT(*), SUM(CAST(amount AS REAL))
		FROM transactions WHERE 1=1`
	var args []any
	if !from.IsZero() {
		query += ` AND txn_date >= ?`
		args = append(args, from.Format(models.DateLayout))
	}
	if !to.IsZero() {
		query += ` AND txn_date <= ?`
		args = append(args, to.Format(models.DateLayout))
	}
	query += ` GROUP BY month ORDER BY month`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()

	var out []MonthTotal
	for rows.Next() {
		var mt MonthTotal
		var total float64
		if err := rows.Scan(&mt.Month, &mt.Count, &total); err != nil {
			return nil, fmt.Errorf("scan month total: %w", err)
		}
		mt.Total = decimal.NewFromFloat(total).Round(2)
		out = append(out, mt)
	}
	return out, rows.Err()
}

// AccountSummaries returns every account joined with its latest balance in a
// single query.
func AccountSummaries(ctx context.Context, q ledger.Querier) ([]AccountSummary, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT a.id, a.account_type, a.institution, a.account_number, a.name, a.card_unique_id,
		       a.created_at, a.last_synced_at, a.active,
		       COALESCE(b.balance_date, ''), b.total, COALESCE(b.currency, '')
		FROM accounts a
		LEFT JOIN balances b ON b.account_id = a.id
		  AND b.balance_date = (SELECT MAX(balance_date) FROM balances WHERE account_id = a.id)
		ORDER BY a.institution, a.account_number`)
	if err != nil {
		return nil, fmt.Errorf("account summaries: %w", err)
	}
	defer rows.Close()

	var out []AccountSummary
	for rows.Next() {
		var s AccountSummary
		var createdAt, lastSynced, balanceDate string
		var total sql.NullString
		if err := rows.Scan(&s.Account.ID, &s.Account.Type, &s.Account.Institution, &s.Account.Number,
			&s.Account.Name, &s.Account.CardUniqueID, &createdAt, &lastSynced, &s.Account.Active,
			&balanceDate, &total, &s.Currency); err != nil {
			return nil, fmt.Errorf("scan account summary: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			s.Account.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339, lastSynced); err == nil {
			s.Account.LastSyncedAt = t
		}
		if t, err := time.Parse(models.DateLayout, balanceDate); err == nil {
			s.BalanceDate = t
		}
		if total.Valid {
			d, err := decimal.NewFromString(total.String)
			if err != nil {
				return nil, fmt.Errorf("parse balance total %q: %w", total.String, err)
			}
			s.Total = decimal.NewNullDecimal(d)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
