package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dlev/finsync/internal/models"
)

// ErrNotFound is returned by lookups that matched no row.
var ErrNotFound = errors.New("ledger: not found")

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(models.DateLayout)
}

func parseDay(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

const accountColumns = `id, account_type, institution, account_number, name, card_unique_id, created_at, last_synced_at, active`

func scanAccount(row interface{ Scan(...any) error }) (models.Account, error) {
	var a models.Account
	var createdAt, lastSynced string
	err := row.Scan(&a.ID, &a.Type, &a.Institution, &a.Number, &a.Name, &a.CardUniqueID, &createdAt, &lastSynced, &a.Active)
	if err != nil {
		return a, err
	}
	a.CreatedAt = parseTime(createdAt)
	a.LastSyncedAt = parseTime(lastSynced)
	return a, nil
}

// GetAccountByNaturalKey looks up an account by (type, institution, number).
func (s *Store) GetAccountByNaturalKey(ctx context.Context, q Querier, accountType models.AccountType, institution models.Institution, number string) (models.Account, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_type = ? AND institution = ? AND account_number = ?`,
		accountType, institution, number)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	if err != nil {
		return a, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// InsertAccount creates a new account row and returns it with its id set.
func (s *Store) InsertAccount(ctx context.Context, q Querier, a models.Account) (models.Account, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO accounts (account_type, institution, account_number, name, card_unique_id, created_at, last_synced_at, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Type, a.Institution, a.Number, a.Name, a.CardUniqueID,
		formatTime(a.CreatedAt), formatTime(a.LastSyncedAt), a.Active)
	if err != nil {
		return a, err
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return a, fmt.Errorf("insert account: %w", err)
	}
	return a, nil
}

// TouchAccount bumps last_synced_at and, when non-empty, overwrites the
// stored display name and card unique id (last-write-wins; institutions
// rename accounts and reissue cards).
func (s *Store) TouchAccount(ctx context.Context, q Querier, id int64, name, cardUID string, syncedAt time.Time) error {
	set := `last_synced_at = ?`
	args := []any{formatTime(syncedAt)}
	if name != "" {
		set += `, name = ?`
		args = append(args, name)
	}
	if cardUID != "" {
		set += `, card_unique_id = ?`
		args = append(args, cardUID)
	}
	args = append(args, id)
	if _, err := q.ExecContext(ctx, `UPDATE accounts SET `+set+` WHERE id = ?`, args...); err != nil {
		return fmt.Errorf("touch account %d: %w", id, err)
	}
	return nil
}

// ListAccounts returns all accounts ordered by institution then number.
func (s *Store) ListAccounts(ctx context.Context, q Querier) ([]models.Account, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY institution, account_number`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
