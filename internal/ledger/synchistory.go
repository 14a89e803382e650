package ledger

import (
	"context"
	"fmt"
	"time"

	"dlev/finsync/internal/models"
)

// CreateSyncHistory opens an audit record in status in_progress and returns
// its id. Called on the plain connection, not inside the data transaction, so
// the row survives a rollback of the run's data writes.
func (s *Store) CreateSyncHistory(ctx context.Context, q Querier, syncType models.SyncType, institution models.Institution, startedAt time.Time) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO sync_history (sync_type, institution, status, started_at) VALUES (?, ?, ?, ?)`,
		syncType, institution, models.SyncStatusInProgress, formatTime(startedAt))
	if err != nil {
		return 0, fmt.Errorf("create sync history: %w", err)
	}
	return res.LastInsertId()
}

// FinalizeSyncHistory moves an in_progress record to its terminal status.
// The WHERE clause keeps the transition one-way: a record already finalized
// is never rewritten.
func (s *Store) FinalizeSyncHistory(ctx context.Context, q Querier, id int64, status models.SyncStatus, added, updated int, errMsg, details string, completedAt time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE sync_history
		 SET status = ?, records_added = ?, records_updated = ?, error_message = ?, details = ?, completed_at = ?
		 WHERE id = ? AND status = ?`,
		status, added, updated, errMsg, details, formatTime(completedAt), id, models.SyncStatusInProgress)
	if err != nil {
		return fmt.Errorf("finalize sync history %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finalize sync history %d: record is not in progress", id)
	}
	return nil
}

// ListSyncHistory returns the most recent runs, newest first.
func (s *Store) ListSyncHistory(ctx context.Context, q Querier, limit int) ([]models.SyncHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := q.QueryContext(ctx,
		`SELECT id, sync_type, institution, status, started_at, completed_at, records_added, records_updated, error_message, details
		 FROM sync_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync history: %w", err)
	}
	defer rows.Close()

	var out []models.SyncHistory
	for rows.Next() {
		var h models.SyncHistory
		var started, completed string
		if err := rows.Scan(&h.ID, &h.SyncType, &h.Institution, &h.Status, &started, &completed,
			&h.RecordsAdded, &h.RecordsUpdated, &h.ErrorMessage, &h.Details); err != nil {
			return nil, fmt.Errorf("scan sync history: %w", err)
		}
		h.StartedAt = parseTime(started)
		h.CompletedAt = parseTime(completed)
		out = append(out, h)
	}
	return out, rows.Err()
}

// GetSyncHistory fetches one run by id.
func (s *Store) GetSyncHistory(ctx context.Context, q Querier, id int64) (models.SyncHistory, error) {
	var h models.SyncHistory
	var started, completed string
	err := q.QueryRowContext(ctx,
		`SELECT id, sync_type, institution, status, started_at, completed_at, records_added, records_updated, error_message, details
		 FROM sync_history WHERE id = ?`, id).
		Scan(&h.ID, &h.SyncType, &h.Institution, &h.Status, &started, &completed,
			&h.RecordsAdded, &h.RecordsUpdated, &h.ErrorMessage, &h.Details)
	if err != nil {
		return h, fmt.Errorf("get sync history %d: %w", id, err)
	}
	h.StartedAt = parseTime(started)
	h.CompletedAt = parseTime(completed)
	return h, nil
}
