package store

import (
	"context"
	"database/sql"
	"time"

	"jobtrack-engine/internal/domain"
)

type syncRow struct {
	ID             string         `db:"id"`
	SyncInProgress bool           `db:"sync_in_progress"`
	LastSyncAt     sql.NullString `db:"last_sync_at"`
	LastHistoryID  sql.NullString `db:"last_history_id"`
	TotalSynced    int64          `db:"total_synced"`
}

func (d *DB) GetSyncState(ctx context.Context) (domain.SyncState, error) {
	var row syncRow
	if err := d.Pool.GetContext(ctx, &row, `SELECT * FROM sync_state WHERE id = 'singleton'`); err != nil {
		return domain.SyncState{}, err
	}

	st := domain.SyncState{
		SyncInProgress: row.SyncInProgress,
		LastHistoryID:  nullable(row.LastHistoryID),
		TotalSynced:    row.TotalSynced,
	}
	if row.LastSyncAt.Valid {
		t := parseTime(row.LastSyncAt.String)
		st.LastSyncAt = &t
	}
	return st, nil
}

// TryBeginSync sets the in-progress flag if it is clear and reports whether
// this caller won it.
func (d *DB) TryBeginSync(ctx context.Context) (bool, error) {
	res, err := d.Pool.ExecContext(ctx, `
UPDATE sync_state SET sync_in_progress = 1
WHERE id = 'singleton' AND sync_in_progress = 0
`)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// FinishSync records a completed run and clears the in-progress flag.
// A nil checkpoint keeps the stored one.
func (d *DB) FinishSync(ctx context.Context, at time.Time, checkpoint *string, imported int) error {
	_, err := d.Pool.ExecContext(ctx, `
UPDATE sync_state SET
  sync_in_progress = 0,
  last_sync_at = ?,
  last_history_id = COALESCE(?, last_history_id),
  total_synced = total_synced + ?
WHERE id = 'singleton'
`, formatTime(at), nullString(checkpoint), imported)
	return err
}

// EndSync clears the in-progress flag without touching anything else.
func (d *DB) EndSync(ctx context.Context) error {
	_, err := d.Pool.ExecContext(ctx, `UPDATE sync_state SET sync_in_progress = 0 WHERE id = 'singleton'`)
	return err
}

// Disconnect removes the given credential settings and resets sync state.
func (d *DB) Disconnect(ctx context.Context, keys []string) error {
	tx, err := d.Pool.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, k); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE sync_state SET sync_in_progress = 0, last_sync_at = NULL, last_history_id = NULL
WHERE id = 'singleton'
`); err != nil {
		return err
	}
	return tx.Commit()
}
