package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Setting struct {
	Key       string `db:"key"`
	Value     string `db:"value"`
	UpdatedAt string `db:"updated_at"`
}

func (d *DB) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := d.Pool.GetContext(ctx, &v, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO settings(key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`, key, value, formatTime(time.Now()))
	return err
}

// DeleteSetting reports whether a row was removed.
func (d *DB) DeleteSetting(ctx context.Context, key string) (bool, error) {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (d *DB) ListSettings(ctx context.Context, prefix string) ([]Setting, error) {
	var out []Setting
	err := d.Pool.SelectContext(ctx, &out, `
SELECT key, value, updated_at FROM settings
WHERE substr(key, 1, ?) = ?
ORDER BY key
`, len(prefix), prefix)
	return out, err
}

func (d *DB) CountSettings(ctx context.Context, prefix string) (int, error) {
	var n int
	err := d.Pool.GetContext(ctx, &n, `SELECT COUNT(*) FROM settings WHERE substr(key, 1, ?) = ?`, len(prefix), prefix)
	return n, err
}
