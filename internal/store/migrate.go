package store

import (
	"context"
	"fmt"
)

const schemaVersion = 1

var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS settings (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS applications (
  id TEXT PRIMARY KEY,
  company_name TEXT NOT NULL,
  position_title TEXT NOT NULL,
  status TEXT NOT NULL,
  platform TEXT NOT NULL,
  application_date TEXT NOT NULL,
  url TEXT,
  contact_email TEXT,
  source TEXT NOT NULL DEFAULT 'manual',
  email_message_id TEXT UNIQUE,
  created_at TEXT NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS status_history (
  id TEXT PRIMARY KEY,
  application_id TEXT NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
  from_status TEXT NOT NULL,
  to_status TEXT NOT NULL,
  notes TEXT NOT NULL DEFAULT '',
  changed_at TEXT NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS sync_state (
  id TEXT PRIMARY KEY CHECK (id = 'singleton'),
  sync_in_progress INTEGER NOT NULL DEFAULT 0,
  last_sync_at TEXT,
  last_history_id TEXT,
  total_synced INTEGER NOT NULL DEFAULT 0
);`,
	`INSERT OR IGNORE INTO sync_state(id) VALUES ('singleton');`,
	`CREATE INDEX IF NOT EXISTS idx_applications_date ON applications(application_date);`,
	`CREATE INDEX IF NOT EXISTS idx_status_history_app ON status_history(application_id, changed_at);`,
}

// Migrate brings the schema up to date, tracking the version in
// PRAGMA user_version.
func (d *DB) Migrate(ctx context.Context) error {
	tx, err := d.Pool.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.GetContext(ctx, &v, `PRAGMA user_version;`); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v >= schemaVersion {
		return tx.Commit()
	}

	for _, stmt := range schemaV1 {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}
