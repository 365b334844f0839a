package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"jobtrack-engine/internal/domain"
)

type applicationRow struct {
	ID              string         `db:"id"`
	CompanyName     string         `db:"company_name"`
	PositionTitle   string         `db:"position_title"`
	Status          string         `db:"status"`
	Platform        string         `db:"platform"`
	ApplicationDate string         `db:"application_date"`
	URL             sql.NullString `db:"url"`
	ContactEmail    sql.NullString `db:"contact_email"`
	Source          string         `db:"source"`
	EmailMessageID  sql.NullString `db:"email_message_id"`
	CreatedAt       string         `db:"created_at"`
}

func (r applicationRow) toDomain() domain.Application {
	return domain.Application{
		ID:              r.ID,
		CompanyName:     r.CompanyName,
		PositionTitle:   r.PositionTitle,
		Status:          domain.Status(r.Status),
		Platform:        domain.Platform(r.Platform),
		ApplicationDate: parseTime(r.ApplicationDate),
		URL:             nullable(r.URL),
		ContactEmail:    nullable(r.ContactEmail),
		Source:          domain.Source(r.Source),
		EmailMessageID:  nullable(r.EmailMessageID),
		CreatedAt:       parseTime(r.CreatedAt),
	}
}

type historyRow struct {
	ID            string `db:"id"`
	ApplicationID string `db:"application_id"`
	FromStatus    string `db:"from_status"`
	ToStatus      string `db:"to_status"`
	Notes         string `db:"notes"`
	ChangedAt     string `db:"changed_at"`
}

func (r historyRow) toDomain() domain.StatusChange {
	return domain.StatusChange{
		ID:            r.ID,
		ApplicationID: r.ApplicationID,
		FromStatus:    domain.Status(r.FromStatus),
		ToStatus:      domain.Status(r.ToStatus),
		Notes:         r.Notes,
		ChangedAt:     parseTime(r.ChangedAt),
	}
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// CreateApplication inserts app together with its initial status history
// entry. Missing ids and timestamps are filled in. A second application for
// the same email message id fails with ErrDuplicate.
func (d *DB) CreateApplication(ctx context.Context, app domain.Application, notes string) (string, error) {
	tx, err := d.Pool.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := insertApplication(ctx, tx, app, notes)
	if err != nil {
		return "", err
	}
	return id, tx.Commit()
}

// PromoteReview turns the pending review stored under key into an
// application in one transaction: the application and its history are
// inserted, the review is deleted and the synced counter is bumped.
func (d *DB) PromoteReview(ctx context.Context, key string, app domain.Application, notes string) (string, error) {
	tx, err := d.Pool.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return "", err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrNotFound
	}

	id, err := insertApplication(ctx, tx, app, notes)
	if err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sync_state SET total_synced = total_synced + 1 WHERE id = 'singleton'`); err != nil {
		return "", err
	}
	return id, tx.Commit()
}

func insertApplication(ctx context.Context, tx *sqlx.Tx, app domain.Application, notes string) (string, error) {
	now := time.Now()
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	if app.ApplicationDate.IsZero() {
		app.ApplicationDate = now
	}
	if app.Status == "" {
		app.Status = domain.StatusApplied
	}
	if app.Source == "" {
		app.Source = domain.SourceManual
	}

	_, err := tx.ExecContext(ctx, `
INSERT INTO applications(
  id, company_name, position_title, status, platform, application_date,
  url, contact_email, source, email_message_id, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		app.ID, app.CompanyName, app.PositionTitle, string(app.Status), string(app.Platform),
		formatTime(app.ApplicationDate), nullString(app.URL), nullString(app.ContactEmail),
		string(app.Source), nullString(app.EmailMessageID), formatTime(app.CreatedAt),
	)
	if isUniqueViolation(err) {
		return "", ErrDuplicate
	}
	if err != nil {
		return "", fmt.Errorf("insert application: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO status_history(id, application_id, from_status, to_status, notes, changed_at)
VALUES (?, ?, ?, ?, ?, ?)
`, uuid.NewString(), app.ID, string(app.Status), string(app.Status), notes, formatTime(app.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("insert status history: %w", err)
	}
	return app.ID, nil
}

func (d *DB) ApplicationExistsForMessage(ctx context.Context, messageID string) (bool, error) {
	var n int
	err := d.Pool.GetContext(ctx, &n, `SELECT COUNT(*) FROM applications WHERE email_message_id = ?`, messageID)
	return n > 0, err
}

func (d *DB) GetApplication(ctx context.Context, id string) (domain.Application, error) {
	var row applicationRow
	err := d.Pool.GetContext(ctx, &row, `SELECT * FROM applications WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Application{}, ErrNotFound
	}
	if err != nil {
		return domain.Application{}, err
	}

	app := row.toDomain()
	var hist []historyRow
	if err := d.Pool.SelectContext(ctx, &hist, `
SELECT * FROM status_history WHERE application_id = ? ORDER BY changed_at
`, id); err != nil {
		return domain.Application{}, err
	}
	for _, h := range hist {
		app.History = append(app.History, h.toDomain())
	}
	return app, nil
}

// ListApplications returns applications newest first with their status
// history. limit <= 0 means all.
func (d *DB) ListApplications(ctx context.Context, limit int) ([]domain.Application, error) {
	q := `SELECT * FROM applications ORDER BY application_date DESC, created_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []applicationRow
	if err := d.Pool.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}

	var hist []historyRow
	if err := d.Pool.SelectContext(ctx, &hist, `SELECT * FROM status_history ORDER BY changed_at`); err != nil {
		return nil, err
	}
	byApp := make(map[string][]domain.StatusChange)
	for _, h := range hist {
		byApp[h.ApplicationID] = append(byApp[h.ApplicationID], h.toDomain())
	}

	out := make([]domain.Application, 0, len(rows))
	for _, r := range rows {
		app := r.toDomain()
		app.History = byApp[app.ID]
		out = append(out, app)
	}
	return out, nil
}
