package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"time-tracker/internal/domain"
	"time-tracker/internal/migrate"
	"time-tracker/internal/ports"
)

// Repository implements ports.Repository over database/sql. The SQL it issues
// is shared by the sqlite and mysql drivers; only truncation is dialect aware.
type Repository struct {
	db      *sql.DB
	dialect migrate.Dialect
	log     *slog.Logger
}

func New(db *sql.DB, dialect migrate.Dialect, log *slog.Logger) *Repository {
	return &Repository{db: db, dialect: dialect, log: log}
}

// DB exposes the pool for bootstrap code (migrations, health checks).
func (r *Repository) DB() *sql.DB { return r.db }

// Close closes the underlying pool.
func (r *Repository) Close() error { return r.db.Close() }

var _ ports.Repository = (*Repository)(nil)

const (
	entryColumns    = "id, label, created_at, updated_at, is_deleted"
	lineColumns     = "id, entry_id, description, started_at, ended_at, created_at, updated_at, is_deleted"
	durationColumns = "id, entry_line_id, started_at, ended_at, created_at, updated_at, is_deleted"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(s rowScanner) (domain.TrackerEntry, error) {
	var e domain.TrackerEntry
	err := s.Scan(&e.ID, &e.Label, &e.CreatedAt, &e.UpdatedAt, &e.IsDeleted)
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, err
}

func scanLine(s rowScanner) (domain.TrackerEntryLine, error) {
	var (
		l     domain.TrackerEntryLine
		ended sql.NullTime
	)
	err := s.Scan(&l.ID, &l.EntryID, &l.Desc, &l.StartedAt, &ended, &l.CreatedAt, &l.UpdatedAt, &l.IsDeleted)
	l.StartedAt = l.StartedAt.UTC()
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	l.EndedAt = nullTimePtr(ended)
	return l, err
}

func scanDuration(s rowScanner) (domain.TrackerEntryLineDuration, error) {
	var (
		d     domain.TrackerEntryLineDuration
		ended sql.NullTime
	)
	err := s.Scan(&d.ID, &d.EntryLineID, &d.StartedAt, &ended, &d.CreatedAt, &d.UpdatedAt, &d.IsDeleted)
	d.StartedAt = d.StartedAt.UTC()
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	d.EndedAt = nullTimePtr(ended)
	return d, err
}

func nullTimePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time.UTC()
	return &t
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNoRowsAffected
	}
	return nil
}

/* Tracker entries */

func (r *Repository) CreateEntry(ctx context.Context, e domain.TrackerEntry) (domain.TrackerEntry, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO tracker_entry (label, created_at, updated_at, is_deleted) VALUES (?, ?, ?, ?)",
		e.Label, e.CreatedAt.UTC(), e.UpdatedAt.UTC(), e.IsDeleted)
	if err != nil {
		return domain.TrackerEntry{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.TrackerEntry{}, err
	}
	created, err := r.GetEntry(ctx, id)
	if err != nil {
		return domain.TrackerEntry{}, err
	}
	if created == nil {
		return domain.TrackerEntry{}, fmt.Errorf("entry %d vanished after insert", id)
	}
	r.log.Debug("entry created", slog.Int64("id", id))
	return *created, nil
}

func (r *Repository) GetEntry(ctx context.Context, id int64) (*domain.TrackerEntry, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM tracker_entry WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) ListEntries(ctx context.Context) ([]domain.TrackerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM tracker_entry WHERE is_deleted = 0 ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.TrackerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateEntry(ctx context.Context, e domain.TrackerEntry) (domain.TrackerEntry, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE tracker_entry SET label = ?, updated_at = ? WHERE id = ? AND is_deleted = 0",
		e.Label, e.UpdatedAt.UTC(), e.ID)
	if err != nil {
		return domain.TrackerEntry{}, err
	}
	if err := affected(res); err != nil {
		return domain.TrackerEntry{}, err
	}
	updated, err := r.GetEntry(ctx, e.ID)
	if err != nil {
		return domain.TrackerEntry{}, err
	}
	if updated == nil {
		return domain.TrackerEntry{}, ports.ErrNoRowsAffected
	}
	return *updated, nil
}

// SoftDeleteEntry marks the entry deleted together with its live lines and
// their segments. Lines go first inside one transaction, so no reader sees a
// deleted entry with live lines.
func (r *Repository) SoftDeleteEntry(ctx context.Context, id int64, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE tracker_entry_line_duration
SET is_deleted = 1, updated_at = ?
WHERE is_deleted = 0
  AND entry_line_id IN (SELECT id FROM tracker_entry_line WHERE entry_id = ? AND is_deleted = 0)`,
		at.UTC(), id); err != nil {
		tx.Rollback()
		return err
	}
	lines, err := tx.ExecContext(ctx,
		"UPDATE tracker_entry_line SET is_deleted = 1, updated_at = ? WHERE entry_id = ? AND is_deleted = 0",
		at.UTC(), id)
	if err != nil {
		tx.Rollback()
		return err
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE tracker_entry SET is_deleted = 1, updated_at = ? WHERE id = ? AND is_deleted = 0",
		at.UTC(), id)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := affected(res); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	n, _ := lines.RowsAffected()
	r.log.Debug("entry soft-deleted", slog.Int64("id", id), slog.Int64("lines", n))
	return nil
}

/* Tracker entry lines */

// CreateLine inserts a line only while its entry is live; otherwise it returns
// ports.ErrNoRowsAffected.
func (r *Repository) CreateLine(ctx context.Context, l domain.TrackerEntryLine) (domain.TrackerEntryLine, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO tracker_entry_line
  (entry_id, description, started_at, ended_at, created_at, updated_at, is_deleted)
SELECT id, ?, ?, ?, ?, ?, ?
FROM tracker_entry
WHERE id = ? AND is_deleted = 0`,
		l.Desc, l.StartedAt.UTC(), timeArg(l.EndedAt), l.CreatedAt.UTC(), l.UpdatedAt.UTC(), l.IsDeleted, l.EntryID)
	if err != nil {
		return domain.TrackerEntryLine{}, err
	}
	if err := affected(res); err != nil {
		return domain.TrackerEntryLine{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.TrackerEntryLine{}, err
	}
	created, err := r.GetLine(ctx, id)
	if err != nil {
		return domain.TrackerEntryLine{}, err
	}
	if created == nil {
		return domain.TrackerEntryLine{}, fmt.Errorf("line %d vanished after insert", id)
	}
	r.log.Debug("line created", slog.Int64("id", id), slog.Int64("entry_id", l.EntryID))
	return *created, nil
}

func (r *Repository) GetLine(ctx context.Context, id int64) (*domain.TrackerEntryLine, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+lineColumns+" FROM tracker_entry_line WHERE id = ?", id)
	l, err := scanLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *Repository) ListLines(ctx context.Context) ([]domain.TrackerEntryLine, error) {
	return r.queryLines(ctx,
		"SELECT "+lineColumns+" FROM tracker_entry_line WHERE is_deleted = 0 ORDER BY created_at DESC, id DESC")
}

func (r *Repository) ListLinesForEntry(ctx context.Context, entryID int64) ([]domain.TrackerEntryLine, error) {
	return r.queryLines(ctx,
		"SELECT "+lineColumns+" FROM tracker_entry_line WHERE entry_id = ? AND is_deleted = 0 ORDER BY created_at DESC, id DESC",
		entryID)
}

func (r *Repository) queryLines(ctx context.Context, q string, args ...any) ([]domain.TrackerEntryLine, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.TrackerEntryLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateLine(ctx context.Context, l domain.TrackerEntryLine) (domain.TrackerEntryLine, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE tracker_entry_line SET description = ?, updated_at = ? WHERE id = ? AND is_deleted = 0",
		l.Desc, l.UpdatedAt.UTC(), l.ID)
	if err != nil {
		return domain.TrackerEntryLine{}, err
	}
	if err := affected(res); err != nil {
		return domain.TrackerEntryLine{}, err
	}
	updated, err := r.GetLine(ctx, l.ID)
	if err != nil {
		return domain.TrackerEntryLine{}, err
	}
	if updated == nil {
		return domain.TrackerEntryLine{}, ports.ErrNoRowsAffected
	}
	return *updated, nil
}

// SoftDeleteLine marks the line and all of its segments deleted in one transaction.
func (r *Repository) SoftDeleteLine(ctx context.Context, id int64, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE tracker_entry_line SET is_deleted = 1, updated_at = ? WHERE id = ? AND is_deleted = 0",
		at.UTC(), id)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := affected(res); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE tracker_entry_line_duration SET is_deleted = 1, updated_at = ? WHERE entry_line_id = ? AND is_deleted = 0",
		at.UTC(), id); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

/* Line durations */

// CreateDuration inserts a segment only while its line is live; otherwise it
// returns ports.ErrNoRowsAffected.
func (r *Repository) CreateDuration(ctx context.Context, d domain.TrackerEntryLineDuration) (domain.TrackerEntryLineDuration, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO tracker_entry_line_duration
  (entry_line_id, started_at, ended_at, created_at, updated_at, is_deleted)
SELECT id, ?, ?, ?, ?, ?
FROM tracker_entry_line
WHERE id = ? AND is_deleted = 0`,
		d.StartedAt.UTC(), timeArg(d.EndedAt), d.CreatedAt.UTC(), d.UpdatedAt.UTC(), d.IsDeleted, d.EntryLineID)
	if err != nil {
		return domain.TrackerEntryLineDuration{}, err
	}
	if err := affected(res); err != nil {
		return domain.TrackerEntryLineDuration{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.TrackerEntryLineDuration{}, err
	}
	return r.getDuration(ctx, id)
}

func (r *Repository) getDuration(ctx context.Context, id int64) (domain.TrackerEntryLineDuration, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+durationColumns+" FROM tracker_entry_line_duration WHERE id = ?", id)
	return scanDuration(row)
}

func (r *Repository) ListDurations(ctx context.Context, lineID int64) ([]domain.TrackerEntryLineDuration, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+durationColumns+" FROM tracker_entry_line_duration WHERE entry_line_id = ? AND is_deleted = 0 ORDER BY started_at DESC, id DESC",
		lineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.TrackerEntryLineDuration
	for rows.Next() {
		d, err := scanDuration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CloseDuration sets ended_at only if the segment is still live and open at
// execution time.
func (r *Repository) CloseDuration(ctx context.Context, id int64, endedAt time.Time) (domain.TrackerEntryLineDuration, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE tracker_entry_line_duration SET ended_at = ?, updated_at = ? WHERE id = ? AND ended_at IS NULL AND is_deleted = 0",
		endedAt.UTC(), endedAt.UTC(), id)
	if err != nil {
		return domain.TrackerEntryLineDuration{}, err
	}
	if err := affected(res); err != nil {
		return domain.TrackerEntryLineDuration{}, err
	}
	return r.getDuration(ctx, id)
}

func (r *Repository) SoftDeleteDuration(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE tracker_entry_line_duration SET is_deleted = 1, updated_at = ? WHERE id = ? AND is_deleted = 0",
		at.UTC(), id)
	if err != nil {
		return err
	}
	return affected(res)
}

// Truncate removes every row and resets id counters.
func (r *Repository) Truncate(ctx context.Context) error {
	return migrate.Truncate(ctx, r.db, r.dialect, r.log)
}
