// Package registry persists the push device registrations in SQLite.
package registry

import (
	"context"
	"database/sql"
	_ "embed"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentstation/worldfeed/pkg/errors"
)

//go:embed schema.sql
var schema string

// Device is one registered push target.
type Device struct {
	ID        string    `json:"id"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a SQLite device registry. A single connection serializes writes.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens the registry at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.NewValidationError("path", path, "registry path is required")
	}
	clean := filepath.Clean(path)
	dsn := "file:" + clean + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.WrapIO("open", clean, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.WrapIO("ping", clean, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.WrapIO("migrate", clean, err)
	}
	return &Store{db: db, path: clean, now: time.Now}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Add registers a device. Registering a known device is a no-op.
func (s *Store) Add(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.NewValidationError("id", id, "device id is required")
	}
	now := s.now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO devices (id, added_at, updated_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		id, now, now)
	if err != nil {
		return errors.WrapIO("insert", s.path, err)
	}
	return nil
}

// Remove deletes devices and reports how many existed.
func (s *Store) Remove(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.WrapIO("begin", s.path, err)
	}
	defer func() { _ = tx.Rollback() }()

	removed := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
		if err != nil {
			return 0, errors.WrapIO("delete", s.path, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, errors.WrapIO("delete", s.path, err)
		}
		removed += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.WrapIO("commit", s.path, err)
	}
	return removed, nil
}

// Replace swaps a device id for the canonical id the push service reported.
func (s *Store) Replace(ctx context.Context, oldID, newID string) error {
	if strings.TrimSpace(newID) == "" {
		return errors.NewValidationError("new_id", newID, "device id is required")
	}
	if oldID == newID {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapIO("begin", s.path, err)
	}
	defer func() { _ = tx.Rollback() }()

	addedAt := s.now().Unix()
	row := tx.QueryRowContext(ctx, `SELECT added_at FROM devices WHERE id = ?`, oldID)
	if err := row.Scan(&addedAt); err != nil && err != sql.ErrNoRows {
		return errors.WrapIO("select", s.path, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, oldID); err != nil {
		return errors.WrapIO("delete", s.path, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO devices (id, added_at, updated_at) VALUES (?, ?, ?) ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		newID, addedAt, s.now().Unix()); err != nil {
		return errors.WrapIO("insert", s.path, err)
	}
	if err := tx.Commit(); err != nil {
		return errors.WrapIO("commit", s.path, err)
	}
	return nil
}

// List returns every device ordered by registration time.
func (s *Store) List(ctx context.Context) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, added_at, updated_at FROM devices ORDER BY added_at, id`)
	if err != nil {
		return nil, errors.WrapIO("select", s.path, err)
	}
	defer func() { _ = rows.Close() }()

	var devices []Device
	for rows.Next() {
		var (
			d                  Device
			addedAt, updatedAt int64
		)
		if err := rows.Scan(&d.ID, &addedAt, &updatedAt); err != nil {
			return nil, errors.WrapIO("scan", s.path, err)
		}
		d.AddedAt = time.Unix(addedAt, 0).UTC()
		d.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapIO("select", s.path, err)
	}
	return devices, nil
}

// IDs returns the ids of every device.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	devices, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(devices))
	for i, d := range devices {
		ids[i] = d.ID
	}
	return ids, nil
}

// Count returns the number of registered devices.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&n); err != nil {
		return 0, errors.WrapIO("count", s.path, err)
	}
	return n, nil
}
