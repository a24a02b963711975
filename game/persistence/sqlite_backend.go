package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS maps (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	preset     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	state      TEXT NOT NULL
);
`

// SQLiteBackend implements Backend with a single SQLite table
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the database at path and ensures the schema
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// Close closes the database
func (sb *SQLiteBackend) Close() error {
	return sb.db.Close()
}

// Save upserts the record
func (sb *SQLiteBackend) Save(ctx context.Context, rec Record) error {
	if err := ValidateID(rec.ID); err != nil {
		return err
	}
	state, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("failed to marshal map state: %w", err)
	}

	now := time.Now().UTC()
	created, updated := rec.CreatedAt, rec.UpdatedAt
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = now
	}

	_, err = sb.db.ExecContext(ctx, `
		INSERT INTO maps (id, name, preset, created_at, updated_at, state)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			preset = excluded.preset,
			updated_at = excluded.updated_at,
			state = excluded.state`,
		rec.ID, rec.Name, rec.Preset, created, updated, string(state))
	if err != nil {
		return fmt.Errorf("failed to save map %s: %w", rec.ID, err)
	}
	return nil
}

// Load reads a record by ID
func (sb *SQLiteBackend) Load(ctx context.Context, id string) (Record, error) {
	if err := ValidateID(id); err != nil {
		return Record{}, err
	}

	var (
		rec   Record
		state string
	)
	err := sb.db.QueryRowContext(ctx,
		`SELECT id, name, preset, created_at, updated_at, state FROM maps WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Name, &rec.Preset, &rec.CreatedAt, &rec.UpdatedAt, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrMapNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to load map %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(state), &rec.State); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal map state: %w", err)
	}
	return rec, nil
}

// Delete removes a record
func (sb *SQLiteBackend) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	res, err := sb.db.ExecContext(ctx, `DELETE FROM maps WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete map %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete map %s: %w", id, err)
	}
	if n == 0 {
		return ErrMapNotFound
	}
	return nil
}

// List returns all map IDs in order
func (sb *SQLiteBackend) List(ctx context.Context) ([]string, error) {
	rows, err := sb.db.QueryContext(ctx, `SELECT id FROM maps ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list maps: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan map id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
