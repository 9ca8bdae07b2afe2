// Package sqlitestore is the SQLite backend for checkpoint and
// recurring-pattern state, for installs that outgrow the JSON files.
// Both stores share one database file.
package sqlitestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rumor-ml/finledger/internal/checkpoint"
	"github.com/rumor-ml/finledger/internal/recurring"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS recurring_patterns (
	name   TEXT PRIMARY KEY,
	config TEXT NOT NULL
);
`

// DB wraps the shared database handle.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the state database and applies the
// schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// Checkpoints returns the checkpoint store view of the database.
func (d *DB) Checkpoints() *CheckpointStore {
	return &CheckpointStore{db: d.db}
}

// Patterns returns the recurring-pattern store view of the database.
func (d *DB) Patterns() *PatternStore {
	return &PatternStore{db: d.db}
}

// CheckpointStore implements checkpoint.Store on the checkpoints
// table. Rows are written through immediately, so Save is a no-op;
// the write-on-miss placeholder still lands in the table where the
// operator can fill it in.
type CheckpointStore struct {
	db *sql.DB
}

var _ checkpoint.Store = (*CheckpointStore)(nil)

// Lookup implements checkpoint.Store.
func (s *CheckpointStore) Lookup(scope string, date time.Time) (decimal.Decimal, error) {
	key := checkpoint.Key(scope, date)

	var raw string
	err := s.db.QueryRow(`SELECT value FROM checkpoints WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		if _, err := s.db.Exec(`INSERT INTO checkpoints (key, value) VALUES (?, '')`, key); err != nil {
			return decimal.Zero, fmt.Errorf("failed to record checkpoint placeholder %s: %w", key, err)
		}
		return decimal.Zero, checkpoint.ErrMissing
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query checkpoint %s: %w", key, err)
	}

	if raw == "" {
		return decimal.Zero, checkpoint.ErrMissing
	}
	bal, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid checkpoint value %q for %s: %w", raw, key, err)
	}
	return bal, nil
}

// Set implements checkpoint.Store.
func (s *CheckpointStore) Set(scope string, date time.Time, balance decimal.Decimal) {
	key := checkpoint.Key(scope, date)
	_, _ = s.db.Exec(
		`INSERT INTO checkpoints (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, balance.String(),
	)
}

// Save implements checkpoint.Store. Writes are already durable.
func (s *CheckpointStore) Save() error {
	return nil
}

// PatternStore implements recurring.Store on the recurring_patterns
// table. Each pattern keeps its JSON form in a single column, so the
// file format and the database format stay interchangeable.
type PatternStore struct {
	db *sql.DB
}

var _ recurring.Store = (*PatternStore)(nil)

// Load implements recurring.Store.
func (s *PatternStore) Load() (map[string]*recurring.Pattern, error) {
	rows, err := s.db.Query(`SELECT name, config FROM recurring_patterns`)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	patterns := make(map[string]*recurring.Pattern)
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan pattern row: %w", err)
		}
		var p recurring.Pattern
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to parse pattern %q: %w", name, err)
		}
		patterns[name] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read patterns: %w", err)
	}
	return patterns, nil
}

// Save implements recurring.Store with a full rewrite in one
// transaction, mirroring the file store's whole-state save.
func (s *PatternStore) Save(patterns map[string]*recurring.Pattern) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin pattern save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM recurring_patterns`); err != nil {
		return fmt.Errorf("failed to clear patterns: %w", err)
	}
	for name, p := range patterns {
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal pattern %q: %w", name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO recurring_patterns (name, config) VALUES (?, ?)`,
			name, string(raw),
		); err != nil {
			return fmt.Errorf("failed to write pattern %q: %w", name, err)
		}
	}
	return tx.Commit()
}
