// Package prefs is the durable client-side key-value store: the bearer token
// and user preferences survive restarts here, nothing else does.
package prefs

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// Storage keys. Fixed so that values written by one run are found by the next.
const (
	KeyToken       = "auth.token"
	KeyAutoFill    = "autofill.mode"
	KeyPerfOverlay = "perf.overlay"
)

// AutoFillMode controls whether map-captured coordinates and/or fetched
// elevation pre-populate a creation form.
type AutoFillMode string

const (
	AutoFillCoordsElevation AutoFillMode = "coords-elevation"
	AutoFillElevation       AutoFillMode = "elevation"
	AutoFillNone            AutoFillMode = "none"
)

// ParseAutoFillMode maps stored text to a mode. The parse is total: anything
// unrecognized, including the empty string, is the safe default "none".
func ParseAutoFillMode(s string) AutoFillMode {
	switch AutoFillMode(s) {
	case AutoFillCoordsElevation:
		return AutoFillCoordsElevation
	case AutoFillElevation:
		return AutoFillElevation
	default:
		return AutoFillNone
	}
}

// Store is a single-table key-value store on an embedded SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path. ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open prefs db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS prefs (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create prefs table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored value for key, or "" if the key is absent.
func (s *Store) Get(key string) (string, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM prefs WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read pref %s: %w", key, err)
	}
	return v, nil
}

// Set writes key immediately; preferences are persisted on every change.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO prefs (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("write pref %s: %w", key, err)
	}
	return nil
}

// Delete removes key; deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM prefs WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete pref %s: %w", key, err)
	}
	return nil
}

// AutoFill reads the persisted auto-fill preference, defaulting to "none".
func (s *Store) AutoFill() AutoFillMode {
	v, err := s.Get(KeyAutoFill)
	if err != nil {
		return AutoFillNone
	}
	return ParseAutoFillMode(v)
}

// SetAutoFill persists the auto-fill preference.
func (s *Store) SetAutoFill(mode AutoFillMode) error {
	return s.Set(KeyAutoFill, string(mode))
}

// PerfOverlay reads the performance-overlay toggle; absent or garbage is off.
func (s *Store) PerfOverlay() bool {
	v, err := s.Get(KeyPerfOverlay)
	return err == nil && v == "true"
}

// SetPerfOverlay persists the performance-overlay toggle.
func (s *Store) SetPerfOverlay(on bool) error {
	if on {
		return s.Set(KeyPerfOverlay, "true")
	}
	return s.Set(KeyPerfOverlay, "false")
}
