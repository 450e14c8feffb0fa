// Package agentstate persists the agent's per-owner settings: the bearer
// credential, the backend URL, and the auto-sync switch. The credential
// lives here so only the background executor ever touches it.
package agentstate

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	keyAuthToken   = "auth_token"
	keyBackendURL  = "backend_url"
	keyAutoSync    = "auto_sync_enabled"
	schemaVersion  = 1
	defaultBaseDir = "~/.unifychats"
)

// Store wraps the agent's local SQLite database.
type Store struct {
	db *sql.DB
}

// Open initializes the state database under baseDir. The directory is
// created 0700 since it holds a credential.
func Open(baseDir string) (*Store, error) {
	if baseDir == "" {
		baseDir = expandHome(defaultBaseDir)
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	_ = os.Chmod(baseDir, 0o700)

	dbPath := filepath.Join(baseDir, "agent.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	_ = os.Chmod(dbPath, 0o600)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version < 1 {
		_, err := db.Exec(`
			CREATE TABLE IF NOT EXISTS settings (
			  key   TEXT PRIMARY KEY,
			  value TEXT NOT NULL
			);
		`)
		if err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

func (s *Store) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

// SetCredentials stores the bearer token and backend URL together, the way
// the website hands them to the agent.
func (s *Store) SetCredentials(token, backendURL string) error {
	if err := s.set(keyAuthToken, token); err != nil {
		return err
	}
	return s.set(keyBackendURL, backendURL)
}

// Credentials returns the stored token and backend URL; both empty when the
// owner is logged out.
func (s *Store) Credentials() (token, backendURL string, err error) {
	if token, err = s.get(keyAuthToken); err != nil {
		return "", "", err
	}
	if backendURL, err = s.get(keyBackendURL); err != nil {
		return "", "", err
	}
	return token, backendURL, nil
}

// ClearCredentials logs the owner out locally.
func (s *Store) ClearCredentials() error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE key IN (?, ?)`, keyAuthToken, keyBackendURL)
	if err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// SetAutoSync persists the owner-controlled auto-sync switch.
func (s *Store) SetAutoSync(enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	return s.set(keyAutoSync, v)
}

// AutoSync reports the persisted auto-sync switch; defaults to off.
func (s *Store) AutoSync() (bool, error) {
	v, err := s.get(keyAutoSync)
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

func expandHome(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
