package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Keys of the values the client keeps between runs.
const (
	KeyUserID         = "userId"
	KeyUserName       = "userName"
	KeyInventory      = "inventoryData"
	KeyCash           = "cashReconciliationData"
	KeyPendingChanges = "pendingChanges"
	KeyBackups        = "backups"
)

// Store is a durable key to JSON value store in a single SQLite file.
// Every Put replaces the whole value of its key.
type Store struct {
	db *sql.DB
}

type Backup struct {
	SavedAt time.Time       `json:"date"`
	Data    json.RawMessage `json:"data"`
}

// Open creates or opens the store at path. ":memory:" gives a throwaway store.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	// One connection keeps ":memory:" a single database and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get decodes the value of key into dst. It reports false when the key is unset.
func (s *Store) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) Put(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(raw))
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// AppendBackup adds a saved snapshot to the rolling backup list, dropping
// the oldest entries beyond limit.
func (s *Store) AppendBackup(ctx context.Context, data interface{}, limit int) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var backups []Backup
	var current string
	err = tx.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, KeyBackups).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read backups: %w", err)
	default:
		if err := json.Unmarshal([]byte(current), &backups); err != nil {
			return fmt.Errorf("decode backups: %w", err)
		}
	}

	backups = append(backups, Backup{SavedAt: time.Now().UTC(), Data: raw})
	if limit > 0 && len(backups) > limit {
		backups = backups[len(backups)-limit:]
	}

	updated, err := json.Marshal(backups)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		KeyBackups, string(updated)); err != nil {
		return fmt.Errorf("write backups: %w", err)
	}
	return tx.Commit()
}

// Backups returns the rolling backup list, oldest first.
func (s *Store) Backups(ctx context.Context) ([]Backup, error) {
	var backups []Backup
	if _, err := s.Get(ctx, KeyBackups, &backups); err != nil {
		return nil, err
	}
	return backups, nil
}
