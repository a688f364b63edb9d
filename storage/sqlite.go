package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore keeps documents in a single SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("storage: sqlite backend needs a database path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("storage: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS blobs (
		code TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: create tables: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Backend implements Store.
func (s *SQLiteStore) Backend() string { return "sqlite" }

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, data any) (string, error) {
	body, err := encode(data)
	if err != nil {
		return "", err
	}
	key := NewKey()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (code, data) VALUES (?, ?)`, key, string(body)); err != nil {
		return "", fmt.Errorf("storage: insert %s: %w", key, err)
	}
	slog.Info("document stored", "key", key, "backend", "sqlite")
	return key, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	key, err := CanonicalKey(key)
	if err != nil {
		return nil, err
	}
	var data string
	err = s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE code = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: select %s: %w", key, err)
	}
	return json.RawMessage(data), nil
}

// Update implements Store.
func (s *SQLiteStore) Update(ctx context.Context, key string, data any) error {
	key, err := CanonicalKey(key)
	if err != nil {
		return err
	}
	body, err := encode(data)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE blobs SET data = ?, updated_at = CURRENT_TIMESTAMP WHERE code = ?`, string(body), key)
	if err != nil {
		return fmt.Errorf("storage: update %s: %w", key, err)
	}
	return requireRow(res)
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	key, err := CanonicalKey(key)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE code = ?`, key)
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	slog.Info("document deleted", "key", key, "backend", "sqlite")
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
