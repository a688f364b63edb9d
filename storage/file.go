package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
)

// FileStore keeps one pretty-printed <key>.json file per document.
type FileStore struct {
	dir string

	// mu serializes writers so Update and Delete see a consistent view.
	mu sync.Mutex
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("storage: file backend needs a directory")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Backend implements Store.
func (s *FileStore) Backend() string { return "file" }

// Dir returns the directory documents are written to.
func (s *FileStore) Dir() string { return s.dir }

// Create implements Store.
func (s *FileStore) Create(ctx context.Context, data any) (string, error) {
	body, err := encode(data)
	if err != nil {
		return "", err
	}
	key := NewKey()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(key, body); err != nil {
		return "", err
	}
	slog.Info("document stored", "key", key, "backend", "file")
	return key, nil
}

// Get implements Store.
func (s *FileStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	key, err := CanonicalKey(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("storage: %s is corrupt: %w", key, ErrInvalidData)
	}
	return json.RawMessage(b), nil
}

// Update implements Store.
func (s *FileStore) Update(ctx context.Context, key string, data any) error {
	key, err := CanonicalKey(key)
	if err != nil {
		return err
	}
	body, err := encode(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.path(key)); errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return s.write(key, body)
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	key, err := CanonicalKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	slog.Info("document deleted", "key", key, "backend", "file")
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// write replaces the file for key atomically so readers never observe a
// partial document.
func (s *FileStore) write(key string, compact []byte) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, compact, "", "    "); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	pretty.WriteByte('\n')

	if err := renameio.WriteFile(s.path(key), pretty.Bytes(), 0o644); err != nil {
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	return nil
}
