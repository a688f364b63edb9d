// Package storage persists arbitrary JSON documents under opaque keys.
//
// Keys are random UUIDs generated on Create. Callers treat them as opaque;
// anything that does not parse as a UUID is rejected before it reaches a
// backend, so a key can never name a path outside the store.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/use-agent/crawlkit/config"
)

var (
	// ErrNotFound is returned when no document exists under a key.
	ErrNotFound = errors.New("storage: document not found")

	// ErrInvalidKey is returned for keys that are not UUIDs.
	ErrInvalidKey = errors.New("storage: invalid key")

	// ErrInvalidData is returned when a document is not valid JSON.
	ErrInvalidData = errors.New("storage: document is not valid JSON")
)

// Store is a key/value store of JSON documents.
type Store interface {
	// Create stores data under a new key and returns the key.
	Create(ctx context.Context, data any) (string, error)

	// Get returns the document stored under key.
	Get(ctx context.Context, key string) (json.RawMessage, error)

	// Update replaces the document under key. It fails with ErrNotFound
	// when the key does not exist.
	Update(ctx context.Context, key string, data any) error

	// Delete removes the document under key. It fails with ErrNotFound
	// when the key does not exist.
	Delete(ctx context.Context, key string) error

	// Backend names the implementation, e.g. "file" or "sqlite".
	Backend() string

	Close() error
}

// Open creates the Store selected by cfg.Backend.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Dir)
	case "sqlite":
		return OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q (want file or sqlite)", cfg.Backend)
	}
}

// NewKey returns a fresh random key.
func NewKey() string {
	return uuid.NewString()
}

// CanonicalKey validates key and returns its canonical lower-case form.
func CanonicalKey(key string) (string, error) {
	id, err := uuid.Parse(key)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return id.String(), nil
}

// encode turns data into compact JSON. Raw JSON inputs are validated rather
// than re-encoded as strings.
func encode(data any) ([]byte, error) {
	var raw []byte
	switch v := data.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrInvalidData)
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		return b, nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return buf.Bytes(), nil
}
