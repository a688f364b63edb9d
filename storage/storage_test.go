package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/use-agent/crawlkit/config"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	fileStore, err := NewFileStore(filepath.Join(dir, "files"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	sqliteStore, err := OpenSQLite(filepath.Join(dir, "db", "crawlkit.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Store{"file": fileStore, "sqlite": sqliteStore}
}

func decode(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return m
}

func TestStoreLifecycle(t *testing.T) {
	t.Parallel()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			key, err := store.Create(ctx, map[string]any{"agent": "a", "pages": []int{1, 2}})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if _, err := CanonicalKey(key); err != nil {
				t.Fatalf("generated key %q is not a UUID", key)
			}

			got, err := store.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if decode(t, got)["agent"] != "a" {
				t.Errorf("Get = %s", got)
			}

			if err := store.Update(ctx, key, json.RawMessage(`{"agent":"b"}`)); err != nil {
				t.Fatalf("Update: %v", err)
			}
			got, err = store.Get(ctx, strings.ToUpper(key))
			if err != nil {
				t.Fatalf("Get after update: %v", err)
			}
			if decode(t, got)["agent"] != "b" {
				t.Errorf("Get after update = %s", got)
			}

			if err := store.Delete(ctx, key); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := store.Get(ctx, key); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get after delete: expected ErrNotFound, got %v", err)
			}
			if err := store.Delete(ctx, key); !errors.Is(err, ErrNotFound) {
				t.Errorf("second Delete: expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreMissingAndInvalidKeys(t *testing.T) {
	t.Parallel()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			missing := NewKey()

			if err := store.Update(ctx, missing, map[string]int{"x": 1}); !errors.Is(err, ErrNotFound) {
				t.Errorf("Update missing: expected ErrNotFound, got %v", err)
			}
			if _, err := store.Get(ctx, missing); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get missing: expected ErrNotFound, got %v", err)
			}

			for _, bad := range []string{"", "../../etc/passwd", "abc", "x.json"} {
				if _, err := store.Get(ctx, bad); !errors.Is(err, ErrInvalidKey) {
					t.Errorf("Get(%q): expected ErrInvalidKey, got %v", bad, err)
				}
				if err := store.Delete(ctx, bad); !errors.Is(err, ErrInvalidKey) {
					t.Errorf("Delete(%q): expected ErrInvalidKey, got %v", bad, err)
				}
			}

			if _, err := store.Create(ctx, json.RawMessage(`{broken`)); !errors.Is(err, ErrInvalidData) {
				t.Errorf("Create invalid JSON: expected ErrInvalidData, got %v", err)
			}
			if _, err := store.Create(ctx, nil); !errors.Is(err, ErrInvalidData) {
				t.Errorf("Create nil: expected ErrInvalidData, got %v", err)
			}
		})
	}
}

func TestFileStoreLayout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	key, err := store.Create(context.Background(), map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, key+".json"))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if want := "{\n    \"k\": \"v\"\n}\n"; string(b) != want {
		t.Errorf("file content = %q, want %q", b, want)
	}

	if err := store.Update(context.Background(), key, map[string]string{"k": "w"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	b, err = os.ReadFile(filepath.Join(dir, key+".json"))
	if err != nil {
		t.Fatalf("read replaced file: %v", err)
	}
	if want := "{\n    \"k\": \"w\"\n}\n"; string(b) != want {
		t.Errorf("replaced content = %q, want %q", b, want)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the document file, found %d entries", len(entries))
	}
	info, err := os.Stat(filepath.Join(dir, key+".json"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm&0o044 == 0 {
		t.Errorf("document mode = %v, want group and world readable", perm)
	}
}

func TestSQLiteStoreReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "crawlkit.db")
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	key, err := store.Create(context.Background(), []string{"persisted"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `["persisted"]` {
		t.Errorf("Get = %s", got)
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	s, err := Open(config.StorageConfig{Backend: "file", Dir: filepath.Join(dir, "files")})
	if err != nil || s.Backend() != "file" {
		t.Fatalf("file backend: %v", err)
	}

	s, err = Open(config.StorageConfig{Backend: "sqlite", SQLitePath: filepath.Join(dir, "x.db")})
	if err != nil || s.Backend() != "sqlite" {
		t.Fatalf("sqlite backend: %v", err)
	}
	s.Close()

	if _, err := Open(config.StorageConfig{Backend: "s3"}); err == nil {
		t.Error("expected unknown backend error")
	}
}
