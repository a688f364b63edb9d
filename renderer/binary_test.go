package renderer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveBinary(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	exe := filepath.Join(dir, "chromium")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write exe: %v", err)
	}
	plain := filepath.Join(dir, "plain")
	if err := os.WriteFile(plain, []byte("data"), 0o644); err != nil {
		t.Fatalf("write plain: %v", err)
	}

	tests := []struct {
		name    string
		bin     string
		wantErr bool
	}{
		{name: "executable file", bin: exe},
		{name: "missing file", bin: filepath.Join(dir, "nope"), wantErr: true},
		{name: "directory", bin: dir, wantErr: true},
		{name: "not executable", bin: plain, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := resolveBinary(tt.bin)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s", tt.bin)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.bin {
				t.Errorf("resolveBinary = %q, want %q", got, tt.bin)
			}
		})
	}
}
