package renderer

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

func TestIsAdHost(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"doubleclick.net":               true,
		"stats.g.doubleclick.net":       true,
		"PAGEAD2.GoogleSyndication.com": true,
		"example.com":                   false,
		"notdoubleclick.net":            false,
		"doubleclick.net.example.com":   false,
		"":                              false,
	}

	for host, want := range tests {
		if got := isAdHost(host); got != want {
			t.Errorf("isAdHost(%q) = %v, want %v", host, got, want)
		}
	}
}

func TestBlockedResourceSet(t *testing.T) {
	t.Parallel()

	set := blockedResourceSet([]string{"Image", " font ", "Bogus"})

	if len(set) != 2 {
		t.Fatalf("expected 2 resource types, got %d", len(set))
	}
	if _, ok := set[proto.NetworkResourceTypeImage]; !ok {
		t.Error("expected Image to be blocked")
	}
	if _, ok := set[proto.NetworkResourceTypeFont]; !ok {
		t.Error("expected Font to be blocked")
	}
}
