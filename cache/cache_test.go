package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/use-agent/crawlkit/models"
)

func TestKey(t *testing.T) {
	t.Parallel()

	a := Key("https://a.test", models.ModeBeautify, "container")
	if a != Key("https://a.test", models.ModeBeautify, "container") {
		t.Error("key is not deterministic")
	}
	if a == Key("https://a.test", models.ModeRaw, "container") {
		t.Error("mode must be part of the key")
	}
	if a == Key("https://a.test", models.ModeBeautify, "heading") {
		t.Error("strategy must be part of the key")
	}
}

func TestGetSet(t *testing.T) {
	t.Parallel()

	c := New(10, time.Hour)
	defer c.Close()

	key := Key("https://a.test", models.ModeRaw, "container")
	if _, ok := c.Get(key, time.Minute); ok {
		t.Fatal("empty cache reported a hit")
	}

	c.Set(key, models.NewRawRecord("https://a.test", "<html></html>"))
	page, ok := c.Get(key, time.Minute)
	if !ok || page.RawMarkup == nil || *page.RawMarkup != "<html></html>" {
		t.Fatalf("Get = %+v, %v", page, ok)
	}
	if _, ok := c.Get(key, 0); ok {
		t.Error("maxAge 0 must bypass the cache")
	}

	c.store[key].createdAt = time.Now().Add(-2 * time.Minute)
	if _, ok := c.Get(key, time.Minute); ok {
		t.Error("entry older than maxAge returned")
	}
}

func TestFailedPagesAreNotCached(t *testing.T) {
	t.Parallel()

	c := New(10, time.Hour)
	defer c.Close()

	c.Set("k", models.NewErrorRecord("https://a.test", errors.New("boom")))
	if c.Len() != 0 {
		t.Error("failed page was cached")
	}
}

func TestEviction(t *testing.T) {
	t.Parallel()

	c := New(2, time.Hour)
	defer c.Close()

	c.Set("a", models.NewSectionsRecord("https://a.test/a", nil))
	c.Set("b", models.NewSectionsRecord("https://a.test/b", nil))
	c.Set("b", models.NewSectionsRecord("https://a.test/b", nil))
	if c.Len() != 2 {
		t.Fatalf("overwrite evicted an entry, len = %d", c.Len())
	}
	c.Set("c", models.NewSectionsRecord("https://a.test/c", nil))
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("c", time.Minute); !ok {
		t.Error("newest entry missing")
	}
}

func TestSweep(t *testing.T) {
	t.Parallel()

	c := New(10, time.Minute)
	defer c.Close()

	c.Set("old", models.NewSectionsRecord("https://a.test/old", nil))
	c.Set("new", models.NewSectionsRecord("https://a.test/new", nil))
	c.store["old"].createdAt = time.Now().Add(-time.Hour)

	c.sweep(time.Now())
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
	if _, ok := c.Get("new", time.Hour); !ok {
		t.Error("fresh entry swept")
	}

	c.Close()
	c.Close()
}
