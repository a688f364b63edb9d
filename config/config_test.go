package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Crawl.DefaultMaxPages != 50 {
		t.Errorf("DefaultMaxPages = %d, want 50", cfg.Crawl.DefaultMaxPages)
	}
	if cfg.Browser.WindowWidth != 1920 || cfg.Browser.WindowHeight != 1080 {
		t.Errorf("window = %dx%d, want 1920x1080", cfg.Browser.WindowWidth, cfg.Browser.WindowHeight)
	}
	if !cfg.Browser.NoSandbox || !cfg.Browser.Incognito || !cfg.Browser.Headless {
		t.Errorf("browser flags = %+v, want headless, no-sandbox and incognito", cfg.Browser)
	}
	if cfg.Renderer.PageTimeout != 30*time.Second {
		t.Errorf("PageTimeout = %v, want 30s", cfg.Renderer.PageTimeout)
	}
	if cfg.Crawl.Strategy != "container" {
		t.Errorf("Strategy = %q, want container", cfg.Crawl.Strategy)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CRAWLKIT_DEFAULT_MAX_PAGES", "7")
	t.Setenv("CRAWLKIT_PAGE_TIMEOUT", "5s")
	t.Setenv("CRAWLKIT_STRATEGY", "heading")
	t.Setenv("CRAWLKIT_API_KEYS", "a, b ,,c")
	t.Setenv("CRAWLKIT_EXTRA_HEADERS", "Accept-Language=en-US, X-Test = 1, broken")
	t.Setenv("CRAWLKIT_NO_SANDBOX", "false")
	t.Setenv("CRAWLKIT_BROWSER_BIN", "")
	t.Setenv("CHROME_BIN", "/opt/chrome")

	cfg := Load()

	if cfg.Crawl.DefaultMaxPages != 7 {
		t.Errorf("DefaultMaxPages = %d, want 7", cfg.Crawl.DefaultMaxPages)
	}
	if cfg.Renderer.PageTimeout != 5*time.Second {
		t.Errorf("PageTimeout = %v, want 5s", cfg.Renderer.PageTimeout)
	}
	if cfg.Crawl.Strategy != "heading" {
		t.Errorf("Strategy = %q, want heading", cfg.Crawl.Strategy)
	}
	if got := cfg.Auth.APIKeys; len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("APIKeys = %v, want [a b c]", got)
	}
	if got := cfg.Browser.ExtraHeaders; len(got) != 2 || got["Accept-Language"] != "en-US" || got["X-Test"] != "1" {
		t.Errorf("ExtraHeaders = %v", got)
	}
	if cfg.Browser.NoSandbox {
		t.Error("NoSandbox should be false")
	}
	if cfg.Browser.Bin != "/opt/chrome" {
		t.Errorf("Bin = %q, want CHROME_BIN fallback", cfg.Browser.Bin)
	}
}

func TestEnvHelpersIgnoreGarbage(t *testing.T) {
	t.Setenv("CRAWLKIT_TEST_INT", "nope")
	t.Setenv("CRAWLKIT_TEST_DUR", "soon")
	t.Setenv("CRAWLKIT_TEST_BOOL", "maybe")

	if got := envIntOr("CRAWLKIT_TEST_INT", 3); got != 3 {
		t.Errorf("envIntOr = %d, want fallback 3", got)
	}
	if got := envDurationOr("CRAWLKIT_TEST_DUR", time.Second); got != time.Second {
		t.Errorf("envDurationOr = %v, want fallback 1s", got)
	}
	if got := envBoolOr("CRAWLKIT_TEST_BOOL", true); !got {
		t.Error("envBoolOr should fall back to true")
	}
}
