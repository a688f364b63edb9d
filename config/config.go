package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Renderer  RendererConfig
	Crawl     CrawlConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Storage   StorageConfig
	CORS      CORSConfig
	Jobs      JobsConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig describes how a rendering session provisions Chromium.
// It is passed explicitly to renderer.NewBrowser; nothing reads it globally.
type BrowserConfig struct {
	// Bin overrides the Chromium binary path. Empty means look it up on PATH.
	Bin string

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in containers).
	NoSandbox bool // default: true

	// Incognito renders inside a fresh browser context with no persistent state.
	Incognito bool // default: true

	// WindowWidth and WindowHeight fix the viewport.
	WindowWidth  int // default: 1920
	WindowHeight int // default: 1080

	// Proxy is an optional upstream proxy URL.
	Proxy string

	// Stealth injects the go-rod/stealth evasion script before navigation.
	Stealth bool // default: false

	// WaitStable waits for the DOM to settle after the body appears.
	WaitStable bool // default: true

	// BlockedResourceTypes lists resource types to abort (Image, Stylesheet, Font, Media, Script).
	BlockedResourceTypes []string

	// BlockAds aborts requests to well-known ad and tracking hosts.
	BlockAds bool // default: false

	// ExtraHeaders are sent with every navigation.
	ExtraHeaders map[string]string
}

// RendererConfig selects the rendering backend and its timeouts.
type RendererConfig struct {
	// Backend is "browser" (go-rod) or "static" (plain HTTP, no JavaScript).
	Backend string // default: "browser"

	// PageTimeout bounds a single render: navigation plus ready-wait.
	PageTimeout time.Duration // default: 30s

	// MaxTimeout is the largest per-page timeout a client may request.
	MaxTimeout time.Duration // default: 120s
}

// CrawlConfig controls crawl defaults and extraction.
type CrawlConfig struct {
	// DefaultMaxPages applies when a crawl does not specify a budget.
	DefaultMaxPages int // default: 50

	// MaxPagesLimit caps client-supplied budgets. 0 disables the cap.
	MaxPagesLimit int // default: 500

	// Strategy is the segmentation strategy: "container" or "heading".
	Strategy string // default: "container"

	// ContainerSelector overrides the container candidates for the container strategy.
	ContainerSelector string

	// ScopeSelector restricts extraction to matching subtrees when set.
	ScopeSelector string

	// StrictMode rejects unknown mode values instead of falling back to beautify.
	StrictMode bool // default: false

	// ExcludePatterns are glob patterns applied to every crawl.
	ExcludePatterns []string
}

// AuthConfig controls API authentication.
type AuthConfig struct {
	// Enabled toggles authentication on the protected routes.
	Enabled bool // default: true

	// APIKeys are accepted via X-API-Key or Authorization: Bearer.
	APIKeys []string

	// BasicUser and BasicPassword enable HTTP Basic credentials.
	BasicUser     string
	BasicPassword string
}

// RateLimitConfig controls per-identity rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per identity.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per identity.
	Burst int // default: 10

	// CrawlCost is how many tokens one crawl submission spends.
	CrawlCost int // default: 5
}

// CacheConfig controls the scrape result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached pages.
	MaxEntries int // default: 1000

	// TTL is how long an entry survives the background sweep.
	TTL time.Duration // default: 1h
}

// StorageConfig selects where stored blobs live.
type StorageConfig struct {
	// Backend is "file" or "sqlite".
	Backend string // default: "file"

	// Dir is the directory for the file backend.
	Dir string // default: "scraped_content"

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string // default: "data/crawlkit.db"
}

// CORSConfig controls cross-origin access to the API.
type CORSConfig struct {
	// AllowedOrigins lists permitted origins; "*" allows any.
	AllowedOrigins []string // default: ["*"]
}

// JobsConfig controls asynchronous crawl jobs.
type JobsConfig struct {
	// TTL is how long finished jobs remain queryable.
	TTL time.Duration // default: 1h
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("CRAWLKIT_HOST", "0.0.0.0"),
			Port: envIntOr("CRAWLKIT_PORT", 8080),
			Mode: envOr("CRAWLKIT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Bin:                  envOr("CRAWLKIT_BROWSER_BIN", os.Getenv("CHROME_BIN")),
			Headless:             envBoolOr("CRAWLKIT_HEADLESS", true),
			NoSandbox:            envBoolOr("CRAWLKIT_NO_SANDBOX", true),
			Incognito:            envBoolOr("CRAWLKIT_INCOGNITO", true),
			WindowWidth:          envIntOr("CRAWLKIT_WINDOW_WIDTH", 1920),
			WindowHeight:         envIntOr("CRAWLKIT_WINDOW_HEIGHT", 1080),
			Proxy:                os.Getenv("CRAWLKIT_PROXY"),
			Stealth:              envBoolOr("CRAWLKIT_STEALTH", false),
			WaitStable:           envBoolOr("CRAWLKIT_WAIT_STABLE", true),
			BlockedResourceTypes: envSliceOr("CRAWLKIT_BLOCKED_RESOURCES", nil),
			BlockAds:             envBoolOr("CRAWLKIT_BLOCK_ADS", false),
			ExtraHeaders:         envMapOr("CRAWLKIT_EXTRA_HEADERS", nil),
		},
		Renderer: RendererConfig{
			Backend:     envOr("CRAWLKIT_RENDERER", "browser"),
			PageTimeout: envDurationOr("CRAWLKIT_PAGE_TIMEOUT", 30*time.Second),
			MaxTimeout:  envDurationOr("CRAWLKIT_MAX_TIMEOUT", 120*time.Second),
		},
		Crawl: CrawlConfig{
			DefaultMaxPages:   envIntOr("CRAWLKIT_DEFAULT_MAX_PAGES", 50),
			MaxPagesLimit:     envIntOr("CRAWLKIT_MAX_PAGES_LIMIT", 500),
			Strategy:          envOr("CRAWLKIT_STRATEGY", "container"),
			ContainerSelector: os.Getenv("CRAWLKIT_CONTAINER_SELECTOR"),
			ScopeSelector:     os.Getenv("CRAWLKIT_SCOPE_SELECTOR"),
			StrictMode:        envBoolOr("CRAWLKIT_STRICT_MODE", false),
			ExcludePatterns:   envSliceOr("CRAWLKIT_EXCLUDE_PATTERNS", nil),
		},
		Auth: AuthConfig{
			Enabled:       envBoolOr("CRAWLKIT_AUTH_ENABLED", true),
			APIKeys:       envSliceOr("CRAWLKIT_API_KEYS", nil),
			BasicUser:     os.Getenv("CRAWLKIT_BASIC_USER"),
			BasicPassword: os.Getenv("CRAWLKIT_BASIC_PASSWORD"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("CRAWLKIT_RATE_RPS", 5.0),
			Burst:             envIntOr("CRAWLKIT_RATE_BURST", 10),
			CrawlCost:         envIntOr("CRAWLKIT_RATE_CRAWL_COST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("CRAWLKIT_CACHE_MAX_ENTRIES", 1000),
			TTL:        envDurationOr("CRAWLKIT_CACHE_TTL", time.Hour),
		},
		Storage: StorageConfig{
			Backend:    envOr("CRAWLKIT_STORAGE", "file"),
			Dir:        envOr("CRAWLKIT_STORAGE_DIR", "scraped_content"),
			SQLitePath: envOr("CRAWLKIT_SQLITE_PATH", "data/crawlkit.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: envSliceOr("CRAWLKIT_CORS_ORIGINS", []string{"*"}),
		},
		Jobs: JobsConfig{
			TTL: envDurationOr("CRAWLKIT_JOB_TTL", time.Hour),
		},
		Log: LogConfig{
			Level:  envOr("CRAWLKIT_LOG_LEVEL", "info"),
			Format: envOr("CRAWLKIT_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

// envMapOr parses "K1=V1,K2=V2". Pairs without "=" are ignored.
func envMapOr(key string, fallback map[string]string) map[string]string {
	pairs := envSliceOr(key, nil)
	if len(pairs) == 0 {
		return fallback
	}
	result := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if k = strings.TrimSpace(k); k != "" {
			result[k] = strings.TrimSpace(v)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}
