package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/crawlkit/config"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(IdentityKey))
	})
	return r
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	t.Parallel()

	r := newEngine(Auth(config.AuthConfig{
		Enabled:       true,
		APIKeys:       []string{"k1", "k2"},
		BasicUser:     "agent",
		BasicPassword: "secret",
	}))

	tests := []struct {
		name     string
		setup    func(*http.Request)
		want     int
		identity string
	}{
		{"x-api-key", func(r *http.Request) { r.Header.Set("X-API-Key", "k2") }, http.StatusOK, "k2"},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer k1") }, http.StatusOK, "k1"},
		{"basic", func(r *http.Request) { r.SetBasicAuth("agent", "secret") }, http.StatusOK, "basic:agent"},
		{"unknown key", func(r *http.Request) { r.Header.Set("X-API-Key", "k3") }, http.StatusUnauthorized, ""},
		{"wrong password", func(r *http.Request) { r.SetBasicAuth("agent", "guess") }, http.StatusUnauthorized, ""},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			tt.setup(req)
			w := serve(r, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusOK && w.Body.String() != tt.identity {
				t.Errorf("identity = %q, want %q", w.Body.String(), tt.identity)
			}
		})
	}
}

func TestAuthChallengesWhenBasicConfigured(t *testing.T) {
	t.Parallel()

	r := newEngine(Auth(config.AuthConfig{BasicUser: "agent", BasicPassword: "secret"}))
	w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate challenge")
	}
}

func TestAuthWithoutCredentialsIsOpen(t *testing.T) {
	t.Parallel()

	r := newEngine(Auth(config.AuthConfig{Enabled: true, APIKeys: []string{""}}))
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil)); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	r := newEngine(RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		codes = append(codes, serve(r, req).Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	other := httptest.NewRequest(http.MethodGet, "/ping", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	if w := serve(r, other); w.Code != http.StatusOK {
		t.Errorf("separate client limited: %d", w.Code)
	}
}

func TestRateLimitByIdentity(t *testing.T) {
	t.Parallel()

	r := newEngine(
		Auth(config.AuthConfig{APIKeys: []string{"k1", "k2"}}),
		RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}),
	)
	send := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-API-Key", key)
		return serve(r, req).Code
	}

	if send("k1") != http.StatusOK || send("k1") != http.StatusTooManyRequests {
		t.Error("k1 should be limited after its burst")
	}
	if send("k2") != http.StatusOK {
		t.Error("k2 shares the client address but has its own bucket")
	}
}

func TestLimiterChargesPerRoute(t *testing.T) {
	t.Parallel()

	l := NewLimiter(config.RateLimitConfig{RequestsPerSecond: 0.01, Burst: 10})
	r := gin.New()
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.POST("/crawl", l.Charge(5), ok)
	r.GET("/ping", l.Charge(1), ok)
	send := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = "10.0.0.9:1234"
		return serve(r, req)
	}

	if w := send(http.MethodPost, "/crawl"); w.Code != http.StatusOK {
		t.Fatalf("first crawl = %d", w.Code)
	}
	for i := range 4 {
		if w := send(http.MethodGet, "/ping"); w.Code != http.StatusOK {
			t.Fatalf("ping %d = %d", i, w.Code)
		}
	}

	// One token left: a crawl is refused without spending it.
	w := send(http.MethodPost, "/crawl")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second crawl = %d, want 429", w.Code)
	}
	secs, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || secs <= 0 {
		t.Errorf("Retry-After = %q, want positive seconds", w.Header().Get("Retry-After"))
	}
	if w := send(http.MethodGet, "/ping"); w.Code != http.StatusOK {
		t.Errorf("ping after refused crawl = %d, want 200", w.Code)
	}
	if w := send(http.MethodGet, "/ping"); w.Code != http.StatusTooManyRequests {
		t.Errorf("ping with empty bucket = %d, want 429", w.Code)
	}
}

func TestLimiterCostCappedAtBurst(t *testing.T) {
	t.Parallel()

	l := NewLimiter(config.RateLimitConfig{RequestsPerSecond: 0.01, Burst: 2})
	r := gin.New()
	r.POST("/crawl", l.Charge(50), func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := serve(r, httptest.NewRequest(http.MethodPost, "/crawl", nil)); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestLimiterSweep(t *testing.T) {
	t.Parallel()

	l := NewLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	now := time.Now()
	l.bucketFor("old", now.Add(-2*time.Hour))
	l.bucketFor("fresh", now)

	l.sweep(now.Add(-time.Hour))

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.buckets["old"]; ok {
		t.Error("idle bucket survived the sweep")
	}
	if _, ok := l.buckets["fresh"]; !ok {
		t.Error("recent bucket was swept")
	}
}

func TestRateLimitDisabled(t *testing.T) {
	t.Parallel()

	if NewLimiter(config.RateLimitConfig{}) != nil {
		t.Error("zero rate should disable the limiter")
	}
	r := newEngine(RateLimit(config.RateLimitConfig{}))
	for range 20 {
		if w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil)); w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origins []string
		origin  string
		want    string
	}{
		{"wildcard", []string{"*"}, "https://x.test", "*"},
		{"listed", []string{"https://x.test/", "ftp://bad"}, "https://x.test", "https://x.test"},
		{"unlisted", []string{"https://x.test"}, "https://y.test", ""},
		{"disabled", nil, "https://x.test", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(CORS(config.CORSConfig{AllowedOrigins: tt.origins}))
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set("Origin", tt.origin)
			w := serve(r, req)
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}
