// Package renderer turns URLs into rendered markup. A Renderer provisions
// Sessions; each Session owns one backend instance for the lifetime of a
// single scrape or crawl and must be closed exactly once.
package renderer

import (
	"context"
	"fmt"
	"time"

	"github.com/use-agent/crawlkit/config"
)

// defaultPageTimeout applies when Render is called without a timeout.
const defaultPageTimeout = 30 * time.Second

// RenderedPage is the snapshot taken once the ready-signal fired.
type RenderedPage struct {
	URL        string
	FinalURL   string
	HTML       string
	Title      string
	StatusCode int
}

// Session renders pages one at a time. It is not safe for concurrent use.
type Session interface {
	// Render navigates to url and returns the markup once the document body
	// is present or timeout elapses.
	Render(ctx context.Context, url string, timeout time.Duration) (*RenderedPage, error)

	// Close releases the backend. It is safe to call more than once and on
	// a partially initialised session.
	Close() error
}

// Renderer provisions independent sessions.
type Renderer interface {
	// Name identifies the backend ("browser" or "static").
	Name() string

	// Open acquires a new session or fails with RENDERER_UNAVAILABLE.
	Open(ctx context.Context) (Session, error)
}

// Checker is implemented by renderers that can report, without opening a
// session, whether Open is expected to succeed.
type Checker interface {
	Check() error
}

// Check reports the readiness of r. Renderers without a Checker are
// assumed ready.
func Check(r Renderer) error {
	if c, ok := r.(Checker); ok {
		return c.Check()
	}
	return nil
}

// New returns the backend named by backend, configured by cfg.
func New(backend string, cfg config.BrowserConfig) (Renderer, error) {
	switch backend {
	case "", "browser", "rod":
		return NewBrowser(cfg), nil
	case "static", "http":
		return NewStatic(cfg), nil
	default:
		return nil, fmt.Errorf("unknown renderer backend %q (want browser or static)", backend)
	}
}
