package renderer

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/use-agent/crawlkit/config"
	"github.com/use-agent/crawlkit/models"
)

const samplePage = "<!DOCTYPE html><html><head><title> Sample </title></head><body><h1>Hi</h1><p>World</p></body></html>"

func newStaticServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(samplePage))
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page", http.StatusFound)
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/huge", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>"))
		_, _ = w.Write(bytes.Repeat([]byte("a"), maxStaticBody))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStaticRender(t *testing.T) {
	t.Parallel()

	srv := newStaticServer(t)
	r := NewStatic(config.BrowserConfig{})

	sess, err := r.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })

	t.Run("returns markup verbatim", func(t *testing.T) {
		page, err := sess.Render(context.Background(), srv.URL+"/page", time.Second)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if page.HTML != samplePage {
			t.Errorf("markup changed:\n got %q\nwant %q", page.HTML, samplePage)
		}
		if page.Title != "Sample" {
			t.Errorf("title = %q, want Sample", page.Title)
		}
		if page.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", page.StatusCode)
		}
	})

	t.Run("follows redirects", func(t *testing.T) {
		page, err := sess.Render(context.Background(), srv.URL+"/redirect", time.Second)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if page.FinalURL != srv.URL+"/page" {
			t.Errorf("final URL = %q, want %q", page.FinalURL, srv.URL+"/page")
		}
	})

	t.Run("error status is a navigation failure", func(t *testing.T) {
		_, err := sess.Render(context.Background(), srv.URL+"/missing", time.Second)
		if got := models.CodeOf(err); got != models.ErrCodeNavigation {
			t.Errorf("code = %s, want %s", got, models.ErrCodeNavigation)
		}
		if models.IsFatal(err) {
			t.Error("a 404 must not be fatal")
		}
	})

	t.Run("non-html is a navigation failure", func(t *testing.T) {
		_, err := sess.Render(context.Background(), srv.URL+"/json", time.Second)
		if got := models.CodeOf(err); got != models.ErrCodeNavigation {
			t.Errorf("code = %s, want %s", got, models.ErrCodeNavigation)
		}
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		page, err := sess.Render(context.Background(), srv.URL+"/huge", 5*time.Second)
		if page != nil {
			t.Errorf("got %d bytes of a truncated page", len(page.HTML))
		}
		if got := models.CodeOf(err); got != models.ErrCodeNavigation {
			t.Errorf("code = %s, want %s (err: %v)", got, models.ErrCodeNavigation, err)
		}
	})

	t.Run("slow page times out", func(t *testing.T) {
		_, err := sess.Render(context.Background(), srv.URL+"/slow", 50*time.Millisecond)
		if got := models.CodeOf(err); got != models.ErrCodeTimeout {
			t.Errorf("code = %s, want %s (err: %v)", got, models.ErrCodeTimeout, err)
		}
	})
}

func TestStaticSendsExtraHeaders(t *testing.T) {
	t.Parallel()

	seen := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get("X-Crawl-Test")
		_, _ = w.Write([]byte(samplePage))
	}))
	t.Cleanup(srv.Close)

	sess, err := NewStatic(config.BrowserConfig{ExtraHeaders: map[string]string{"X-Crawl-Test": "yes"}}).Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sess.Close()

	if _, err := sess.Render(context.Background(), srv.URL, time.Second); err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := <-seen; got != "yes" {
		t.Errorf("header X-Crawl-Test = %q, want yes", got)
	}
}

func TestStaticOpenRejectsBadProxy(t *testing.T) {
	t.Parallel()

	_, err := NewStatic(config.BrowserConfig{Proxy: "://bad"}).Open(context.Background())
	if got := models.CodeOf(err); got != models.ErrCodeRendererUnavailable {
		t.Errorf("code = %s, want %s", got, models.ErrCodeRendererUnavailable)
	}
}
