package renderer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/crawlkit/config"
	"github.com/use-agent/crawlkit/models"
	"golang.org/x/net/html"
)

// maxStaticBody bounds how much of a response the static renderer reads.
const maxStaticBody = 10 << 20

const staticUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// Static renders pages with a plain HTTP GET and no JavaScript. It suits
// server-rendered sites and environments without Chromium.
type Static struct {
	cfg config.BrowserConfig
}

// NewStatic creates a Static renderer. Only Proxy and ExtraHeaders of cfg apply.
func NewStatic(cfg config.BrowserConfig) *Static {
	return &Static{cfg: cfg}
}

// Name implements Renderer.
func (s *Static) Name() string { return "static" }

// Open implements Renderer. Each session gets its own connection pool.
func (s *Static) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeCanceled, "canceled before session open", err)
	}
	transport, err := newStaticTransport(s.cfg.Proxy)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeRendererUnavailable, "invalid proxy configuration", err)
	}
	return &staticSession{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		headers: s.cfg.ExtraHeaders,
	}, nil
}

// newStaticTransport dials TLS with a Chrome fingerprint. ALPN is locked to
// http/1.1 to avoid the HTTP/2 framing mismatch that occurs when utls
// negotiates h2 but Go's http.Transport only speaks h1.
func newStaticTransport(proxy string) (*http.Transport, error) {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return transport, nil
}

type staticSession struct {
	client  *http.Client
	headers map[string]string
}

// Render implements Session.
func (s *staticSession) Render(ctx context.Context, target string, timeout time.Duration) (*RenderedPage, error) {
	if timeout <= 0 {
		timeout = defaultPageTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "invalid target URL", err)
	}
	req.Header.Set("User-Agent", staticUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, categorizeStaticError(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStaticBody+1))
	if err != nil {
		return nil, categorizeStaticError(err, "failed to read response body")
	}
	if len(body) > maxStaticBody {
		return nil, models.NewScrapeError(models.ErrCodeNavigation,
			fmt.Sprintf("response exceeds %d bytes", maxStaticBody), nil)
	}

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode >= 400 {
		return nil, models.NewScrapeError(models.ErrCodeNavigation,
			fmt.Sprintf("server responded with status %d", resp.StatusCode), nil)
	}
	if !isHTMLContentType(ct) {
		return nil, models.NewScrapeError(models.ErrCodeNavigation,
			fmt.Sprintf("unsupported content type %q", ct), nil)
	}

	markup := string(body)
	if !hasBody(markup) {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "document has no body", nil)
	}

	return &RenderedPage{
		URL:        target,
		FinalURL:   resp.Request.URL.String(),
		HTML:       markup,
		Title:      extractTitle(markup),
		StatusCode: resp.StatusCode,
	}, nil
}

// Close implements Session.
func (s *staticSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func categorizeStaticError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeCanceled, "render canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}

// isHTMLContentType returns true if the content-type header looks like HTML.
// A missing header is accepted.
func isHTMLContentType(ct string) bool {
	if ct == "" {
		return true
	}
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// hasBody reports whether the parsed document has a body element. The HTML5
// parser synthesises one for any markup it can read.
func hasBody(markup string) bool {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return false
	}
	var find func(*html.Node) bool
	find = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "body" {
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if find(c) {
				return true
			}
		}
		return false
	}
	return find(doc)
}

// extractTitle uses the Go HTML tokenizer to find the first <title> element.
func extractTitle(markup string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(markup))
	inTitle := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
