package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/crawlkit/config"
	"github.com/use-agent/crawlkit/models"
	"github.com/ysmood/gson"
)

const (
	// stableBudget caps the optional DOM-settle wait after the body appears.
	stableBudget = 3 * time.Second
	// livenessTimeout bounds the ping that tells a dead browser from a bad page.
	livenessTimeout = 2 * time.Second
)

// Browser provisions headless Chromium sessions through go-rod. Every Open
// launches a dedicated process, so concurrent crawls never share state.
type Browser struct {
	cfg config.BrowserConfig
}

// NewBrowser creates a Browser renderer from an explicit configuration.
func NewBrowser(cfg config.BrowserConfig) *Browser {
	return &Browser{cfg: cfg}
}

// Name implements Renderer.
func (b *Browser) Name() string { return "browser" }

// Check implements Checker by resolving the browser binary.
func (b *Browser) Check() error {
	_, err := resolveBinary(b.cfg.Bin)
	return err
}

// Open launches Chromium and prepares one page.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Resolve binary   – missing or non-executable binaries fail fast
//  2. Launch           – headless, no sandbox, fixed window, incognito
//  3. Connect          – CDP over the control URL
//  4. Page             – inside an incognito context, fixed viewport
//  5. Page setup       – stealth, extra headers, request blocking
//
// Any failure closes whatever was already acquired before returning.
func (b *Browser) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeCanceled, "canceled before browser launch", err)
	}

	// ── 1. Resolve binary ─────────────────────────────────────────────
	bin, err := resolveBinary(b.cfg.Bin)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeRendererUnavailable, "browser binary unavailable", err)
	}

	s := &browserSession{waitStable: b.cfg.WaitStable}

	// ── 2. Launch ─────────────────────────────────────────────────────
	l := newLauncher(b.cfg, bin).Context(ctx)
	controlURL, err := l.Launch()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, models.NewScrapeError(models.ErrCodeCanceled, "browser launch canceled", ctxErr)
		}
		return nil, models.NewScrapeError(models.ErrCodeRendererUnavailable, "failed to launch browser", err)
	}
	s.launcher = l
	slog.Debug("browser launched", "bin", bin, "controlURL", controlURL)

	// ── 3. Connect ────────────────────────────────────────────────────
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		_ = s.Close()
		return nil, models.NewScrapeError(models.ErrCodeRendererUnavailable, "failed to connect to browser", err)
	}
	s.browser = browser

	// ── 4. Page ───────────────────────────────────────────────────────
	owner := browser
	if b.cfg.Incognito {
		incognito, err := browser.Incognito()
		if err != nil {
			_ = s.Close()
			return nil, models.NewScrapeError(models.ErrCodeRendererUnavailable, "failed to open incognito context", err)
		}
		owner = incognito
	}

	page, err := owner.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = s.Close()
		return nil, models.NewScrapeError(models.ErrCodeRendererUnavailable, "failed to create page", err)
	}
	s.page = page

	if b.cfg.WindowWidth > 0 && b.cfg.WindowHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             b.cfg.WindowWidth,
			Height:            b.cfg.WindowHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			slog.Warn("failed to set viewport, keeping browser default", "error", err)
		}
	}

	// ── 5. Page setup ─────────────────────────────────────────────────
	if b.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	if len(b.cfg.ExtraHeaders) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(b.cfg.ExtraHeaders),
		}).Call(page); err != nil {
			slog.Warn("failed to set extra headers", "error", err)
		}
	}
	s.router = setupHijack(page, b.cfg.BlockedResourceTypes, b.cfg.BlockAds)

	return s, nil
}

// newLauncher builds the Chromium command line from cfg.
func newLauncher(cfg config.BrowserConfig, bin string) *launcher.Launcher {
	l := launcher.New().
		Bin(bin).
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("disable-extensions"))
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		l.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.Incognito {
		l.Set(flags.Flag("incognito"))
	}
	return l
}

// browserSession owns one Chromium process and one page.
type browserSession struct {
	launcher   *launcher.Launcher
	browser    *rod.Browser
	page       *rod.Page
	router     *rod.HijackRouter
	waitStable bool

	closeOnce sync.Once
	closeErr  error
}

// Render implements Session.
func (s *browserSession) Render(ctx context.Context, target string, timeout time.Duration) (*RenderedPage, error) {
	if s.page == nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "session has no page", nil)
	}
	if timeout <= 0 {
		timeout = defaultPageTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	p := s.page.Context(ctx)

	if err := p.Navigate(target); err != nil {
		return nil, s.categorizeError(err, "navigation to target URL failed")
	}

	// Ready-signal: the document body exists.
	if _, err := p.Element("body"); err != nil {
		return nil, s.categorizeError(err, "document body never became ready")
	}

	if s.waitStable {
		if err := p.Timeout(stableBudget).WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
			slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
				"url", target,
				"error", err,
			)
		}
	}

	markup, err := p.HTML()
	if err != nil {
		return nil, s.categorizeError(err, "failed to read rendered markup")
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = target
	}

	return &RenderedPage{
		URL:        target,
		FinalURL:   finalURL,
		HTML:       markup,
		Title:      evalStringOrEmpty(p, `() => document.title`),
		StatusCode: navigationStatus(p),
	}, nil
}

// Close implements Session. Each resource is released only if it was acquired.
func (s *browserSession) Close() error {
	s.closeOnce.Do(func() {
		if s.router != nil {
			_ = s.router.Stop()
		}
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				slog.Debug("failed to close page", "error", err)
			}
		}
		var browserErr error
		if s.browser != nil {
			browserErr = s.browser.Close()
			if browserErr != nil {
				s.closeErr = fmt.Errorf("close browser: %w", browserErr)
			}
		}
		if s.launcher != nil {
			if s.browser == nil || browserErr != nil {
				s.launcher.Kill()
			}
			s.launcher.Cleanup()
		}
	})
	return s.closeErr
}

// categorizeError wraps raw errors into typed ScrapeErrors. A failure that
// leaves the browser unresponsive is reported as a crash so the caller stops
// using the session.
func (s *browserSession) categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeCanceled, "render canceled", err)
	}
	if s.browser != nil {
		if _, pingErr := (proto.BrowserGetVersion{}).Call(s.browser.Timeout(livenessTimeout)); pingErr != nil {
			return models.NewScrapeError(models.ErrCodeBrowserCrash, "browser stopped responding", err)
		}
	}
	return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// navigationStatus reads the HTTP status of the last navigation without
// CDP network listeners, which conflict with request hijacking.
func navigationStatus(page *rod.Page) int {
	res, err := page.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
