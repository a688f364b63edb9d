// Package crawler drives one rendering session across a breadth-first
// traversal of a site and assembles the per-page results.
//
// A crawl owns its session and frontier for the duration of one call. Pages
// are rendered strictly one at a time in frontier order; concurrent crawls
// each open their own session.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/crawlkit/config"
	"github.com/use-agent/crawlkit/extractor"
	"github.com/use-agent/crawlkit/frontier"
	"github.com/use-agent/crawlkit/metrics"
	"github.com/use-agent/crawlkit/models"
	"github.com/use-agent/crawlkit/renderer"
)

// fallbackMaxPages applies when the configuration has no usable default.
const fallbackMaxPages = 50

// Crawler composes a Renderer and an Extractor. It holds no per-crawl state
// and is safe for concurrent use.
type Crawler struct {
	renderer    renderer.Renderer
	extractor   *extractor.Extractor
	cfg         config.CrawlConfig
	pageTimeout time.Duration
}

// New creates a Crawler. pageTimeout bounds each render unless a call
// overrides it.
func New(r renderer.Renderer, ex *extractor.Extractor, cfg config.CrawlConfig, pageTimeout time.Duration) *Crawler {
	return &Crawler{
		renderer:    r,
		extractor:   ex,
		cfg:         cfg,
		pageTimeout: pageTimeout,
	}
}

type options struct {
	maxPages    int
	pageTimeout time.Duration
	exclude     []string
	onPage      func(models.PageRecord)
}

// Option tunes a single Scrape or Crawl call.
type Option func(*options)

// WithMaxPages sets the page budget. Zero means the configured default.
func WithMaxPages(n int) Option {
	return func(o *options) { o.maxPages = n }
}

// WithPageTimeout overrides the per-page render timeout.
func WithPageTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pageTimeout = d
		}
	}
}

// WithExcludePatterns adds URL globs the crawl must not follow.
func WithExcludePatterns(patterns []string) Option {
	return func(o *options) { o.exclude = append(o.exclude, patterns...) }
}

// WithPageHook is called with every record as soon as it is collected.
func WithPageHook(fn func(models.PageRecord)) Option {
	return func(o *options) { o.onPage = fn }
}

func (c *Crawler) buildOptions(opts []Option) *options {
	o := &options{pageTimeout: c.pageTimeout}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Scrape renders a single URL with no link discovery. Per-page failures
// are returned as errors rather than error records.
func (c *Crawler) Scrape(ctx context.Context, rawURL string, mode models.Mode, opts ...Option) (*models.PageRecord, error) {
	o := c.buildOptions(opts)
	mode, err := models.ParseMode(string(mode), c.cfg.StrictMode)
	if err != nil {
		return nil, err
	}
	target, err := frontier.New().Seed(rawURL)
	if err != nil {
		return nil, err
	}

	sess, err := c.renderer.Open(ctx)
	if err != nil {
		slog.Error("failed to open rendering session", "url", target, "renderer", c.renderer.Name(), "error", err)
		return nil, err
	}
	defer closeSession(sess, target)

	record, _, err := c.processPage(ctx, sess, target, mode, o.pageTimeout)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Crawl walks the site rooted at baseURL breadth-first, following same-host
// links in beautify mode, until the frontier drains or the page budget is
// spent. Failed pages are recorded inline and count toward the budget.
//
// The returned error is non-nil only when the input is rejected, in which
// case nothing is rendered. Renderer provisioning failures, browser crashes
// and cancellation yield a result with status "error"; pages collected
// before a mid-crawl abort are kept.
func (c *Crawler) Crawl(ctx context.Context, baseURL string, mode models.Mode, opts ...Option) (*models.CrawlResult, error) {
	p, err := c.prepare(baseURL, mode, opts)
	if err != nil {
		return nil, err
	}
	f, seed, mode, maxPages, o := p.frontier, p.seed, p.mode, p.maxPages, p.opts

	start := time.Now()
	result := &models.CrawlResult{
		Status:  models.StatusSuccess,
		BaseURL: seed,
		Mode:    mode,
		Pages:   []models.PageRecord{},
	}
	defer func() {
		metrics.ObserveCrawl(result.Status, time.Since(start))
		slog.Info("crawl finished",
			"url", seed,
			"status", result.Status,
			"pages", len(result.Pages),
			"duration", time.Since(start).String(),
		)
	}()

	slog.Info("crawl started", "url", seed, "mode", mode, "max_pages", maxPages)

	sess, err := c.renderer.Open(ctx)
	if err != nil {
		slog.Error("failed to open rendering session", "url", seed, "renderer", c.renderer.Name(), "error", err)
		result.Status = models.StatusError
		result.Error = err.Error()
		return result, nil
	}
	defer closeSession(sess, seed)

	var pending frontierGauge
	defer pending.set(0)

	for len(result.Pages) < maxPages {
		if err := ctx.Err(); err != nil {
			abort(result, models.NewScrapeError(models.ErrCodeCanceled, "crawl canceled", err))
			return result, nil
		}

		next, ok := f.Next()
		if !ok {
			break
		}
		f.MarkVisited(next)
		pending.set(f.Len())

		record, page, err := c.processPage(ctx, sess, next, mode, o.pageTimeout)
		if err != nil && models.IsFatal(err) {
			abort(result, err)
			return result, nil
		}
		if err != nil {
			record = models.NewErrorRecord(next, err)
		}

		result.Pages = append(result.Pages, record)
		if o.onPage != nil {
			o.onPage(record)
		}

		if page == nil || mode != models.ModeBeautify {
			continue
		}
		if page.source != next {
			// Redirect targets count as visited so they are not fetched again.
			f.MarkVisited(page.source)
		}
		for _, link := range page.links {
			f.Offer(link, page.source)
		}
		pending.set(f.Len())
	}

	if pending := f.Len(); pending > 0 {
		slog.Warn("page budget reached, stopping crawl",
			"url", seed,
			"max_pages", maxPages,
			"pending", pending,
		)
	}
	return result, nil
}

// frontierGauge applies one crawl's share of the process-wide frontier
// gauge as deltas, so concurrent crawls add up instead of overwriting.
type frontierGauge struct {
	reported int
}

func (g *frontierGauge) set(n int) {
	if n == g.reported {
		return
	}
	metrics.FrontierSize.Add(float64(n - g.reported))
	g.reported = n
}

// Validate runs the input checks of Crawl without rendering anything.
// It returns the resolved page budget.
func (c *Crawler) Validate(baseURL string, mode models.Mode, opts ...Option) (int, error) {
	p, err := c.prepare(baseURL, mode, opts)
	if err != nil {
		return 0, err
	}
	return p.maxPages, nil
}

// plan is a validated crawl request.
type plan struct {
	opts     *options
	mode     models.Mode
	maxPages int
	frontier *frontier.Frontier
	seed     string
}

func (c *Crawler) prepare(baseURL string, mode models.Mode, opts []Option) (*plan, error) {
	o := c.buildOptions(opts)
	mode, err := models.ParseMode(string(mode), c.cfg.StrictMode)
	if err != nil {
		return nil, err
	}
	maxPages, err := c.resolveMaxPages(o.maxPages)
	if err != nil {
		return nil, err
	}

	exclude := append(append([]string{}, c.cfg.ExcludePatterns...), o.exclude...)
	f := frontier.New(frontier.WithExcludePatterns(exclude))
	seed, err := f.Seed(baseURL)
	if err != nil {
		return nil, err
	}
	return &plan{opts: o, mode: mode, maxPages: maxPages, frontier: f, seed: seed}, nil
}

// resolveMaxPages applies the configured default and limit to a requested budget.
func (c *Crawler) resolveMaxPages(requested int) (int, error) {
	switch {
	case requested < 0:
		return 0, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("max_pages must be at least 1, got %d", requested), nil)
	case requested == 0:
		if c.cfg.DefaultMaxPages > 0 {
			return c.cfg.DefaultMaxPages, nil
		}
		return fallbackMaxPages, nil
	case c.cfg.MaxPagesLimit > 0 && requested > c.cfg.MaxPagesLimit:
		return 0, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("max_pages %d exceeds the limit of %d", requested, c.cfg.MaxPagesLimit), nil)
	}
	return requested, nil
}

// discovered carries what a rendered page contributes to the frontier.
type discovered struct {
	source string
	links  []string
}

// processPage renders one URL and converts it into a record. A returned
// error means the page failed; the caller decides whether that is fatal.
func (c *Crawler) processPage(ctx context.Context, sess renderer.Session, target string, mode models.Mode, timeout time.Duration) (models.PageRecord, *discovered, error) {
	start := time.Now()
	page, err := sess.Render(ctx, target, timeout)
	renderTime := time.Since(start)
	if err != nil {
		metrics.ObservePage(metrics.OutcomeFailed, renderTime)
		if models.IsFatal(err) {
			slog.Error("render aborted", "url", target, "error", err)
		} else {
			slog.Warn("page render failed", "url", target, "error", err)
		}
		return models.PageRecord{}, nil, err
	}

	base, source := target, target
	if page.FinalURL != "" {
		if normalized, err := frontier.Normalize(page.FinalURL); err == nil {
			base, source = page.FinalURL, normalized
		}
	}

	if mode == models.ModeRaw {
		metrics.ObservePage(metrics.OutcomeRaw, renderTime)
		return models.NewRawRecord(target, page.HTML), &discovered{source: source}, nil
	}

	extraction, err := c.extractor.Extract(page.HTML, base)
	if err != nil {
		metrics.ObservePage(metrics.OutcomeFailed, renderTime)
		slog.Warn("extraction failed", "url", target, "error", err)
		return models.PageRecord{}, nil, err
	}

	metrics.ObservePage(metrics.OutcomeSections, renderTime)
	slog.Debug("page extracted",
		"url", target,
		"sections", len(extraction.Sections),
		"links", len(extraction.Links),
		"render_ms", renderTime.Milliseconds(),
	)
	return models.NewSectionsRecord(target, extraction.Sections), &discovered{
		source: source,
		links:  extraction.Links,
	}, nil
}

// abort marks result failed with err, keeping the pages gathered so far.
func abort(result *models.CrawlResult, err error) {
	slog.Error("crawl aborted", "url", result.BaseURL, "pages", len(result.Pages), "error", err)
	result.Status = models.StatusError
	result.Error = err.Error()
}

func closeSession(sess renderer.Session, target string) {
	if err := sess.Close(); err != nil {
		slog.Warn("failed to close rendering session", "url", target, "error", err)
	}
}
