// Package extractor segments rendered markup into ordered content sections
// and collects the page's outgoing links.
package extractor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/crawlkit/config"
	"github.com/use-agent/crawlkit/models"
	"golang.org/x/net/html"
)

// Extraction is everything taken from one rendered page.
type Extraction struct {
	// Sections are the non-empty sections in document order.
	Sections []models.Section

	// Links are every anchor on the page, resolved to absolute http(s) URLs
	// without fragments, deduplicated, in document order.
	Links []string
}

// Extractor applies one SegmentationStrategy to every page it sees.
// It holds no per-page state and is safe for concurrent use.
type Extractor struct {
	strategy SegmentationStrategy
	scope    cascadia.Selector
}

// New creates an Extractor around strategy.
func New(strategy SegmentationStrategy) *Extractor {
	return &Extractor{strategy: strategy}
}

// FromConfig builds the strategy and optional scope named by cfg.
func FromConfig(cfg config.CrawlConfig) (*Extractor, error) {
	strategy, err := NewStrategy(cfg.Strategy, cfg.ContainerSelector)
	if err != nil {
		return nil, err
	}
	return New(strategy).WithScope(cfg.ScopeSelector)
}

// WithScope returns a copy of e that segments only the subtrees matching
// selector. Pages where nothing matches are segmented whole. An empty
// selector clears the scope.
func (e *Extractor) WithScope(selector string) (*Extractor, error) {
	cp := *e
	cp.scope = nil
	if selector = strings.TrimSpace(selector); selector != "" {
		sel, err := cascadia.Compile(selector)
		if err != nil {
			return nil, fmt.Errorf("invalid scope selector %q: %w", selector, err)
		}
		cp.scope = sel
	}
	return &cp, nil
}

// Strategy returns the segmentation strategy in use.
func (e *Extractor) Strategy() SegmentationStrategy {
	return e.strategy
}

// Extract parses markup once and returns its sections and links. pageURL is
// the base for resolving relative references.
func (e *Extractor) Extract(markup, pageURL string) (*Extraction, error) {
	base, err := url.Parse(pageURL)
	if err != nil || !base.IsAbs() {
		return nil, models.NewScrapeError(models.ErrCodeExtraction,
			fmt.Sprintf("page URL %q is not absolute", pageURL), err)
	}
	base.Fragment = ""
	base.RawFragment = ""

	node, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to parse markup", err)
	}
	doc := goquery.NewDocumentFromNode(node)

	root := doc.Selection
	if e.scope != nil {
		if scoped := doc.FindMatcher(e.scope); scoped.Length() > 0 {
			root = scoped
		}
	}

	segmented := e.strategy.Segment(root, base)
	sections := make([]models.Section, 0, len(segmented))
	for _, s := range segmented {
		if !s.Empty() {
			sections = append(sections, s)
		}
	}

	return &Extraction{
		Sections: sections,
		Links:    discoverLinks(doc.Selection, base),
	}, nil
}

// discoverLinks collects crawlable anchors from the whole document.
func discoverLinks(root *goquery.Selection, base *url.URL) []string {
	links := []string{}
	seen := make(map[string]struct{})
	root.FindMatcher(linkMatcher).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs, ok := resolveLink(base, href)
		if !ok {
			return
		}
		if u, err := url.Parse(abs); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}
