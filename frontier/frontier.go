// Package frontier holds the pending queue and visited set of one crawl.
//
// A URL is enqueued at most once and handed out by Next at most once. The
// crawler marks a URL visited as soon as it is popped, so a link rediscovered
// while that page is still rendering is already rejected by Offer.
package frontier

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/use-agent/crawlkit/models"
)

// Frontier is a FIFO of same-host URLs. It is not safe for concurrent use;
// every crawl owns its own instance.
type Frontier struct {
	domain  string
	queue   []string
	queued  map[string]struct{}
	visited map[string]struct{}
	exclude []string
}

// Option configures a Frontier.
type Option func(*Frontier)

// WithExcludePatterns skips URLs whose path or full URL matches any glob.
// Besides path.Match syntax, "prefix/*" matches everything under prefix and
// "*.ext" matches any URL ending in .ext.
func WithExcludePatterns(patterns []string) Option {
	return func(f *Frontier) {
		f.exclude = append(f.exclude, patterns...)
	}
}

// New creates an empty Frontier.
func New(opts ...Option) *Frontier {
	f := &Frontier{
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Normalize drops the fragment, lower-cases the host and trims trailing
// slashes. Applying it twice yields the same result.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return normalizeURL(u), nil
}

func normalizeURL(u *url.URL) string {
	cp := *u
	cp.Fragment = ""
	cp.RawFragment = ""
	cp.Host = strings.ToLower(cp.Host)
	return strings.TrimRight(cp.String(), "/")
}

// Seed normalizes baseURL, fixes the crawl domain to its host and enqueues
// it. The normalized seed is returned.
func (f *Frontier) Seed(baseURL string) (string, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return "", models.NewScrapeError(models.ErrCodeInvalidInput, "url is required", nil)
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeInvalidInput, fmt.Sprintf("invalid url %q", baseURL), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("unsupported scheme %q: only http and https can be crawled", u.Scheme), nil)
	}
	if u.Host == "" {
		return "", models.NewScrapeError(models.ErrCodeInvalidInput, fmt.Sprintf("url %q has no host", baseURL), nil)
	}

	f.domain = strings.ToLower(u.Host)
	seed := normalizeURL(u)
	f.enqueue(seed)
	return seed, nil
}

// Domain returns the host fixed by Seed.
func (f *Frontier) Domain() string {
	return f.domain
}

// Offer resolves candidate against source and enqueues it if it is an
// http(s) URL on the crawl host that is neither visited, queued nor
// excluded. Malformed candidates are dropped. It reports whether the URL was
// enqueued.
func (f *Frontier) Offer(candidate, source string) bool {
	if f.domain == "" {
		return false
	}
	src, err := url.Parse(source)
	if err != nil {
		return false
	}
	u, err := src.Parse(strings.TrimSpace(candidate))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !strings.EqualFold(u.Host, f.domain) {
		return false
	}

	key := normalizeURL(u)
	if f.excluded(key) {
		return false
	}
	if _, ok := f.visited[key]; ok {
		return false
	}
	if _, ok := f.queued[key]; ok {
		return false
	}
	f.enqueue(key)
	return true
}

// Next pops the oldest queued URL that has not been visited. It returns
// false once the queue is drained.
func (f *Frontier) Next() (string, bool) {
	for len(f.queue) > 0 {
		next := f.queue[0]
		f.queue[0] = ""
		f.queue = f.queue[1:]
		delete(f.queued, next)
		if _, ok := f.visited[next]; ok {
			continue
		}
		return next, true
	}
	return "", false
}

// MarkVisited records rawURL as processed. Call it right after Next.
func (f *Frontier) MarkVisited(rawURL string) {
	key, err := Normalize(rawURL)
	if err != nil {
		key = rawURL
	}
	f.visited[key] = struct{}{}
}

// Visited reports whether rawURL was marked visited.
func (f *Frontier) Visited(rawURL string) bool {
	key, err := Normalize(rawURL)
	if err != nil {
		return false
	}
	_, ok := f.visited[key]
	return ok
}

// Len returns the number of URLs waiting in the queue.
func (f *Frontier) Len() int {
	return len(f.queue)
}

func (f *Frontier) enqueue(key string) {
	f.queued[key] = struct{}{}
	f.queue = append(f.queue, key)
}

func (f *Frontier) excluded(rawURL string) bool {
	if len(f.exclude) == 0 {
		return false
	}
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	for _, pattern := range f.exclude {
		if matchPattern(pattern, path) || matchPattern(pattern, rawURL) {
			return true
		}
	}
	return false
}

// matchPattern matches value against a glob with "prefix/*" and "*.ext"
// shortcuts on top of filepath.Match.
func matchPattern(pattern, value string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(value, prefix+"/") || value == prefix {
			return true
		}
	}
	if strings.HasPrefix(pattern, "*.") && strings.HasSuffix(value, strings.TrimPrefix(pattern, "*")) {
		return true
	}
	matched, err := filepath.Match(pattern, value)
	return err == nil && matched
}
