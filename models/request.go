package models

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	// URL is the target page to scrape. Required.
	URL string `json:"url" binding:"required"`

	// Mode is "raw" or "beautify". Default: "beautify".
	Mode string `json:"mode,omitempty"`

	// Type is accepted as an alias for Mode.
	Type string `json:"type,omitempty"`

	// Timeout is the per-page render timeout in seconds.
	// Default: server configuration. Capped at the configured maximum.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1"`

	// MaxAge enables the result cache: a cached page younger than MaxAge
	// milliseconds is returned without rendering. 0 disables caching.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`

	// Store persists the returned page and reports its unique code.
	Store bool `json:"store,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults() {
	if r.Mode == "" {
		r.Mode = r.Type
	}
}

// CrawlRequest is the payload for POST /api/v1/crawl.
type CrawlRequest struct {
	// URL is the page the crawl starts from. Required.
	URL string `json:"url" binding:"required"`

	// Mode is "raw" or "beautify". Default: "beautify".
	Mode string `json:"mode,omitempty"`

	// Type is accepted as an alias for Mode.
	Type string `json:"type,omitempty"`

	// MaxPages bounds the number of pages processed, failures included.
	// Default: server configuration (50).
	MaxPages int `json:"max_pages,omitempty" binding:"omitempty,min=1"`

	// Timeout is the per-page render timeout in seconds.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1"`

	// ExcludePatterns is a list of glob patterns for URLs to skip.
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`

	// Async runs the crawl as a background job polled via GET /api/v1/crawl/:id.
	Async bool `json:"async,omitempty"`

	// Store persists the finished crawl result and reports its unique code.
	Store bool `json:"store,omitempty"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *CrawlRequest) Defaults() {
	if r.Mode == "" {
		r.Mode = r.Type
	}
}

// StoreRequest is the payload for POST and PUT /api/v1/store.
type StoreRequest struct {
	Data any `json:"data" binding:"required"`
}
