package models

import "encoding/json"

// ScrapeResponse is the response for POST /api/v1/scrape.
type ScrapeResponse struct {
	// Success indicates whether the scrape completed without errors.
	Success bool `json:"success"`

	// Mode is the mode the page was produced in.
	Mode Mode `json:"mode,omitempty"`

	// Page is the scraped page. Nil on failure.
	Page *PageRecord `json:"page,omitempty"`

	// UniqueCode is the storage key when the request asked to store the page.
	UniqueCode string `json:"unique_code,omitempty"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// CrawlResponse is the response for a synchronous POST /api/v1/crawl.
// The CrawlResult fields are inlined.
type CrawlResponse struct {
	*CrawlResult

	UniqueCode string     `json:"unique_code,omitempty"`
	Timing     TimingInfo `json:"timing"`
}

// ErrorResponse is returned when a request is rejected before any work.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// StoreResponse is returned by the blob storage endpoints.
type StoreResponse struct {
	Success    bool            `json:"success"`
	UniqueCode string          `json:"unique_code,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// RenderMs is the time spent rendering pages, including extraction.
	RenderMs int64 `json:"render_ms,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status   string   `json:"status"` // "healthy" or "degraded"
	Uptime   string   `json:"uptime"`
	Renderer string   `json:"renderer"`
	Strategy string   `json:"strategy"`
	Jobs     JobStats `json:"jobs"`
	Storage  string   `json:"storage"`
	Version  string   `json:"version"`
}

// JobStats reports the state of asynchronous crawl jobs.
type JobStats struct {
	Running  int `json:"running"`
	Finished int `json:"finished"`
}
