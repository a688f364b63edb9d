package models

// Crawl job statuses.
const (
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// CrawlJob tracks an asynchronous crawl.
type CrawlJob struct {
	ID            string
	Status        string // "processing", "completed", "failed"
	Completed     int
	MaxPages      int
	Result        *CrawlResult
	UniqueCode    string
	CreatedAt     int64 // unix timestamp
	WebhookURL    string
	WebhookSecret string
}

// CrawlJobResponse is returned for an accepted async crawl and by
// GET /api/v1/crawl/:id.
type CrawlJobResponse struct {
	ID         string       `json:"id"`
	Status     string       `json:"status"`
	Completed  int          `json:"completed"`
	MaxPages   int          `json:"max_pages"`
	UniqueCode string       `json:"unique_code,omitempty"`
	Result     *CrawlResult `json:"result,omitempty"`
}
