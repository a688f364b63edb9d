package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/crawlkit/config"
	"github.com/use-agent/crawlkit/crawler"
	"github.com/use-agent/crawlkit/models"
	"github.com/use-agent/crawlkit/storage"
	"github.com/use-agent/crawlkit/webhook"
)

// PostCrawl returns a handler for POST /api/v1/crawl.
//
// Synchronous crawls answer 200 with the crawl result inline, whatever its
// status. With async set the request is validated, a job is registered and
// 202 is returned at once; the job is polled via GetCrawl.
func PostCrawl(cr *crawler.Crawler, jobs *JobStore, st storage.Store, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		var req models.CrawlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), models.TimingInfo{})
			return
		}
		req.Defaults()

		mode := models.Mode(req.Mode)
		opts := []crawler.Option{
			crawler.WithMaxPages(req.MaxPages),
			crawler.WithPageTimeout(requestTimeout(req.Timeout, cfg.Renderer)),
			crawler.WithExcludePatterns(req.ExcludePatterns),
		}

		if req.Async {
			maxPages, err := cr.Validate(req.URL, mode, opts...)
			if err != nil {
				respondError(c, err, models.TimingInfo{})
				return
			}

			job := jobs.Create(maxPages, req.WebhookURL, req.WebhookSecret)
			jobs.Go(func(ctx context.Context) {
				runCrawlJob(ctx, cr, jobs, st, job, req, opts)
			})

			c.JSON(http.StatusAccepted, models.CrawlJobResponse{
				ID:       job.ID,
				Status:   job.Status,
				MaxPages: job.MaxPages,
			})
			return
		}

		result, err := cr.Crawl(c.Request.Context(), req.URL, mode, opts...)
		if err != nil {
			respondError(c, err, models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()})
			return
		}

		resp := models.CrawlResponse{CrawlResult: result}
		if !persist(c, st, req.Store, result, &resp.UniqueCode) {
			return
		}
		resp.Timing = models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()}
		c.JSON(http.StatusOK, resp)
	}
}

// GetCrawl returns a handler for GET /api/v1/crawl/:id.
func GetCrawl(jobs *JobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := jobs.Get(c.Param("id"))
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "crawl job not found", nil), models.TimingInfo{})
			return
		}

		c.JSON(http.StatusOK, models.CrawlJobResponse{
			ID:         job.ID,
			Status:     job.Status,
			Completed:  job.Completed,
			MaxPages:   job.MaxPages,
			UniqueCode: job.UniqueCode,
			Result:     job.Result,
		})
	}
}

// runCrawlJob executes an async crawl, records the outcome and notifies the
// webhook, if any.
func runCrawlJob(ctx context.Context, cr *crawler.Crawler, jobs *JobStore, st storage.Store, job models.CrawlJob, req models.CrawlRequest, opts []crawler.Option) {
	opts = append(opts, crawler.WithPageHook(func(models.PageRecord) {
		jobs.Progress(job.ID)
	}))

	result, err := cr.Crawl(ctx, req.URL, models.Mode(req.Mode), opts...)
	if err != nil {
		// Input was validated before the job started.
		result = &models.CrawlResult{
			Status:  models.StatusError,
			BaseURL: req.URL,
			Mode:    models.Mode(req.Mode),
			Pages:   []models.PageRecord{},
			Error:   err.Error(),
		}
	}

	var uniqueCode string
	if req.Store && st != nil {
		key, err := st.Create(context.WithoutCancel(ctx), result)
		if err != nil {
			slog.Error("failed to persist crawl result", "id", job.ID, "error", err)
		} else {
			uniqueCode = key
		}
	}
	jobs.Finish(job.ID, result, uniqueCode)

	slog.Info("crawl job finished",
		"id", job.ID,
		"status", result.Status,
		"pages", len(result.Pages),
	)

	if job.WebhookURL != "" {
		eventType, status := webhook.EventCrawlCompleted, models.JobCompleted
		if result.Status != models.StatusSuccess {
			eventType, status = webhook.EventCrawlFailed, models.JobFailed
		}
		webhook.DeliverAsync(job.WebhookURL, job.WebhookSecret, &webhook.Event{
			Type:      eventType,
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data: models.CrawlJobResponse{
				ID:         job.ID,
				Status:     status,
				Completed:  len(result.Pages),
				MaxPages:   job.MaxPages,
				UniqueCode: uniqueCode,
				Result:     result,
			},
		})
	}
}
