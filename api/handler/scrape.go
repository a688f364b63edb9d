package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/crawlkit/cache"
	"github.com/use-agent/crawlkit/config"
	"github.com/use-agent/crawlkit/crawler"
	"github.com/use-agent/crawlkit/frontier"
	"github.com/use-agent/crawlkit/models"
	"github.com/use-agent/crawlkit/storage"
	"golang.org/x/sync/singleflight"
)

// Scrape returns a handler for POST /api/v1/scrape.
//
// Orchestration flow:
//  1. Parse & validate request, resolve the mode.
//  2. Cache lookup when max_age is set.
//  3. Crawler.Scrape → one session, one render, no discovery. Concurrent
//     cacheable requests for the same key share a single render.
//  4. Cache store, optional persistence, respond 200.
func Scrape(cr *crawler.Crawler, cc *cache.Cache, st storage.Store, strategy string, cfg *config.Config) gin.HandlerFunc {
	var flights singleflight.Group

	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), models.TimingInfo{})
			return
		}
		req.Defaults()

		mode, err := models.ParseMode(req.Mode, cfg.Crawl.StrictMode)
		if err != nil {
			respondError(c, err, models.TimingInfo{})
			return
		}

		// ── 2. Cache lookup ─────────────────────────────────────────
		var cacheKey string
		if cc != nil && req.MaxAge > 0 {
			if normalized, err := frontier.Normalize(req.URL); err == nil {
				cacheKey = cache.Key(normalized, mode, strategy)
			}
		}
		if cacheKey != "" {
			if cached, hit := cc.Get(cacheKey, time.Duration(req.MaxAge)*time.Millisecond); hit {
				resp := models.ScrapeResponse{
					Success:     true,
					Mode:        mode,
					Page:        &cached,
					CacheStatus: "hit",
				}
				if !persist(c, st, req.Store, cached, &resp.UniqueCode) {
					return
				}
				resp.Timing = models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()}
				c.JSON(http.StatusOK, resp)
				return
			}
		}

		// ── 3. Scrape ───────────────────────────────────────────────
		renderStart := time.Now()
		render := func() (*models.PageRecord, error) {
			return cr.Scrape(c.Request.Context(), req.URL, mode,
				crawler.WithPageTimeout(requestTimeout(req.Timeout, cfg.Renderer)))
		}
		var page *models.PageRecord
		if cacheKey != "" {
			v, flightErr, _ := flights.Do(cacheKey, func() (any, error) {
				p, err := render()
				if err == nil {
					cc.Set(cacheKey, *p)
				}
				return p, err
			})
			err = flightErr
			if err == nil {
				page = v.(*models.PageRecord)
			}
		} else {
			page, err = render()
		}
		renderMs := time.Since(renderStart).Milliseconds()
		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs:  time.Since(totalStart).Milliseconds(),
				RenderMs: renderMs,
			})
			return
		}

		// ── 4. Cache store, persist and respond ─────────────────────
		resp := models.ScrapeResponse{
			Success: true,
			Mode:    mode,
			Page:    page,
		}
		if cacheKey != "" {
			resp.CacheStatus = "miss"
		}
		if !persist(c, st, req.Store, *page, &resp.UniqueCode) {
			return
		}
		resp.Timing = models.TimingInfo{
			TotalMs:  time.Since(totalStart).Milliseconds(),
			RenderMs: renderMs,
		}
		c.JSON(http.StatusOK, resp)
	}
}

// persist stores data when requested and writes the key into code. On
// failure it responds with an error and returns false.
func persist(c *gin.Context, st storage.Store, requested bool, data any, code *string) bool {
	if !requested {
		return true
	}
	if st == nil {
		respondError(c, models.NewScrapeError(models.ErrCodeStorage, "storage is not configured", nil), models.TimingInfo{})
		return false
	}
	key, err := st.Create(c.Request.Context(), data)
	if err != nil {
		slog.Error("failed to persist result", "error", err)
		respondError(c, storageError(err), models.TimingInfo{})
		return false
	}
	*code = key
	return true
}

// requestTimeout converts a client timeout in seconds to a duration,
// falling back to the configured default and capping at the maximum.
func requestTimeout(seconds int, cfg config.RendererConfig) time.Duration {
	if seconds <= 0 {
		return cfg.PageTimeout
	}
	d := time.Duration(seconds) * time.Second
	if cfg.MaxTimeout > 0 && d > cfg.MaxTimeout {
		return cfg.MaxTimeout
	}
	return d
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.ScrapeResponse{
		Success: false,
		Error:   scrapeErr.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeRendererUnavailable, models.ErrCodeBrowserCrash:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeCanceled:
		return http.StatusRequestTimeout // 408
	case models.ErrCodeExtraction:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
