package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/crawlkit/api/handler"
	"github.com/use-agent/crawlkit/api/middleware"
	"github.com/use-agent/crawlkit/cache"
	"github.com/use-agent/crawlkit/config"
	"github.com/use-agent/crawlkit/crawler"
	"github.com/use-agent/crawlkit/renderer"
	"github.com/use-agent/crawlkit/storage"
)

// Services are the collaborators the HTTP layer exposes.
type Services struct {
	Renderer renderer.Renderer
	Crawler  *crawler.Crawler
	Strategy string
	Cache    *cache.Cache  // optional
	Store    storage.Store // optional; store routes are omitted when nil
	Jobs     *handler.JobStore
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → Metrics → CORS
//	API:     Auth (if enabled) → per-route rate limit charge
//
// Health and /metrics are outside auth so monitoring probes always work.
// The unversioned legacy paths map onto the same handlers.
func NewRouter(svc Services, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.CORS))

	storageBackend := "none"
	if svc.Store != nil {
		storageBackend = svc.Store.Backend()
	}

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "crawlkit API is running")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(svc.Renderer, svc.Strategy, svc.Jobs, storageBackend, startTime))

	// One limiter so both path sets draw on the same buckets. Crawl
	// submissions cost more than single-page requests.
	limiter := middleware.NewLimiter(cfg.RateLimit)
	perRequest := limiter.Charge(1)
	perCrawl := limiter.Charge(cfg.RateLimit.CrawlCost)

	var guards []gin.HandlerFunc
	if cfg.Auth.Enabled {
		guards = append(guards, middleware.Auth(cfg.Auth))
	}
	protect := func(g *gin.RouterGroup) *gin.RouterGroup {
		return g.Group("", guards...)
	}

	scrape := handler.Scrape(svc.Crawler, svc.Cache, svc.Store, svc.Strategy, cfg)
	crawl := handler.PostCrawl(svc.Crawler, svc.Jobs, svc.Store, cfg)

	api := protect(v1)
	api.POST("/scrape", perRequest, scrape)
	api.POST("/crawl", perCrawl, crawl)
	api.GET("/crawl/:id", perRequest, handler.GetCrawl(svc.Jobs))

	legacy := protect(&r.RouterGroup)
	legacy.POST("/scrape", perRequest, scrape)
	legacy.POST("/crawl", perCrawl, crawl)

	if svc.Store != nil {
		api.POST("/store", perRequest, handler.PostStore(svc.Store))
		api.GET("/store/:code", perRequest, handler.GetStore(svc.Store))
		api.PUT("/store/:code", perRequest, handler.PutStore(svc.Store))
		api.DELETE("/store/:code", perRequest, handler.DeleteStore(svc.Store))

		legacy.POST("/store_agent_data", perRequest, handler.PostStore(svc.Store))
		legacy.GET("/get_stored_file/:code", perRequest, handler.GetStore(svc.Store))
		legacy.PUT("/update_agent_data/:code", perRequest, handler.PutStore(svc.Store))
		legacy.DELETE("/delete_agent_data/:code", perRequest, handler.DeleteStore(svc.Store))
	}

	return r
}
