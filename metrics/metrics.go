// Package metrics exposes the Prometheus collectors shared by the crawler
// and the HTTP layer. Collectors register with the default registry on
// package initialisation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Page outcomes.
const (
	OutcomeSections = "sections"
	OutcomeRaw      = "raw"
	OutcomeFailed   = "failed"
)

var (
	PagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawlkit_pages_total",
			Help: "Total number of pages processed, by outcome.",
		},
		[]string{"outcome"},
	)

	RenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawlkit_render_duration_seconds",
			Help:    "Duration of single page renders.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	FrontierSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawlkit_frontier_urls",
			Help: "URLs waiting in the frontiers of all running crawls.",
		},
	)

	CrawlsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawlkit_crawls_total",
			Help: "Total number of crawl invocations, by final status.",
		},
		[]string{"status"},
	)

	CrawlDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawlkit_crawl_duration_seconds",
			Help:    "Duration of whole crawls.",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120, 300, 600},
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawlkit_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawlkit_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// ObservePage records one processed page.
func ObservePage(outcome string, render time.Duration) {
	PagesTotal.WithLabelValues(outcome).Inc()
	if render > 0 {
		RenderDuration.Observe(render.Seconds())
	}
}

// ObserveCrawl records one finished crawl.
func ObserveCrawl(status string, d time.Duration) {
	CrawlsTotal.WithLabelValues(status).Inc()
	CrawlDuration.Observe(d.Seconds())
}
