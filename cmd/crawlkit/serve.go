package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/crawlkit/api"
	"github.com/use-agent/crawlkit/api/handler"
	"github.com/use-agent/crawlkit/cache"
	"github.com/use-agent/crawlkit/config"
	"github.com/use-agent/crawlkit/crawler"
	"github.com/use-agent/crawlkit/extractor"
	"github.com/use-agent/crawlkit/renderer"
	"github.com/use-agent/crawlkit/storage"
)

// shutdownGrace bounds how long in-flight requests and jobs get to finish.
const shutdownGrace = 5 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve exposes scraping, crawling and storage over HTTP.

Routes live under /api/v1; /api/v1/health and /metrics are unauthenticated.
SIGINT or SIGTERM drains in-flight requests and cancels running crawl jobs.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("host", "", "Listen host (overrides CRAWLKIT_HOST)")
	cmd.Flags().IntP("port", "p", 0, "Listen port (overrides CRAWLKIT_PORT)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := loadConfig(cmd)
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		cfg.Server.Host = v
	}
	if v, _ := cmd.Flags().GetInt("port"); v > 0 {
		cfg.Server.Port = v
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log, os.Stdout)
	slog.Info("crawlkit starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"renderer", cfg.Renderer.Backend,
		"strategy", cfg.Crawl.Strategy,
	)

	// ── 3. Renderer, extractor and crawler ──────────────────────────
	r, ex, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	if err := renderer.Check(r); err != nil {
		slog.Warn("renderer is not ready, requests will fail until it is", "renderer", r.Name(), "error", err)
	}
	cr := crawler.New(r, ex, cfg.Crawl, cfg.Renderer.PageTimeout)

	// ── 4. Cache, storage and jobs ──────────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	defer cc.Close()

	st, err := storage.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	jobs := handler.NewJobStore(cfg.Jobs.TTL)

	// ── 5. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(api.Services{
		Renderer: r,
		Crawler:  cr,
		Strategy: ex.Strategy().Name(),
		Cache:    cc,
		Store:    st,
		Jobs:     jobs,
	}, cfg, time.Now())

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		_ = jobs.Close(context.Background())
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	if err := jobs.Close(shutdownCtx); err != nil {
		slog.Warn("crawl jobs still running at shutdown", "error", err)
	}

	slog.Info("crawlkit stopped")
	return nil
}

// newPipeline builds the renderer and extractor named by cfg.
func newPipeline(cfg *config.Config) (renderer.Renderer, *extractor.Extractor, error) {
	r, err := renderer.New(cfg.Renderer.Backend, cfg.Browser)
	if err != nil {
		return nil, nil, err
	}
	ex, err := extractor.FromConfig(cfg.Crawl)
	if err != nil {
		return nil, nil, fmt.Errorf("configure extractor: %w", err)
	}
	return r, ex, nil
}
