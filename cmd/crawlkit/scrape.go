package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/crawlkit/crawler"
	"github.com/use-agent/crawlkit/models"
)

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Render one page and print its sections as JSON",
		Long: `Scrape renders a single page and prints its page record to stdout.

Examples:
  # Sections of one page
  crawlkit scrape https://example.com

  # The rendered markup, verbatim
  crawlkit scrape --mode raw https://example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runScrape,
	}

	cmd.Flags().StringP("mode", "m", string(models.ModeBeautify), "Output mode: beautify or raw")
	cmd.Flags().DurationP("timeout", "t", 0, "Per-page render timeout (default from CRAWLKIT_PAGE_TIMEOUT)")

	return cmd
}

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a site breadth-first and print the result as JSON",
		Long: `Crawl starts at the given URL and follows same-host links breadth-first
until the page budget is spent or no links remain. Links are only
followed in beautify mode.

Interrupting the command (Ctrl-C) stops the crawl after the current page
and prints what was collected so far.

Examples:
  crawlkit crawl https://example.com --max-pages 20
  crawlkit crawl https://example.com --exclude "/blog/*" --exclude "*.pdf"`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawl,
	}

	cmd.Flags().StringP("mode", "m", string(models.ModeBeautify), "Output mode: beautify or raw")
	cmd.Flags().IntP("max-pages", "n", 0, "Page budget (default from CRAWLKIT_DEFAULT_MAX_PAGES)")
	cmd.Flags().DurationP("timeout", "t", 0, "Per-page render timeout (default from CRAWLKIT_PAGE_TIMEOUT)")
	cmd.Flags().StringSlice("exclude", nil, "Glob patterns of paths to skip; may be repeated")

	return cmd
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	initLogger(cfg.Log, cmd.ErrOrStderr())

	r, ex, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	cr := crawler.New(r, ex, cfg.Crawl, cfg.Renderer.PageTimeout)

	mode, _ := cmd.Flags().GetString("mode")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	page, err := cr.Scrape(ctx, args[0], models.Mode(mode), crawler.WithPageTimeout(timeout))
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), page)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	initLogger(cfg.Log, cmd.ErrOrStderr())

	r, ex, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	cr := crawler.New(r, ex, cfg.Crawl, cfg.Renderer.PageTimeout)

	mode, _ := cmd.Flags().GetString("mode")
	maxPages, _ := cmd.Flags().GetInt("max-pages")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	result, err := cr.Crawl(ctx, args[0], models.Mode(mode),
		crawler.WithMaxPages(maxPages),
		crawler.WithPageTimeout(timeout),
		crawler.WithExcludePatterns(exclude),
	)
	if err != nil {
		return err
	}
	if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if result.Status != models.StatusSuccess {
		return fmt.Errorf("crawl stopped after %d pages in %s: %s",
			len(result.Pages), time.Since(start).Round(time.Millisecond), result.Error)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
