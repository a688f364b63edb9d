package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/crawlkit/config"
)

// NewRootCmd creates the root command for crawlkit.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawlkit",
		Short: "Render, segment and crawl web pages",
		Long: `crawlkit turns web pages into structured sections.

It renders each page (headless Chromium by default, or plain HTTP with
--renderer static), splits the document into heading-led sections and
follows same-host links breadth-first up to a page budget.

Configuration is read from CRAWLKIT_* environment variables; the flags
below override the matching values.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("renderer", "", "Rendering backend: browser or static (overrides CRAWLKIT_RENDERER)")
	cmd.PersistentFlags().String("strategy", "", "Segmentation strategy: container or heading (overrides CRAWLKIT_STRATEGY)")
	cmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides CRAWLKIT_LOG_LEVEL)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the environment configuration and applies the global
// flag overrides.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	flags := cmd.Root().PersistentFlags()

	if v, _ := flags.GetString("renderer"); v != "" {
		cfg.Renderer.Backend = v
	}
	if v, _ := flags.GetString("strategy"); v != "" {
		cfg.Crawl.Strategy = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	return cfg
}
