// Command crawlkit-mcp exposes the crawlkit HTTP API as MCP tools over
// stdio.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/crawlkit/models"
)

// client talks to a crawlkit API server.
type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func main() {
	apiURL := os.Getenv("CRAWLKIT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	c := &client{
		baseURL: strings.TrimRight(apiURL, "/"),
		apiKey:  os.Getenv("CRAWLKIT_API_KEY"),
		http:    &http.Client{Timeout: 10 * time.Minute},
	}

	s := server.NewMCPServer(
		"crawlkit",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	scrapePageTool := mcp.NewTool("scrape_page",
		mcp.WithDescription("Render a web page in a headless browser and return it split into sections (heading, paragraphs, images, links), or the raw rendered HTML."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The http(s) URL of the page to scrape"),
		),
		mcp.WithString("mode",
			mcp.Description("'beautify' (default) returns sections, 'raw' returns the rendered HTML"),
			mcp.Enum(string(models.ModeBeautify), string(models.ModeRaw)),
		),
	)
	s.AddTool(scrapePageTool, c.handleScrapePage)

	crawlSiteTool := mcp.NewTool("crawl_site",
		mcp.WithDescription("Crawl a website breadth-first from a URL, following links on the same host, and return the sections of every visited page."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The starting URL"),
		),
		mcp.WithString("mode",
			mcp.Description("'beautify' (default) follows links and returns sections; 'raw' returns the start page HTML only"),
			mcp.Enum(string(models.ModeBeautify), string(models.ModeRaw)),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Maximum number of pages to visit (default: 50)"),
		),
	)
	s.AddTool(crawlSiteTool, c.handleCrawlSite)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// post sends a JSON request to the API and returns the response body.
func (c *client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func (c *client) handleScrapePage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url is required"), nil
	}
	mode := request.GetString("mode", string(models.ModeBeautify))

	body, err := c.post(ctx, "/api/v1/scrape", models.ScrapeRequest{URL: url, Mode: mode})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var resp models.ScrapeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
	}
	if !resp.Success || resp.Page == nil {
		return mcp.NewToolResultError(describeError(resp.Error, "scrape failed")), nil
	}

	var sb strings.Builder
	writePage(&sb, *resp.Page)
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *client) handleCrawlSite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url is required"), nil
	}

	payload := map[string]any{
		"url":  url,
		"mode": request.GetString("mode", string(models.ModeBeautify)),
	}
	if maxPages, ok := request.GetArguments()["max_pages"]; ok {
		payload["max_pages"] = maxPages
	}

	body, err := c.post(ctx, "/api/v1/crawl", payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Rejected input comes back as an error envelope, crawl results inline.
	var envelope struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
	}
	if envelope.Success != nil && !*envelope.Success {
		var failure models.ErrorResponse
		_ = json.Unmarshal(body, &failure)
		return mcp.NewToolResultError(describeError(failure.Error, "crawl failed")), nil
	}

	var result models.CrawlResult
	if err := json.Unmarshal(body, &result); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
	}

	return mcp.NewToolResultText(formatCrawl(result)), nil
}

func describeError(detail *models.ErrorDetail, fallback string) string {
	if detail == nil {
		return fallback
	}
	return fmt.Sprintf("[%s] %s", detail.Code, detail.Message)
}

// formatCrawl renders a crawl result as readable text.
func formatCrawl(result models.CrawlResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Crawl of %s: %s (%d pages)\n", result.BaseURL, result.Status, len(result.Pages))
	if result.Error != "" {
		fmt.Fprintf(&sb, "Stopped: %s\n", result.Error)
	}
	for i, page := range result.Pages {
		fmt.Fprintf(&sb, "\n--- Page %d ---\n", i+1)
		writePage(&sb, page)
	}
	return sb.String()
}

// writePage renders one page record. Raw markup is written verbatim.
func writePage(sb *strings.Builder, page models.PageRecord) {
	fmt.Fprintf(sb, "URL: %s\n", page.URL)
	switch {
	case page.Error != "":
		fmt.Fprintf(sb, "FAILED: %s\n", page.Error)
	case page.RawMarkup != nil:
		sb.WriteString("\n")
		sb.WriteString(*page.RawMarkup)
		sb.WriteString("\n")
	default:
		for _, section := range page.Sections {
			sb.WriteString("\n")
			if section.Heading != nil {
				level := strings.TrimPrefix(section.Heading.Tag, "h")
				fmt.Fprintf(sb, "%s %s\n", strings.Repeat("#", headingLevel(level)), section.Heading.Text)
			}
			for _, text := range section.Content {
				sb.WriteString(text)
				sb.WriteString("\n")
			}
			for _, img := range section.Images {
				fmt.Fprintf(sb, "[image] %s\n", img)
			}
			for _, link := range section.Links {
				fmt.Fprintf(sb, "[link] %s\n", link)
			}
		}
	}
}

func headingLevel(digit string) int {
	if len(digit) == 1 && digit[0] >= '1' && digit[0] <= '6' {
		return int(digit[0] - '0')
	}
	return 1
}
