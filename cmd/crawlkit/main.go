// Package main provides the crawlkit CLI.
//
// crawlkit renders pages through a headless browser (or plain HTTP), splits
// them into sections and crawls same-host links breadth-first.
//
// Usage:
//
//	crawlkit serve
//	crawlkit scrape <url>
//	crawlkit crawl <url> --max-pages 20
//
// See --help for all available options.
package main

func main() {
	Execute()
}
