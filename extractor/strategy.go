package extractor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/crawlkit/models"
)

// DefaultContainerSelector lists the block containers the container
// strategy segments on.
const DefaultContainerSelector = "section, div, article, main"

var (
	headingMatcher = cascadia.MustCompile("h1, h2, h3, h4, h5, h6")
	textMatcher    = cascadia.MustCompile("p, li, span")
	imageMatcher   = cascadia.MustCompile("img[src]")
	linkMatcher    = cascadia.MustCompile("a[href]")
	flatMatcher    = cascadia.MustCompile("h1, h2, h3, h4, h5, h6, p, li, span, img[src], a[href]")
)

// SegmentationStrategy splits a document into sections. Implementations
// must not return sections for which Empty is true.
type SegmentationStrategy interface {
	Name() string
	Segment(root *goquery.Selection, base *url.URL) []models.Section
}

// NewStrategy returns the strategy called name: "container" (default) or
// "heading". containerSelector overrides DefaultContainerSelector.
func NewStrategy(name, containerSelector string) (SegmentationStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "container":
		return NewContainerStrategy(containerSelector)
	case "heading", "flat":
		return HeadingStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown segmentation strategy %q (want container or heading)", name)
	}
}

// ContainerStrategy emits one section per block container. Containers are
// processed independently, so nested containers repeat their shared content.
type ContainerStrategy struct {
	matcher cascadia.Selector
}

// NewContainerStrategy compiles selector, or DefaultContainerSelector if empty.
func NewContainerStrategy(selector string) (*ContainerStrategy, error) {
	if selector = strings.TrimSpace(selector); selector == "" {
		selector = DefaultContainerSelector
	}
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid container selector %q: %w", selector, err)
	}
	return &ContainerStrategy{matcher: m}, nil
}

// Name implements SegmentationStrategy.
func (c *ContainerStrategy) Name() string { return "container" }

// Segment implements SegmentationStrategy. Without containers it falls back
// to the body, then to root itself.
func (c *ContainerStrategy) Segment(root *goquery.Selection, base *url.URL) []models.Section {
	containers := root.FindMatcher(c.matcher)
	if containers.Length() == 0 {
		containers = root.Find("body")
	}
	if containers.Length() == 0 {
		containers = root
	}

	sections := []models.Section{}
	containers.Each(func(_ int, container *goquery.Selection) {
		sec := models.NewSection()

		if h := container.FindMatcher(headingMatcher).First(); h.Length() > 0 {
			sec.Heading = &models.Heading{
				Tag:  goquery.NodeName(h),
				Text: strings.TrimSpace(h.Text()),
			}
		}
		container.FindMatcher(textMatcher).Each(func(_ int, s *goquery.Selection) {
			addText(&sec, s)
		})
		container.FindMatcher(imageMatcher).Each(func(_ int, s *goquery.Selection) {
			addImage(&sec, s, base)
		})
		container.FindMatcher(linkMatcher).Each(func(_ int, s *goquery.Selection) {
			addLink(&sec, s, base)
		})

		if !sec.Empty() {
			sections = append(sections, sec)
		}
	})
	return sections
}

// HeadingStrategy walks headings, text, images and anchors in one document
// order pass and opens a new section at every heading.
type HeadingStrategy struct{}

// Name implements SegmentationStrategy.
func (HeadingStrategy) Name() string { return "heading" }

// Segment implements SegmentationStrategy.
func (HeadingStrategy) Segment(root *goquery.Selection, base *url.URL) []models.Section {
	sections := []models.Section{}
	current := models.NewSection()
	flush := func() {
		if !current.Empty() {
			sections = append(sections, current)
		}
		current = models.NewSection()
	}

	root.FindMatcher(flatMatcher).Each(func(_ int, s *goquery.Selection) {
		switch tag := goquery.NodeName(s); tag {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			flush()
			current.Heading = &models.Heading{Tag: tag, Text: strings.TrimSpace(s.Text())}
		case "p", "li", "span":
			addText(&current, s)
		case "img":
			addImage(&current, s, base)
		case "a":
			addLink(&current, s, base)
		}
	})
	flush()

	return sections
}

func addText(sec *models.Section, s *goquery.Selection) {
	if text := strings.TrimSpace(s.Text()); text != "" {
		sec.Content = append(sec.Content, text)
	}
}

func addImage(sec *models.Section, s *goquery.Selection, base *url.URL) {
	src, _ := s.Attr("src")
	if abs, ok := resolveImage(base, src); ok {
		sec.Images = append(sec.Images, abs)
	}
}

func addLink(sec *models.Section, s *goquery.Selection, base *url.URL) {
	href, _ := s.Attr("href")
	if abs, ok := resolveLink(base, href); ok {
		sec.Links = append(sec.Links, abs)
	}
}
