package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mode selects between verbatim markup and structured sections.
type Mode string

const (
	ModeRaw      Mode = "raw"
	ModeBeautify Mode = "beautify"
)

// ParseMode maps a client-supplied mode to a Mode. Empty input is beautify.
// Unknown values fall back to beautify unless strict is set.
func ParseMode(value string, strict bool) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeRaw:
		return ModeRaw, nil
	case ModeBeautify, "":
		return ModeBeautify, nil
	}
	if strict {
		return "", NewScrapeError(ErrCodeInvalidInput,
			fmt.Sprintf("invalid mode %q: must be raw or beautify", value), nil)
	}
	return ModeBeautify, nil
}

// Heading is the first heading element of a section.
type Heading struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

// Section is one structured content unit extracted from a page.
type Section struct {
	Heading *Heading `json:"heading"`
	Content []string `json:"content"`
	Images  []string `json:"images"`
	Links   []string `json:"links"`
}

// NewSection returns a section whose sequences encode as [] rather than null.
func NewSection() Section {
	return Section{Content: []string{}, Images: []string{}, Links: []string{}}
}

// Empty reports whether the section carries nothing worth emitting.
func (s Section) Empty() bool {
	return s.Heading == nil && len(s.Content) == 0 && len(s.Images) == 0 && len(s.Links) == 0
}

// MarshalJSON encodes nil sequences as [].
func (s Section) MarshalJSON() ([]byte, error) {
	type plain Section
	out := plain(s)
	if out.Content == nil {
		out.Content = []string{}
	}
	if out.Images == nil {
		out.Images = []string{}
	}
	if out.Links == nil {
		out.Links = []string{}
	}
	return json.Marshal(out)
}

// PageRecord is the outcome for one URL. Exactly one of Sections, RawMarkup
// or Error is populated.
type PageRecord struct {
	URL       string    `json:"url"`
	Sections  []Section `json:"sections,omitempty"`
	RawMarkup *string   `json:"raw_markup,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewSectionsRecord builds a structured-mode record.
func NewSectionsRecord(url string, sections []Section) PageRecord {
	if sections == nil {
		sections = []Section{}
	}
	return PageRecord{URL: url, Sections: sections}
}

// NewRawRecord builds a raw-mode record holding markup verbatim.
func NewRawRecord(url, markup string) PageRecord {
	return PageRecord{URL: url, RawMarkup: &markup}
}

// NewErrorRecord builds a per-page failure record.
func NewErrorRecord(url string, err error) PageRecord {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return PageRecord{URL: url, Error: msg}
}

// Failed reports whether the record is a per-page failure.
func (p PageRecord) Failed() bool {
	return p.Error != ""
}

// MarshalJSON emits url plus exactly one of sections, raw_markup or error,
// keeping an empty section list as [] instead of dropping it.
func (p PageRecord) MarshalJSON() ([]byte, error) {
	switch {
	case p.Error != "":
		return json.Marshal(struct {
			URL   string `json:"url"`
			Error string `json:"error"`
		}{p.URL, p.Error})
	case p.RawMarkup != nil:
		return json.Marshal(struct {
			URL       string `json:"url"`
			RawMarkup string `json:"raw_markup"`
		}{p.URL, *p.RawMarkup})
	default:
		sections := p.Sections
		if sections == nil {
			sections = []Section{}
		}
		return json.Marshal(struct {
			URL      string    `json:"url"`
			Sections []Section `json:"sections"`
		}{p.URL, sections})
	}
}

// Crawl result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// CrawlResult is the report for one crawl invocation. Pages are in BFS
// discovery order.
type CrawlResult struct {
	Status  string       `json:"status"`
	BaseURL string       `json:"base_url"`
	Mode    Mode         `json:"mode"`
	Pages   []PageRecord `json:"pages"`
	Error   string       `json:"error,omitempty"`
}
