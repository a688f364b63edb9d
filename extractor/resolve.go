package extractor

import (
	"net/url"
	"strings"
)

// resolveLink strips any fragment from href and resolves the rest against
// base. A fragment-only href resolves to base itself. Empty and malformed
// references report false.
func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	u, err := base.Parse(href)
	if err != nil {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}

// resolveImage resolves a non-empty src against base.
func resolveImage(base *url.URL, src string) (string, bool) {
	src = strings.TrimSpace(src)
	if src == "" {
		return "", false
	}
	u, err := base.Parse(src)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
