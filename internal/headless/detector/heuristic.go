// Package detector decides when web content needs a JavaScript-rendering
// parse instead of the plain HTML strategy.
package detector

import (
	"net/url"
	"regexp"
	"strings"
)

const defaultTextThreshold = 500

var spaMarkers = []string{
	"id=\"root\"",
	"id=\"app\"",
	"id=\"__next\"",
	"data-reactroot",
	"data-server-rendered",
	"ng-app",
	"window.__APOLLO_STATE__",
	"__NEXT_DATA__",
}

var (
	scriptBlockPattern = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>|<style[^>]*>.*?</style>|<noscript[^>]*>.*?</noscript>`)
	tagPattern         = regexp.MustCompile(`<[^>]*>`)
	spacePattern       = regexp.MustCompile(`\s+`)
)

// Heuristic is a rule-based detector. It is pure and stateless: identical
// inputs always yield identical answers.
type Heuristic struct {
	denylist      map[string]struct{}
	markers       []string
	textThreshold int
}

// NewHeuristic builds a detector. Denylist entries are hostnames of known
// JS-heavy domains; a zero threshold uses the default of 500 characters.
func NewHeuristic(denylist []string, threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = defaultTextThreshold
	}
	hosts := make(map[string]struct{}, len(denylist))
	for _, d := range denylist {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			hosts[d] = struct{}{}
		}
	}
	return &Heuristic{
		denylist:      hosts,
		markers:       spaMarkers,
		textThreshold: threshold,
	}
}

// NeedsJSRendering reports whether the page likely requires a browser to
// produce its real content. The domain denylist wins outright; otherwise a
// single-page-app marker must be present and the visible text short.
func (h *Heuristic) NeedsJSRendering(html, rawURL string) bool {
	if h.hostDenied(rawURL) {
		return true
	}
	if !h.hasMarker(html) {
		return false
	}
	return visibleTextLength(html) < h.textThreshold
}

func (h *Heuristic) hostDenied(rawURL string) bool {
	if rawURL == "" || len(h.denylist) == 0 {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if _, ok := h.denylist[host]; ok {
		return true
	}
	// Subdomains of a denied domain count too.
	for denied := range h.denylist {
		if strings.HasSuffix(host, "."+denied) {
			return true
		}
	}
	return false
}

func (h *Heuristic) hasMarker(html string) bool {
	for _, marker := range h.markers {
		if strings.Contains(html, marker) {
			return true
		}
	}
	return false
}

// visibleTextLength strips tags and collapses whitespace to approximate how
// much text a reader would actually see.
func visibleTextLength(html string) int {
	text := scriptBlockPattern.ReplaceAllString(html, " ")
	text = tagPattern.ReplaceAllString(text, " ")
	text = spacePattern.ReplaceAllString(text, " ")
	return len(strings.TrimSpace(text))
}
