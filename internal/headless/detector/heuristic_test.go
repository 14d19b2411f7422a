package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeuristic_DenylistedHost(t *testing.T) {
	t.Parallel()

	h := NewHeuristic([]string{"app.example.com", "twitter.com"}, 0)

	// Rich server-rendered content would otherwise pass.
	html := "<html><body><p>" + strings.Repeat("plenty of visible words ", 100) + "</p></body></html>"

	require.True(t, h.NeedsJSRendering(html, "https://app.example.com/page"))
	require.True(t, h.NeedsJSRendering(html, "https://mobile.twitter.com/status/1"), "subdomains of a denied domain count")
	require.False(t, h.NeedsJSRendering(html, "https://example.org/page"))
}

func TestHeuristic_SPAMarkers(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(nil, 500)

	thin := `<html><body><div id="root"></div><script src="/bundle.js"></script></body></html>`
	require.True(t, h.NeedsJSRendering(thin, "https://example.com"))

	richSPA := `<html><body><div id="root"><p>` +
		strings.Repeat("hydrated server side content ", 30) +
		`</p></div></body></html>`
	require.False(t, h.NeedsJSRendering(richSPA, "https://example.com"), "marker with plenty of visible text")

	thinNoMarker := `<html><body><p>tiny</p></body></html>`
	require.False(t, h.NeedsJSRendering(thinNoMarker, "https://example.com"), "thin content without a marker")
}

func TestHeuristic_ScriptTextNotVisible(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(nil, 500)
	html := `<html><body><div id="app"></div><script>` +
		strings.Repeat("var state = 'lots of js text';", 100) +
		`</script></body></html>`
	require.True(t, h.NeedsJSRendering(html, "https://example.com"), "script bodies do not count toward visible text")
}

func TestHeuristic_Deterministic(t *testing.T) {
	t.Parallel()

	h := NewHeuristic([]string{"spa.example.com"}, 500)
	html := `<div id="app"></div>`
	url := "https://blog.example.com/post"

	first := h.NeedsJSRendering(html, url)
	for range 10 {
		require.Equal(t, first, h.NeedsJSRendering(html, url))
	}
}
