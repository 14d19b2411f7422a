package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html lang="en-US">
<head>
<title>Bitcoin Breaks Resistance</title>
<meta property="og:title" content="Bitcoin Breaks Resistance Level">
<meta name="author" content="Jane Smith">
<meta property="article:published_time" content="2024-03-15T09:30:00Z">
<link rel="canonical" href="https://news.example.com/btc-resistance">
</head>
<body>
<article>
<h1>Bitcoin Breaks Resistance</h1>
<p>Bitcoin surged past a long-standing resistance level on Friday as trading volume
climbed across major exchanges. Analysts pointed to renewed institutional interest
following several large fund filings earlier in the week.</p>
<h2>Market Reaction</h2>
<p>Ethereum and other large-capitalization assets followed the move higher, though
with smaller gains. Derivatives markets showed a sharp increase in open interest.</p>
<ul><li>Spot volume doubled day over day</li><li>Funding rates turned positive</li></ul>
</article>
<script>console.log("tracker");</script>
</body>
</html>`

func TestHTMLStrategy_Parse(t *testing.T) {
	t.Parallel()

	s := NewHTMLStrategy()
	markdown, err := s.Parse(context.Background(), articleHTML, Options{SourceURL: "https://news.example.com/btc-resistance"})
	require.NoError(t, err)

	require.Contains(t, markdown, "Bitcoin surged past a long-standing resistance level")
	require.Contains(t, markdown, "Market Reaction")
	require.NotContains(t, markdown, "console.log", "script bodies must not leak into markdown")
}

func TestHTMLStrategy_ExtractMetadata(t *testing.T) {
	t.Parallel()

	s := NewHTMLStrategy()
	meta, err := s.ExtractMetadata(context.Background(), articleHTML, Options{SourceURL: "https://news.example.com/btc-resistance"})
	require.NoError(t, err)

	require.Equal(t, "Bitcoin Breaks Resistance Level", meta.Title, "og:title preferred over title element")
	require.Equal(t, "Jane Smith", meta.Author)
	require.NotNil(t, meta.PublishedAt)
	require.Equal(t, 2024, meta.PublishedAt.Year())
	require.Equal(t, "en-US", meta.Language)
	require.Equal(t, "https://news.example.com/btc-resistance", meta.SourceURL)
}

func TestHTMLStrategy_ExtractMetadata_Fallbacks(t *testing.T) {
	t.Parallel()

	html := `<html><head><title> Plain Title </title>
<link rel="canonical" href="https://example.com/plain"></head>
<body><p>text</p></body></html>`

	s := NewHTMLStrategy()
	meta, err := s.ExtractMetadata(context.Background(), html, Options{})
	require.NoError(t, err)

	require.Equal(t, "Plain Title", meta.Title)
	require.Empty(t, meta.Author)
	require.Nil(t, meta.PublishedAt)
	require.Equal(t, "https://example.com/plain", meta.SourceURL, "canonical link fills a missing source URL")
}

func TestHTMLToMarkdownStructure(t *testing.T) {
	t.Parallel()

	markdown, err := htmlToMarkdown(`<h2>Heading</h2><p>Body text.</p><ul><li>one</li><li>two</li></ul><blockquote>quoted</blockquote>`)
	require.NoError(t, err)

	require.Contains(t, markdown, "## Heading")
	require.Contains(t, markdown, "- one")
	require.Contains(t, markdown, "- two")
	require.Contains(t, markdown, "> quoted")
}

func TestNormalizeLanguageTag(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"en":     "en",
		"en-US":  "en-US",
		"EN_us":  "en-US",
		"en-US-x-variant": "en-US",
		"":       "",
		"zzzz":   "",
	}
	for input, want := range cases {
		if got := normalizeLanguageTag(input); got != want {
			t.Fatalf("normalizeLanguageTag(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestBodyTextStripsScripts(t *testing.T) {
	t.Parallel()

	text, err := bodyText(`<html><body><p>visible</p><script>hidden()</script></body></html>`)
	require.NoError(t, err)
	require.Equal(t, "visible", strings.TrimSpace(text))
}
