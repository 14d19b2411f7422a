package parser

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/cryptoganster/cryptoingest/internal/domain"
)

var languageTagPattern = regexp.MustCompile(`^[a-z]{2}(-[A-Z]{2})?$`)

// HTMLStrategy extracts the main article from an HTML document with
// readability and renders it as markdown.
type HTMLStrategy struct{}

// NewHTMLStrategy returns the strategy used for WEB, SOCIAL_MEDIA, and
// WIKIPEDIA content.
func NewHTMLStrategy() *HTMLStrategy {
	return &HTMLStrategy{}
}

// Name implements Strategy.
func (s *HTMLStrategy) Name() string { return "html" }

// Parse runs readability over the document and converts the extracted
// article body to markdown. Documents readability cannot handle degrade to
// the visible body text.
func (s *HTMLStrategy) Parse(_ context.Context, raw string, opts Options) (string, error) {
	pageURL := parseURL(opts.SourceURL)

	article, err := readability.FromReader(strings.NewReader(raw), pageURL)
	if err != nil {
		return bodyText(raw)
	}

	markdown, err := htmlToMarkdown(article.Content)
	if err != nil {
		return "", fmt.Errorf("convert article body: %w", err)
	}
	if article.Title != "" && !strings.HasPrefix(markdown, "# ") {
		markdown = "# " + article.Title + "\n\n" + markdown
	}
	return strings.TrimSpace(markdown), nil
}

// ExtractMetadata reads document metadata from meta tags, the title
// element, and the html lang attribute.
func (s *HTMLStrategy) ExtractMetadata(_ context.Context, raw string, opts Options) (domain.ContentMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return domain.ContentMetadata{}, fmt.Errorf("parse document: %w", err)
	}

	meta := domain.ContentMetadata{SourceURL: opts.SourceURL}

	if title, ok := metaContent(doc, `meta[property="og:title"]`); ok {
		meta.Title = title
	} else {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if author, ok := metaContent(doc, `meta[name="author"]`); ok {
		meta.Author = author
	}

	if published, ok := metaContent(doc, `meta[property="article:published_time"]`); ok {
		if ts, perr := parsePublishedTime(published); perr == nil {
			meta.PublishedAt = &ts
		}
	}

	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		meta.Language = normalizeLanguageTag(lang)
	}

	if meta.SourceURL == "" {
		if canonical, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
			meta.SourceURL = strings.TrimSpace(canonical)
		}
	}

	return meta, nil
}

func metaContent(doc *goquery.Document, selector string) (string, bool) {
	content, ok := doc.Find(selector).First().Attr("content")
	content = strings.TrimSpace(content)
	return content, ok && content != ""
}

// htmlToMarkdown walks block elements in document order and emits the
// markdown constructs the normalization stage understands.
func htmlToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	var blocks []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, blockquote, pre").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(collapseSpaces(sel.Text()))
		if text == "" {
			return
		}
		switch goquery.NodeName(sel) {
		case "h1":
			blocks = append(blocks, "# "+text)
		case "h2":
			blocks = append(blocks, "## "+text)
		case "h3":
			blocks = append(blocks, "### "+text)
		case "h4", "h5", "h6":
			blocks = append(blocks, "#### "+text)
		case "li":
			blocks = append(blocks, "- "+text)
		case "blockquote":
			blocks = append(blocks, "> "+text)
		case "pre":
			blocks = append(blocks, "```\n"+strings.TrimSpace(sel.Text())+"\n```")
		default:
			blocks = append(blocks, text)
		}
	})
	return strings.Join(blocks, "\n\n"), nil
}

func bodyText(raw string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	return strings.TrimSpace(collapseSpaces(doc.Find("body").Text())), nil
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parseURL(raw string) *url.URL {
	if raw == "" {
		return &url.URL{}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}

func parsePublishedTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func normalizeLanguageTag(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	parts := strings.SplitN(strings.ReplaceAll(lang, "_", "-"), "-", 3)
	tag := strings.ToLower(parts[0])
	if len(parts) > 1 && len(parts[1]) == 2 {
		tag += "-" + strings.ToUpper(parts[1])
	}
	if !languageTagPattern.MatchString(tag) {
		return ""
	}
	return tag
}
