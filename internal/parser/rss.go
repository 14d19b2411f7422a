package parser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/cryptoganster/cryptoingest/internal/domain"
)

// RSSStrategy renders an RSS or Atom feed document as markdown, one
// section per item.
type RSSStrategy struct {
	parser *gofeed.Parser
}

// NewRSSStrategy returns the strategy used for RSS content.
func NewRSSStrategy() *RSSStrategy {
	return &RSSStrategy{parser: gofeed.NewParser()}
}

// Name implements Strategy.
func (s *RSSStrategy) Name() string { return "rss" }

// Parse converts the feed into markdown: the feed title as the top
// heading, each item as a subheading with its link and description.
func (s *RSSStrategy) Parse(_ context.Context, raw string, _ Options) (string, error) {
	feed, err := s.parser.ParseString(raw)
	if err != nil {
		return "", fmt.Errorf("parse feed: %w", err)
	}

	var b strings.Builder
	if feed.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", strings.TrimSpace(feed.Title))
	}
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		if item.Title != "" {
			fmt.Fprintf(&b, "## %s\n\n", strings.TrimSpace(item.Title))
		}
		if item.Link != "" {
			fmt.Fprintf(&b, "[%s](%s)\n\n", item.Link, item.Link)
		}
		if body := itemBody(item); body != "" {
			b.WriteString(body)
			b.WriteString("\n\n")
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// ExtractMetadata maps feed-level fields onto content metadata, falling
// back to the first item where the feed header is silent.
func (s *RSSStrategy) ExtractMetadata(_ context.Context, raw string, opts Options) (domain.ContentMetadata, error) {
	feed, err := s.parser.ParseString(raw)
	if err != nil {
		return domain.ContentMetadata{}, fmt.Errorf("parse feed: %w", err)
	}

	meta := domain.ContentMetadata{
		Title:     strings.TrimSpace(feed.Title),
		Language:  normalizeLanguageTag(feed.Language),
		SourceURL: strings.TrimSpace(feed.Link),
	}
	if meta.SourceURL == "" {
		meta.SourceURL = opts.SourceURL
	}

	if len(feed.Authors) > 0 && feed.Authors[0] != nil {
		meta.Author = strings.TrimSpace(feed.Authors[0].Name)
	}

	published := feed.PublishedParsed
	if published == nil && len(feed.Items) > 0 && feed.Items[0] != nil {
		published = feed.Items[0].PublishedParsed
	}
	if published != nil && !published.After(time.Now()) {
		ts := *published
		meta.PublishedAt = &ts
	}

	if meta.Author == "" {
		for _, item := range feed.Items {
			if item != nil && len(item.Authors) > 0 && item.Authors[0] != nil && item.Authors[0].Name != "" {
				meta.Author = strings.TrimSpace(item.Authors[0].Name)
				break
			}
		}
	}

	return meta, nil
}

// itemBody prefers the full content block over the summary and strips any
// embedded markup down to text.
func itemBody(item *gofeed.Item) string {
	body := item.Content
	if body == "" {
		body = item.Description
	}
	if body == "" {
		return ""
	}
	text, err := bodyText("<body>" + body + "</body>")
	if err != nil {
		return strings.TrimSpace(body)
	}
	return text
}
