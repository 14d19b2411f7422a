package domain

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"
)

// ErrInvalidMetadata is returned when a metadata field violates its invariant.
var ErrInvalidMetadata = errors.New("invalid content metadata")

var languagePattern = regexp.MustCompile(`^[a-z]{2}(-[A-Z]{2})?$`)

// ContentMetadata carries the optional descriptive fields attached to a piece
// of content. Every field may be empty; set fields must satisfy Validate.
type ContentMetadata struct {
	Title       string     `json:"title,omitempty"`
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Language    string     `json:"language,omitempty"`
	SourceURL   string     `json:"source_url,omitempty"`
}

// Validate checks the set fields: SourceURL must be an absolute URL, Language
// must be ISO 639-1 ("xx" or "xx-XX"), and PublishedAt must not be in the
// future.
func (m ContentMetadata) Validate() error {
	if m.SourceURL != "" {
		u, err := url.Parse(m.SourceURL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%w: source url %q is not absolute", ErrInvalidMetadata, m.SourceURL)
		}
	}
	if m.Language != "" && !languagePattern.MatchString(m.Language) {
		return fmt.Errorf("%w: language %q is not ISO 639-1", ErrInvalidMetadata, m.Language)
	}
	if m.PublishedAt != nil && m.PublishedAt.After(time.Now().UTC()) {
		return fmt.Errorf("%w: published_at %v is in the future", ErrInvalidMetadata, m.PublishedAt)
	}
	return nil
}

// HasRequiredFields reports whether the metadata is usable for persistence:
// at least a title or a source URL.
func (m ContentMetadata) HasRequiredFields() bool {
	return m.Title != "" || m.SourceURL != ""
}

// IsComplete reports whether all five fields are present.
func (m ContentMetadata) IsComplete() bool {
	return m.Title != "" && m.Author != "" && m.PublishedAt != nil &&
		m.Language != "" && m.SourceURL != ""
}

// Merge returns a copy of m with empty fields filled from fallback. Fields
// already set on m win.
func (m ContentMetadata) Merge(fallback ContentMetadata) ContentMetadata {
	out := m
	if out.Title == "" {
		out.Title = fallback.Title
	}
	if out.Author == "" {
		out.Author = fallback.Author
	}
	if out.PublishedAt == nil {
		out.PublishedAt = fallback.PublishedAt
	}
	if out.Language == "" {
		out.Language = fallback.Language
	}
	if out.SourceURL == "" {
		out.SourceURL = fallback.SourceURL
	}
	return out
}
