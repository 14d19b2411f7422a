// Package ingest defines the core types and interfaces shared across the
// ingestion subsystems.
package ingest

import (
	"time"
	"unicode/utf8"

	"github.com/cryptoganster/cryptoingest/internal/domain"
)

// SourceType identifies where a piece of content came from and therefore how
// it gets parsed and normalized.
type SourceType string

// Supported source types. PDF and OCR content has no parsing strategy and is
// normalized directly from the raw text.
const (
	SourceWeb         SourceType = "WEB"
	SourceRSS         SourceType = "RSS"
	SourceSocialMedia SourceType = "SOCIAL_MEDIA"
	SourceWikipedia   SourceType = "WIKIPEDIA"
	SourcePDF         SourceType = "PDF"
	SourceOCR         SourceType = "OCR"
)

// ContentCollected is the fact emitted by a source adapter for every piece of
// raw content it fetched. It triggers the ingestion pipeline.
type ContentCollected struct {
	SourceID    string                 `json:"source_id"`
	JobID       string                 `json:"job_id"`
	RawContent  string                 `json:"raw_content"`
	Metadata    domain.ContentMetadata `json:"metadata"`
	SourceType  SourceType             `json:"source_type"`
	CollectedAt time.Time              `json:"collected_at"`
}

// ContentIngested announces that an item passed the full pipeline and was
// persisted.
type ContentIngested struct {
	ContentID         string                 `json:"content_id"`
	SourceID          string                 `json:"source_id"`
	JobID             string                 `json:"job_id"`
	ContentHash       string                 `json:"content_hash"`
	NormalizedContent string                 `json:"normalized_content"`
	Metadata          domain.ContentMetadata `json:"metadata"`
	AssetTags         []domain.AssetTag      `json:"asset_tags,omitempty"`
	CollectedAt       time.Time              `json:"collected_at"`
}

// ContentValidationFailed announces that an item was rejected by the quality
// gate. Content is truncated so the event stays small.
type ContentValidationFailed struct {
	JobID     string    `json:"job_id"`
	SourceID  string    `json:"source_id"`
	Content   string    `json:"content"`
	Errors    []string  `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidationFailedContentLimit bounds the truncated content carried on a
// ContentValidationFailed event.
const ValidationFailedContentLimit = 200

// TruncateContent trims content for events and logs. The cut backs up to a
// rune boundary so truncation never produces invalid UTF-8.
func TruncateContent(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
