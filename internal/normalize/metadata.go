package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/cryptoganster/cryptoingest/internal/domain"
	"github.com/cryptoganster/cryptoingest/internal/ingest"
)

const maxTitleLength = 200

var (
	headingPattern  = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	sentencePattern = regexp.MustCompile(`^[^.!?]{3,}[.!?]`)
	authorPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bwritten by\s+([A-Z][\w.'-]*(?:\s+[A-Z][\w.'-]*){0,3})`),
		regexp.MustCompile(`(?i)\bauthor:\s*([A-Z][\w.'-]*(?:\s+[A-Z][\w.'-]*){0,3})`),
		regexp.MustCompile(`(?i)\bby\s+([A-Z][\w.'-]*(?:\s+[A-Z][\w.'-]*){0,3})`),
	}
	isoDatePattern  = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	longDatePattern = regexp.MustCompile(`\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2},?\s+\d{4}\b`)
	urlPattern      = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
	wordPattern     = regexp.MustCompile(`[a-zA-Z']+`)
)

var englishStopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "that": {}, "this": {}, "with": {},
	"are": {}, "was": {}, "have": {}, "has": {}, "not": {}, "but": {},
	"from": {}, "they": {}, "will": {}, "would": {}, "there": {}, "their": {},
	"what": {}, "about": {}, "which": {}, "when": {}, "been": {}, "were": {},
}

// ExtractMetadata derives best-effort metadata from raw text: a title from
// the first usable line or heading, an author from byline patterns, the first
// plausible past date, an English-language guess from stop-word density, and
// the first well-formed URL.
func (s *Service) ExtractMetadata(raw string, sourceType ingest.SourceType) domain.ContentMetadata {
	meta := domain.ContentMetadata{
		Title:     extractTitle(raw, sourceType),
		Author:    extractAuthor(raw),
		Language:  detectLanguage(raw),
		SourceURL: extractURL(raw),
	}
	if published := extractPublishedAt(raw, time.Now().UTC()); published != nil {
		meta.PublishedAt = published
	}
	return meta
}

func extractTitle(raw string, sourceType ingest.SourceType) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) <= maxTitleLength {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
		break
	}
	if m := headingPattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	if sourceType == ingest.SourceSocialMedia {
		trimmed := strings.TrimSpace(raw)
		if m := sentencePattern.FindString(trimmed); m != "" && len(m) <= maxTitleLength {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

func extractAuthor(raw string) string {
	for _, pattern := range authorPatterns {
		if m := pattern.FindStringSubmatch(raw); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// extractPublishedAt returns the first recognizable date that is not after
// now.
func extractPublishedAt(raw string, now time.Time) *time.Time {
	for _, m := range isoDatePattern.FindAllString(raw, -1) {
		if ts, err := time.Parse("2006-01-02", m); err == nil && !ts.After(now) {
			return &ts
		}
	}
	for _, m := range longDatePattern.FindAllString(raw, -1) {
		candidate := strings.ReplaceAll(m, ",", "")
		for _, layout := range []string{"January 2 2006", "Jan 2 2006"} {
			if ts, err := time.Parse(layout, candidate); err == nil && !ts.After(now) {
				return &ts
			}
		}
	}
	return nil
}

func detectLanguage(raw string) string {
	count := 0
	for _, word := range wordPattern.FindAllString(strings.ToLower(raw), -1) {
		if _, ok := englishStopWords[word]; ok {
			count++
			if count >= 6 {
				return "en"
			}
		}
	}
	return ""
}

func extractURL(raw string) string {
	return strings.TrimRight(urlPattern.FindString(raw), ".,;")
}
