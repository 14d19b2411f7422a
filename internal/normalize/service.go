// Package normalize cleans raw content, extracts heuristic metadata, and
// detects crypto asset mentions.
package normalize

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/cryptoganster/cryptoingest/internal/ingest"
)

var (
	crlfPattern         = regexp.MustCompile(`\r\n?`)
	multiSpacePattern   = regexp.MustCompile(`[ ]{3,}`)
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	htmlCommentPattern  = regexp.MustCompile(`(?s)<!--.*?-->`)
	htmlTagPattern      = regexp.MustCompile(`<[^>]+>`)
	hashtagGapPattern   = regexp.MustCompile(`([#@])\s+(\w)`)
	wikiPipedLink       = regexp.MustCompile(`\[\[[^\[\]|]*\|([^\[\]]*)\]\]`)
	wikiPlainLink       = regexp.MustCompile(`\[\[([^\[\]]*)\]\]`)
	smartQuotePattern   = regexp.MustCompile("[‘’“”]")
)

// Service performs content normalization. It is stateless and safe for
// concurrent use.
type Service struct {
	logger *zap.Logger
}

// NewService builds a Service. A nil logger is replaced with a no-op.
func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger}
}

// Normalize strips control characters (keeping newlines and tabs), unifies
// line endings, collapses runs of spaces and newlines, trims, and then
// applies a source-specific cleanup pass.
func (s *Service) Normalize(raw string, sourceType ingest.SourceType) string {
	out := stripControlChars(raw)
	out = crlfPattern.ReplaceAllString(out, "\n")
	out = multiSpacePattern.ReplaceAllString(out, "  ")
	out = multiNewlinePattern.ReplaceAllString(out, "\n\n")
	out = strings.TrimSpace(out)
	out = s.sourcePass(out, sourceType)
	return strings.TrimSpace(out)
}

func (s *Service) sourcePass(content string, sourceType ingest.SourceType) string {
	switch sourceType {
	case ingest.SourceWeb:
		return htmlCommentPattern.ReplaceAllString(content, "")
	case ingest.SourceRSS:
		return htmlTagPattern.ReplaceAllString(content, "")
	case ingest.SourceSocialMedia:
		return hashtagGapPattern.ReplaceAllString(content, "$1$2")
	case ingest.SourcePDF, ingest.SourceOCR:
		return fixOCRArtifacts(content)
	case ingest.SourceWikipedia:
		out := wikiPipedLink.ReplaceAllString(content, "$1")
		return wikiPlainLink.ReplaceAllString(out, "$1")
	default:
		return content
	}
}

// stripControlChars drops control characters except \n and \t.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// fixOCRArtifacts repairs the most common scanner mistakes: pipe characters
// read for capital I, and smart quotes.
func fixOCRArtifacts(s string) string {
	out := strings.ReplaceAll(s, "|", "I")
	return smartQuotePattern.ReplaceAllString(out, "'")
}
