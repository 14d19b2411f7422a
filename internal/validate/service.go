// Package validate implements the content quality gate.
package validate

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cryptoganster/cryptoingest/internal/domain"
)

const (
	defaultMinLength = 10
	defaultMaxLength = 1 << 20 // 1 MiB of text is already suspicious

	// controlCharLimit is the fraction of control characters above which the
	// content is considered corrupted.
	controlCharLimit = 0.10
)

// Config tunes the quality gate.
type Config struct {
	MinLength int
	MaxLength int
}

// Result reports the outcome of a quality check. Every failing rule
// contributes a message; the checks never short-circuit.
type Result struct {
	Valid  bool
	Errors []string
}

// Service runs content quality checks. Stateless and safe for concurrent use.
type Service struct {
	minLength int
	maxLength int
}

// NewService builds a Service, applying defaults for zero config values.
func NewService(cfg Config) *Service {
	if cfg.MinLength <= 0 {
		cfg.MinLength = defaultMinLength
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = defaultMaxLength
	}
	return &Service{minLength: cfg.MinLength, maxLength: cfg.MaxLength}
}

// MeetsMinimumLength reports whether the trimmed content is long enough.
func (s *Service) MeetsMinimumLength(content string) bool {
	return len(strings.TrimSpace(content)) >= s.minLength
}

// HasValidEncoding reports false when the content carries U+FFFD replacement
// characters or when control characters exceed ten percent of its length.
func (s *Service) HasValidEncoding(content string) bool {
	if content == "" {
		return true
	}
	if strings.ContainsRune(content, utf8.RuneError) {
		return false
	}
	total, control := 0, 0
	for _, r := range content {
		total++
		if r != '\n' && r != '\t' && r != '\r' && unicode.IsControl(r) {
			control++
		}
	}
	return float64(control)/float64(total) <= controlCharLimit
}

// HasRequiredMetadata delegates to the metadata's own required-field rule.
func (s *Service) HasRequiredMetadata(meta domain.ContentMetadata) bool {
	return meta.HasRequiredFields()
}

// ValidateQuality runs every check and collects all failures so callers see
// the full error set rather than the first violation.
func (s *Service) ValidateQuality(content string, meta domain.ContentMetadata) Result {
	var errs []string
	if !s.MeetsMinimumLength(content) {
		errs = append(errs, fmt.Sprintf("content shorter than %d characters", s.minLength))
	}
	if len(content) > s.maxLength {
		errs = append(errs, fmt.Sprintf("content exceeds %d characters", s.maxLength))
	}
	if !s.HasValidEncoding(content) {
		errs = append(errs, "content has invalid encoding")
	}
	if !s.HasRequiredMetadata(meta) {
		errs = append(errs, "metadata is missing a title or source url")
	}
	return Result{Valid: len(errs) == 0, Errors: errs}
}
