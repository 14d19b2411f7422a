// Package parser converts raw collected content into markdown plus
// extracted metadata, choosing a strategy by source type.
package parser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cryptoganster/cryptoingest/internal/domain"
	"github.com/cryptoganster/cryptoingest/internal/ingest"
)

// ErrUnsupportedSourceType is returned when no strategy handles the
// requested source type.
var ErrUnsupportedSourceType = errors.New("unsupported source type")

// fallbackMarkdownThreshold is the markdown length under which a WEB parse
// is considered suspiciously thin and worth re-rendering.
const fallbackMarkdownThreshold = 200

// Options carries per-call hints for a strategy.
type Options struct {
	// SourceURL is the page the raw content came from, when known. The
	// rendered strategy needs it to navigate; others use it for link
	// resolution.
	SourceURL string
}

// Strategy converts one family of raw content into markdown and metadata.
type Strategy interface {
	Name() string
	Parse(ctx context.Context, raw string, opts Options) (string, error)
	ExtractMetadata(ctx context.Context, raw string, opts Options) (domain.ContentMetadata, error)
}

// JSDetector reports whether a page likely needs a browser to render.
type JSDetector interface {
	NeedsJSRendering(html, url string) bool
}

// ParsingInfo describes how a parse went.
type ParsingInfo struct {
	Strategy       string
	ConversionTime time.Duration
	UsedFallback   bool
	Warnings       []string
}

// ParsedContent is the result of a successful parse.
type ParsedContent struct {
	Markdown string
	Metadata domain.ContentMetadata
	Info     ParsingInfo
}

// Parser dispatches to a strategy chosen purely by source type. WEB,
// SOCIAL_MEDIA, and WIKIPEDIA use the HTML strategy; RSS uses the RSS
// strategy; PDF and OCR have no strategy registered.
type Parser struct {
	strategies map[ingest.SourceType]Strategy
	fallback   Strategy
	detector   JSDetector
	logger     *zap.Logger
}

// New builds a parser with the fixed type-to-strategy table. The fallback
// strategy and detector are optional; when both are present, thin WEB
// results are retried through the fallback.
func New(html, rss, fallback Strategy, det JSDetector, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	strategies := map[ingest.SourceType]Strategy{}
	if html != nil {
		strategies[ingest.SourceWeb] = html
		strategies[ingest.SourceSocialMedia] = html
		strategies[ingest.SourceWikipedia] = html
	}
	if rss != nil {
		strategies[ingest.SourceRSS] = rss
	}
	return &Parser{
		strategies: strategies,
		fallback:   fallback,
		detector:   det,
		logger:     logger,
	}
}

// Parse runs the strategy for sourceType. Markdown conversion and metadata
// extraction run concurrently; either failing fails the parse. callerMeta,
// when non-nil, fills metadata fields the strategy did not extract.
func (p *Parser) Parse(ctx context.Context, raw string, sourceType ingest.SourceType, callerMeta *domain.ContentMetadata, opts Options) (ParsedContent, error) {
	strategy, ok := p.strategies[sourceType]
	if !ok {
		return ParsedContent{}, fmt.Errorf("source type %s: %w", sourceType, ErrUnsupportedSourceType)
	}

	start := time.Now()
	markdown, meta, err := p.run(ctx, strategy, raw, opts)
	if err != nil {
		return ParsedContent{}, fmt.Errorf("strategy %s: %w", strategy.Name(), err)
	}

	info := ParsingInfo{Strategy: strategy.Name()}

	if p.shouldFallBack(sourceType, markdown, raw, opts) {
		fbMarkdown, fbMeta, fbErr := p.run(ctx, p.fallback, raw, opts)
		if fbErr != nil {
			// Fallback failure keeps the original short markdown.
			p.logger.Warn("rendered fallback failed, keeping primary result",
				zap.String("strategy", p.fallback.Name()),
				zap.String("url", opts.SourceURL),
				zap.Error(fbErr),
			)
		} else {
			markdown = fbMarkdown
			meta = fbMeta
			info.Strategy = p.fallback.Name()
			info.UsedFallback = true
		}
	}

	if callerMeta != nil {
		meta = meta.Merge(*callerMeta)
	}

	if markdown == "" {
		info.Warnings = append(info.Warnings, "empty markdown")
	}
	if meta.Title == "" {
		info.Warnings = append(info.Warnings, "missing title")
	}
	info.ConversionTime = time.Since(start)

	return ParsedContent{Markdown: markdown, Metadata: meta, Info: info}, nil
}

func (p *Parser) shouldFallBack(sourceType ingest.SourceType, markdown, raw string, opts Options) bool {
	if sourceType != ingest.SourceWeb || p.fallback == nil || p.detector == nil {
		return false
	}
	if len(markdown) >= fallbackMarkdownThreshold {
		return false
	}
	return p.detector.NeedsJSRendering(raw, opts.SourceURL)
}

func (p *Parser) run(ctx context.Context, strategy Strategy, raw string, opts Options) (string, domain.ContentMetadata, error) {
	var (
		wg       sync.WaitGroup
		markdown string
		meta     domain.ContentMetadata
		parseErr error
		metaErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		markdown, parseErr = strategy.Parse(ctx, raw, opts)
	}()
	go func() {
		defer wg.Done()
		meta, metaErr = strategy.ExtractMetadata(ctx, raw, opts)
	}()
	wg.Wait()

	if parseErr != nil {
		return "", domain.ContentMetadata{}, fmt.Errorf("parse: %w", parseErr)
	}
	if metaErr != nil {
		return "", domain.ContentMetadata{}, fmt.Errorf("extract metadata: %w", metaErr)
	}
	return markdown, meta, nil
}
