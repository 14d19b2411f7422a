package parser

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cryptoganster/cryptoingest/internal/domain"
	"github.com/cryptoganster/cryptoingest/internal/ingest"
)

type fakeStrategy struct {
	name     string
	markdown string
	meta     domain.ContentMetadata
	parseErr error
	metaErr  error
	calls    int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Parse(context.Context, string, Options) (string, error) {
	f.calls++
	return f.markdown, f.parseErr
}

func (f *fakeStrategy) ExtractMetadata(context.Context, string, Options) (domain.ContentMetadata, error) {
	return f.meta, f.metaErr
}

type fakeDetector struct{ answer bool }

func (f fakeDetector) NeedsJSRendering(string, string) bool { return f.answer }

func TestParser_StrategySelectionIsDeterministic(t *testing.T) {
	t.Parallel()

	html := &fakeStrategy{name: "html", markdown: strings.Repeat("web content ", 30)}
	rss := &fakeStrategy{name: "rss", markdown: strings.Repeat("feed content ", 30)}
	p := New(html, rss, nil, nil, nil)

	cases := []struct {
		sourceType ingest.SourceType
		strategy   string
	}{
		{ingest.SourceWeb, "html"},
		{ingest.SourceSocialMedia, "html"},
		{ingest.SourceWikipedia, "html"},
		{ingest.SourceRSS, "rss"},
	}
	for _, tc := range cases {
		for range 3 {
			result, err := p.Parse(context.Background(), "raw", tc.sourceType, nil, Options{})
			require.NoError(t, err)
			require.Equal(t, tc.strategy, result.Info.Strategy)
		}
	}
}

func TestParser_UnsupportedSourceTypes(t *testing.T) {
	t.Parallel()

	p := New(&fakeStrategy{name: "html"}, &fakeStrategy{name: "rss"}, nil, nil, nil)

	for _, sourceType := range []ingest.SourceType{ingest.SourcePDF, ingest.SourceOCR} {
		_, err := p.Parse(context.Background(), "raw", sourceType, nil, Options{})
		require.ErrorIs(t, err, ErrUnsupportedSourceType)
	}
}

func TestParser_MetadataMergeStrategyWins(t *testing.T) {
	t.Parallel()

	html := &fakeStrategy{
		name:     "html",
		markdown: strings.Repeat("article body ", 30),
		meta:     domain.ContentMetadata{Title: "Extracted Title", Language: "en"},
	}
	p := New(html, nil, nil, nil, nil)

	caller := &domain.ContentMetadata{
		Title:     "Caller Title",
		Author:    "Caller Author",
		SourceURL: "https://example.com/a",
	}
	result, err := p.Parse(context.Background(), "raw", ingest.SourceWeb, caller, Options{})
	require.NoError(t, err)

	require.Equal(t, "Extracted Title", result.Metadata.Title, "strategy field wins")
	require.Equal(t, "Caller Author", result.Metadata.Author, "caller fills the gap")
	require.Equal(t, "https://example.com/a", result.Metadata.SourceURL)
	require.Equal(t, "en", result.Metadata.Language)
}

func TestParser_Warnings(t *testing.T) {
	t.Parallel()

	html := &fakeStrategy{name: "html"}
	p := New(html, nil, nil, nil, nil)

	result, err := p.Parse(context.Background(), "raw", ingest.SourceWeb, nil, Options{})
	require.NoError(t, err)
	require.Contains(t, result.Info.Warnings, "empty markdown")
	require.Contains(t, result.Info.Warnings, "missing title")
	require.GreaterOrEqual(t, result.Info.ConversionTime, time.Duration(0))
}

func TestParser_FallbackOnThinWebContent(t *testing.T) {
	t.Parallel()

	html := &fakeStrategy{name: "html", markdown: "thin"}
	rendered := &fakeStrategy{
		name:     "rendered_html",
		markdown: strings.Repeat("fully rendered content ", 30),
		meta:     domain.ContentMetadata{Title: "Rendered"},
	}
	p := New(html, nil, rendered, fakeDetector{answer: true}, nil)

	result, err := p.Parse(context.Background(), "<div id=\"root\"></div>", ingest.SourceWeb, nil, Options{SourceURL: "https://spa.example.com"})
	require.NoError(t, err)
	require.True(t, result.Info.UsedFallback)
	require.Equal(t, "rendered_html", result.Info.Strategy)
	require.Equal(t, "Rendered", result.Metadata.Title)
	require.Equal(t, 1, rendered.calls)
}

func TestParser_NoFallbackCases(t *testing.T) {
	t.Parallel()

	t.Run("rich markdown skips fallback", func(t *testing.T) {
		t.Parallel()
		html := &fakeStrategy{name: "html", markdown: strings.Repeat("long enough markdown ", 30)}
		rendered := &fakeStrategy{name: "rendered_html"}
		p := New(html, nil, rendered, fakeDetector{answer: true}, nil)

		result, err := p.Parse(context.Background(), "raw", ingest.SourceWeb, nil, Options{})
		require.NoError(t, err)
		require.False(t, result.Info.UsedFallback)
		require.Zero(t, rendered.calls)
	})

	t.Run("detector says no", func(t *testing.T) {
		t.Parallel()
		html := &fakeStrategy{name: "html", markdown: "thin"}
		rendered := &fakeStrategy{name: "rendered_html"}
		p := New(html, nil, rendered, fakeDetector{answer: false}, nil)

		result, err := p.Parse(context.Background(), "raw", ingest.SourceWeb, nil, Options{})
		require.NoError(t, err)
		require.False(t, result.Info.UsedFallback)
		require.Zero(t, rendered.calls)
	})

	t.Run("non-web source never falls back", func(t *testing.T) {
		t.Parallel()
		html := &fakeStrategy{name: "html", markdown: "thin"}
		rendered := &fakeStrategy{name: "rendered_html"}
		p := New(html, html, rendered, fakeDetector{answer: true}, nil)

		result, err := p.Parse(context.Background(), "raw", ingest.SourceWikipedia, nil, Options{})
		require.NoError(t, err)
		require.False(t, result.Info.UsedFallback)
		require.Zero(t, rendered.calls)
	})
}

func TestParser_FallbackFailureKeepsPrimary(t *testing.T) {
	t.Parallel()

	html := &fakeStrategy{name: "html", markdown: "thin", meta: domain.ContentMetadata{Title: "Primary"}}
	rendered := &fakeStrategy{name: "rendered_html", parseErr: errors.New("browser crashed")}
	p := New(html, nil, rendered, fakeDetector{answer: true}, nil)

	result, err := p.Parse(context.Background(), "raw", ingest.SourceWeb, nil, Options{})
	require.NoError(t, err)
	require.Equal(t, "thin", result.Markdown)
	require.Equal(t, "Primary", result.Metadata.Title)
	require.False(t, result.Info.UsedFallback)
	require.Equal(t, "html", result.Info.Strategy)
}

func TestParser_StrategyErrorsPropagate(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	html := &fakeStrategy{name: "html", parseErr: boom}
	p := New(html, nil, nil, nil, nil)
	_, err := p.Parse(context.Background(), "raw", ingest.SourceWeb, nil, Options{})
	require.ErrorIs(t, err, boom)

	html = &fakeStrategy{name: "html", metaErr: boom}
	p = New(html, nil, nil, nil, nil)
	_, err = p.Parse(context.Background(), "raw", ingest.SourceWeb, nil, Options{})
	require.ErrorIs(t, err, boom)
}
