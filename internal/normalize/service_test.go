package normalize

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cryptoganster/cryptoingest/internal/ingest"
)

func TestNormalizeWhitespaceAndControlChars(t *testing.T) {
	t.Parallel()

	svc := NewService(nil)
	raw := "Bitcoin\x00 news\r\ntoday\r\n\r\n\r\n\r\nmore     text\tend"
	got := svc.Normalize(raw, ingest.SourceWeb)

	require.NotContains(t, got, "\x00")
	require.NotContains(t, got, "\r")
	require.NotContains(t, got, "\n\n\n")
	require.Contains(t, got, "\t", "tabs are preserved")
	require.Contains(t, got, "more  text", "3+ spaces collapse to 2")
	require.Equal(t, got, strings.TrimSpace(got))
}

func TestNormalizeSourcePasses(t *testing.T) {
	t.Parallel()

	svc := NewService(nil)

	cases := []struct {
		name       string
		sourceType ingest.SourceType
		raw        string
		want       string
	}{
		{
			name:       "web strips html comments",
			sourceType: ingest.SourceWeb,
			raw:        "before <!-- hidden\nstuff --> after",
			want:       "before  after",
		},
		{
			name:       "rss strips tags",
			sourceType: ingest.SourceRSS,
			raw:        "<p>Bitcoin <b>rallies</b></p>",
			want:       "Bitcoin rallies",
		},
		{
			name:       "social media tightens tags and mentions",
			sourceType: ingest.SourceSocialMedia,
			raw:        "big moves # bitcoin by @ satoshi",
			want:       "big moves #bitcoin by @satoshi",
		},
		{
			name:       "ocr fixes artifacts",
			sourceType: ingest.SourceOCR,
			raw:        "|nflation “data” is ‘stable’",
			want:       "Inflation 'data' is 'stable'",
		},
		{
			name:       "wikipedia collapses links",
			sourceType: ingest.SourceWikipedia,
			raw:        "[[Bitcoin|BTC]] forked from [[Litecoin]]",
			want:       "BTC forked from Litecoin",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, svc.Normalize(tc.raw, tc.sourceType))
		})
	}
}

// Normalization must keep at least 80% of alphanumeric tokens.
func TestNormalizePreservesTokens(t *testing.T) {
	t.Parallel()

	svc := NewService(nil)
	raw := "Bitcoin surged past 45000 today as Ethereum and Solana\r\n\r\n\r\nfollowed   the rally with gains across major exchanges"
	got := svc.Normalize(raw, ingest.SourceWeb)

	tokenPattern := regexp.MustCompile(`[a-zA-Z0-9]+`)
	before := tokenPattern.FindAllString(raw, -1)
	after := make(map[string]int)
	for _, tok := range tokenPattern.FindAllString(got, -1) {
		after[tok]++
	}
	kept := 0
	for _, tok := range before {
		if after[tok] > 0 {
			after[tok]--
			kept++
		}
	}
	require.GreaterOrEqual(t, float64(kept)/float64(len(before)), 0.8)
}
