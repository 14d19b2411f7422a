package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestContentMetadataValidate(t *testing.T) {
	t.Parallel()

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	valid := ContentMetadata{
		Title:       "Bitcoin rallies",
		Author:      "Jane Doe",
		PublishedAt: &past,
		Language:    "en",
		SourceURL:   "https://example.com/markets/btc",
	}
	require.NoError(t, valid.Validate())
	require.True(t, valid.IsComplete())
	require.True(t, valid.HasRequiredFields())

	t.Run("relative url", func(t *testing.T) {
		t.Parallel()
		m := ContentMetadata{SourceURL: "/markets/btc"}
		require.ErrorIs(t, m.Validate(), ErrInvalidMetadata)
	})
	t.Run("bad language", func(t *testing.T) {
		t.Parallel()
		m := ContentMetadata{Language: "english"}
		require.ErrorIs(t, m.Validate(), ErrInvalidMetadata)
	})
	t.Run("region form allowed", func(t *testing.T) {
		t.Parallel()
		m := ContentMetadata{Language: "en-US"}
		require.NoError(t, m.Validate())
	})
	t.Run("future published_at", func(t *testing.T) {
		t.Parallel()
		m := ContentMetadata{PublishedAt: &future}
		require.ErrorIs(t, m.Validate(), ErrInvalidMetadata)
	})
}

func TestContentMetadataRequiredFields(t *testing.T) {
	t.Parallel()

	require.False(t, ContentMetadata{}.HasRequiredFields())
	require.True(t, ContentMetadata{Title: "t"}.HasRequiredFields())
	require.True(t, ContentMetadata{SourceURL: "https://example.com"}.HasRequiredFields())
	require.False(t, ContentMetadata{Author: "someone"}.HasRequiredFields())
}

func TestContentMetadataMerge(t *testing.T) {
	t.Parallel()

	published := time.Now().UTC().Add(-time.Minute)
	primary := ContentMetadata{Title: "Strategy title"}
	fallback := ContentMetadata{
		Title:       "Caller title",
		Author:      "Caller author",
		PublishedAt: &published,
		SourceURL:   "https://example.com/a",
	}

	merged := primary.Merge(fallback)
	require.Equal(t, "Strategy title", merged.Title, "strategy fields take precedence")
	require.Equal(t, "Caller author", merged.Author)
	require.Equal(t, &published, merged.PublishedAt)
	require.Equal(t, "https://example.com/a", merged.SourceURL)
}
