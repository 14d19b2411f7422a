// Package app_test exercises the composition root with in-memory providers.
package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cryptoganster/cryptoingest/internal/app"
	"github.com/cryptoganster/cryptoingest/internal/config"
	"github.com/cryptoganster/cryptoingest/internal/domain"
	"github.com/cryptoganster/cryptoingest/internal/ingest"
	storememory "github.com/cryptoganster/cryptoingest/internal/storage/memory"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestNewWiresMemoryProviders(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), memoryConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Jobs)
	require.NotNil(t, a.Reader)
	require.NotNil(t, a.Writer)
	require.NotNil(t, a.Publisher)
	require.NotNil(t, a.Queue)
	require.NotNil(t, a.Dispatcher)
	require.NotNil(t, a.Runner)
	require.NotNil(t, a.Server)
	require.NotNil(t, a.WebSource)
	require.NotNil(t, a.RSSSource)
	require.Nil(t, a.Archive, "noop archive disables raw archival")
}

func TestNewRejectsUnknownProviders(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig(t)
	cfg.Database.Provider = "clay-tablet"
	_, err := app.New(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "clay-tablet")

	cfg = memoryConfig(t)
	cfg.Publisher.Provider = "smoke-signal"
	_, err = app.New(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "smoke-signal")
}

func TestEndToEndIngestion(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig(t)
	cfg.Pipeline.Workers = 2
	cfg.Archive.Provider = "memory"

	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Dispatcher.Run(ctx)

	fact := ingest.ContentCollected{
		SourceID:   "src-e2e",
		JobID:      "job-e2e",
		RawContent: "Bitcoin closed the week higher while Ethereum staking inflows kept climbing across exchanges.",
		Metadata: domain.ContentMetadata{
			SourceURL: "https://news.example.com/weekly",
		},
		SourceType:  ingest.SourcePDF,
		CollectedAt: time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, a.Dispatcher.Enqueue(ctx, fact))

	store, ok := a.Reader.(*storememory.ContentStore)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return store.Len() == 1
	}, 5*time.Second, 10*time.Millisecond)
}
