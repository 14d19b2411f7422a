package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	clocksystem "github.com/cryptoganster/cryptoingest/internal/clock/system"
	"github.com/cryptoganster/cryptoingest/internal/ingest"
	queuememory "github.com/cryptoganster/cryptoingest/internal/queue/memory"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Crypto Daily</title>
    <link>https://news.example.com/</link>
    <item>
      <title>Bitcoin climbs</title>
      <link>https://news.example.com/btc-climbs</link>
      <guid>btc-climbs-1</guid>
      <pubDate>Fri, 15 Mar 2024 10:00:00 GMT</pubDate>
      <description>BTC gained five percent overnight.</description>
    </item>
  </channel>
</rss>`

func newFeedSource(queue ingest.Queue) *Source {
	return New(Config{SourceID: "src-rss", Timeout: 5 * time.Second}, nil, clocksystem.New(), queue, nil)
}

func TestCollectEnqueuesFeedSnapshot(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	queue := queuememory.NewQueue(4)
	src := newFeedSource(queue)

	metrics, err := src.Collect(context.Background(), "job-1", []string{srv.URL})
	require.NoError(t, err)
	require.Equal(t, int64(1), metrics.ItemsCollected)
	require.Equal(t, int64(0), metrics.DuplicatesDetected)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	fact, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, ingest.SourceRSS, fact.SourceType)
	require.Equal(t, "Crypto Daily", fact.Metadata.Title)
	require.Equal(t, srv.URL, fact.Metadata.SourceURL)
	require.Contains(t, fact.RawContent, "<guid>btc-climbs-1</guid>")
}

func TestCollectSkipsUnchangedFeed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	queue := queuememory.NewQueue(4)
	src := newFeedSource(queue)

	_, err := src.Collect(context.Background(), "job-1", []string{srv.URL})
	require.NoError(t, err)

	metrics, err := src.Collect(context.Background(), "job-2", []string{srv.URL})
	require.NoError(t, err)
	require.Equal(t, int64(1), metrics.ItemsCollected)
	require.Equal(t, int64(1), metrics.DuplicatesDetected, "second poll of the same snapshot is a duplicate")
}

func TestCollectRejectsBrokenFeed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a feed"))
	}))
	defer srv.Close()

	queue := queuememory.NewQueue(4)
	src := newFeedSource(queue)

	metrics, err := src.Collect(context.Background(), "job-1", []string{srv.URL})
	require.Error(t, err)
	require.Equal(t, int64(0), metrics.ItemsCollected)
	require.Equal(t, int64(1), metrics.ErrorsEncountered)
}

func TestCollectFeedServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	queue := queuememory.NewQueue(4)
	src := newFeedSource(queue)

	_, err := src.Collect(context.Background(), "job-1", []string{srv.URL})
	require.ErrorContains(t, err, "status 503")
}
