// Package rss collects feed snapshots over HTTP, validates them with
// gofeed, and feeds them into the ingestion queue as collected-content
// facts. Each fact carries the raw feed XML for the parsing stage.
package rss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/cryptoganster/cryptoingest/internal/domain"
	"github.com/cryptoganster/cryptoingest/internal/ingest"
	"github.com/cryptoganster/cryptoingest/internal/source/ratelimit"
)

// maxFeedBytes bounds a single feed download.
const maxFeedBytes = 8 << 20

// Config controls feed polling.
type Config struct {
	SourceID  string
	UserAgent string
	Timeout   time.Duration
}

// Source polls RSS/Atom feeds. An unchanged feed (same newest item as the
// previous poll) is skipped and counted as a duplicate, so repeated polls
// do not flood the pipeline with identical snapshots.
type Source struct {
	cfg     Config
	client  *http.Client
	parser  *gofeed.Parser
	limiter *ratelimit.Limiter
	clock   ingest.Clock
	queue   ingest.Queue
	logger  *zap.Logger

	mu       sync.Mutex
	lastSeen map[string]string
}

// New builds a Source. The limiter may be nil to disable pacing.
func New(cfg Config, limiter *ratelimit.Limiter, clock ingest.Clock, queue ingest.Queue, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Source{
		cfg:      cfg,
		client:   &http.Client{Timeout: timeout},
		parser:   gofeed.NewParser(),
		limiter:  limiter,
		clock:    clock,
		queue:    queue,
		logger:   logger,
		lastSeen: make(map[string]string),
	}
}

// Collect polls each feed URL and enqueues changed feeds as collected
// facts. It returns per-batch metrics; the returned error is non-nil only
// when no feed could be fetched.
func (s *Source) Collect(ctx context.Context, jobID string, feedURLs []string) (domain.JobMetrics, error) {
	start := time.Now()
	var items, dupes, errs, bytes int64
	var lastErr error

	for _, feedURL := range feedURLs {
		if err := ctx.Err(); err != nil {
			return domain.JobMetrics{}, fmt.Errorf("collect canceled: %w", err)
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx, feedURL); err != nil {
				return domain.JobMetrics{}, err
			}
		}

		raw, feed, err := s.fetch(ctx, feedURL)
		if err != nil {
			errs++
			lastErr = err
			s.logger.Warn("feed fetch failed",
				zap.String("url", feedURL),
				zap.Error(err),
			)
			continue
		}
		items++
		bytes += int64(len(raw))

		marker := feedMarker(feed)
		if s.seenBefore(feedURL, marker) {
			dupes++
			s.logger.Debug("feed unchanged since last poll", zap.String("url", feedURL))
			continue
		}

		fact := ingest.ContentCollected{
			SourceID:   s.cfg.SourceID,
			JobID:      jobID,
			RawContent: string(raw),
			Metadata: domain.ContentMetadata{
				Title:     feed.Title,
				SourceURL: feedURL,
			},
			SourceType:  ingest.SourceRSS,
			CollectedAt: s.clock.Now(),
		}
		if err := s.queue.Enqueue(ctx, fact); err != nil {
			return domain.JobMetrics{}, fmt.Errorf("enqueue feed snapshot: %w", err)
		}
		s.remember(feedURL, marker)
	}

	metrics, err := domain.NewJobMetrics(items, dupes, errs, bytes, time.Since(start).Milliseconds())
	if err != nil {
		return domain.JobMetrics{}, err
	}
	if items == 0 && lastErr != nil {
		return metrics, fmt.Errorf("no feeds collected: %w", lastErr)
	}
	return metrics, nil
}

func (s *Source) fetch(ctx context.Context, feedURL string) ([]byte, *gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build feed request: %w", err)
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("fetch feed %s: status %d", feedURL, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read feed %s: %w", feedURL, err)
	}

	feed, err := s.parser.ParseString(string(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	return raw, feed, nil
}

// feedMarker identifies the newest item of a feed snapshot.
func feedMarker(feed *gofeed.Feed) string {
	if len(feed.Items) == 0 {
		return "empty:" + feed.Updated
	}
	item := feed.Items[0]
	if item.GUID != "" {
		return item.GUID
	}
	return item.Link + "|" + item.Published
}

func (s *Source) seenBefore(feedURL, marker string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen[feedURL] == marker
}

func (s *Source) remember(feedURL, marker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen[feedURL] = marker
}
