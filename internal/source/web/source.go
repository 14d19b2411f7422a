// Package web collects page content over HTTP using gocolly and feeds it
// into the ingestion queue as collected-content facts.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/cryptoganster/cryptoingest/internal/domain"
	"github.com/cryptoganster/cryptoingest/internal/ingest"
	"github.com/cryptoganster/cryptoingest/internal/source/ratelimit"
)

// Config controls collector behavior.
type Config struct {
	SourceID      string
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Source fetches web pages and enqueues one fact per successfully fetched
// URL. Fetch failures are logged and counted but do not stop the batch.
type Source struct {
	cfg     Config
	base    *colly.Collector
	limiter *ratelimit.Limiter
	clock   ingest.Clock
	queue   ingest.Queue
	logger  *zap.Logger
}

// New builds a Source. The limiter may be nil to disable pacing.
func New(cfg Config, limiter *ratelimit.Limiter, clock ingest.Clock, queue ingest.Queue, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Source{
		cfg:     cfg,
		base:    c,
		limiter: limiter,
		clock:   clock,
		queue:   queue,
		logger:  logger,
	}
}

// Collect fetches each URL and enqueues the page body as a collected fact.
// It returns per-batch metrics; the returned error is non-nil only when no
// URL could be collected.
func (s *Source) Collect(ctx context.Context, jobID string, urls []string) (domain.JobMetrics, error) {
	start := time.Now()
	var items, errs, bytes int64
	var lastErr error

	for _, pageURL := range urls {
		if err := ctx.Err(); err != nil {
			return domain.JobMetrics{}, fmt.Errorf("collect canceled: %w", err)
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx, pageURL); err != nil {
				return domain.JobMetrics{}, err
			}
		}

		body, finalURL, err := s.fetch(ctx, pageURL)
		if err != nil {
			errs++
			lastErr = err
			s.logger.Warn("web fetch failed",
				zap.String("url", pageURL),
				zap.Error(err),
			)
			continue
		}

		fact := ingest.ContentCollected{
			SourceID:   s.cfg.SourceID,
			JobID:      jobID,
			RawContent: string(body),
			Metadata: domain.ContentMetadata{
				SourceURL: finalURL,
			},
			SourceType:  ingest.SourceWeb,
			CollectedAt: s.clock.Now(),
		}
		if err := s.queue.Enqueue(ctx, fact); err != nil {
			return domain.JobMetrics{}, fmt.Errorf("enqueue collected page: %w", err)
		}
		items++
		bytes += int64(len(body))
	}

	metrics, err := domain.NewJobMetrics(items, 0, errs, bytes, time.Since(start).Milliseconds())
	if err != nil {
		return domain.JobMetrics{}, err
	}
	if items == 0 && lastErr != nil {
		return metrics, fmt.Errorf("no pages collected: %w", lastErr)
	}
	return metrics, nil
}

func (s *Source) fetch(ctx context.Context, pageURL string) ([]byte, string, error) {
	var (
		body     []byte
		finalURL string
		fetchErr error
	)

	collector := s.base.Clone()
	if s.cfg.UserAgent != "" {
		collector.UserAgent = s.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !s.cfg.RespectRobots
	timeout := s.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
		finalURL = r.Request.URL.String()
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(pageURL)
	}()

	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, "", fmt.Errorf("visit %s: %w", pageURL, err)
		}
		if fetchErr != nil {
			return nil, "", fmt.Errorf("fetch %s: %w", pageURL, fetchErr)
		}
		return body, finalURL, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
