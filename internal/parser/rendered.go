package parser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/cryptoganster/cryptoingest/internal/domain"
)

// ErrNoSourceURL is returned when a render is requested without a page URL.
var ErrNoSourceURL = errors.New("rendered strategy requires a source URL")

// Renderer loads a page in a browser and returns the post-JavaScript DOM.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
	Close()
}

// RenderedStrategy is the JS-rendering fallback: it navigates to the source
// URL, waits for scripts to run, then hands the rendered DOM to the plain
// HTML strategy.
type RenderedStrategy struct {
	renderer Renderer
	inner    Strategy

	mu       sync.Mutex
	lastURL  string
	lastHTML string
}

// NewRenderedStrategy wraps a renderer around the given HTML strategy.
func NewRenderedStrategy(renderer Renderer, inner Strategy) *RenderedStrategy {
	return &RenderedStrategy{renderer: renderer, inner: inner}
}

// Name implements Strategy.
func (s *RenderedStrategy) Name() string { return "rendered_html" }

// Parse renders the page and parses the resulting DOM. The raw input is
// ignored; the browser fetches the page itself.
func (s *RenderedStrategy) Parse(ctx context.Context, _ string, opts Options) (string, error) {
	html, err := s.render(ctx, opts.SourceURL)
	if err != nil {
		return "", err
	}
	return s.inner.Parse(ctx, html, opts)
}

// ExtractMetadata renders the page and extracts metadata from the DOM.
func (s *RenderedStrategy) ExtractMetadata(ctx context.Context, _ string, opts Options) (domain.ContentMetadata, error) {
	html, err := s.render(ctx, opts.SourceURL)
	if err != nil {
		return domain.ContentMetadata{}, err
	}
	return s.inner.ExtractMetadata(ctx, html, opts)
}

// render serializes renders and reuses the last DOM when Parse and
// ExtractMetadata run back to back against the same URL.
func (s *RenderedStrategy) render(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", ErrNoSourceURL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if url == s.lastURL && s.lastHTML != "" {
		return s.lastHTML, nil
	}
	html, err := s.renderer.Render(ctx, url)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	s.lastURL = url
	s.lastHTML = html
	return html, nil
}

// ChromeConfig controls the headless browser pool.
type ChromeConfig struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
}

// ChromeRenderer implements Renderer with chromedp and headless Chrome.
type ChromeRenderer struct {
	cfg         ChromeConfig
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromeRenderer starts a shared browser allocator. MaxParallel bounds
// concurrent tabs; zero means unbounded.
func NewChromeRenderer(cfg ChromeConfig) (*ChromeRenderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromeRenderer{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts down the browser allocator.
func (r *ChromeRenderer) Close() {
	r.allocCancel()
}

// Render navigates to the URL, waits for the body to settle, and returns
// the rendered document.
func (r *ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	if err := r.acquire(ctx); err != nil {
		return "", err
	}
	defer r.release()

	taskCtx, taskCancel := chromedp.NewContext(r.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, r.cfg.NavigationTimeout)
	defer cancel()

	var html string
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func (r *ChromeRenderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (r *ChromeRenderer) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}
