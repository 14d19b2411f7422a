// Package app initializes and holds long-lived application services, acting
// as a dependency injection container. It reads the loaded configuration and
// instantiates the appropriate providers (postgres or memory stores, pubsub
// or kafka publishers, redis or memory dedup caches) before wiring the
// pipeline together.
package app

import (
	"context"
	"fmt"

	gstorage "cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cryptoganster/cryptoingest/internal/api"
	archivegcs "github.com/cryptoganster/cryptoingest/internal/archive/gcs"
	archivelocal "github.com/cryptoganster/cryptoingest/internal/archive/local"
	archivememory "github.com/cryptoganster/cryptoingest/internal/archive/memory"
	clocksystem "github.com/cryptoganster/cryptoingest/internal/clock/system"
	"github.com/cryptoganster/cryptoingest/internal/config"
	"github.com/cryptoganster/cryptoingest/internal/dedup"
	"github.com/cryptoganster/cryptoingest/internal/hash/sha256"
	"github.com/cryptoganster/cryptoingest/internal/headless/detector"
	iduuid "github.com/cryptoganster/cryptoingest/internal/id/uuid"
	"github.com/cryptoganster/cryptoingest/internal/ingest"
	"github.com/cryptoganster/cryptoingest/internal/normalize"
	"github.com/cryptoganster/cryptoingest/internal/parser"
	"github.com/cryptoganster/cryptoingest/internal/pipeline"
	pubkafka "github.com/cryptoganster/cryptoingest/internal/publisher/kafka"
	pubmemory "github.com/cryptoganster/cryptoingest/internal/publisher/memory"
	pubpubsub "github.com/cryptoganster/cryptoingest/internal/publisher/pubsub"
	queuememory "github.com/cryptoganster/cryptoingest/internal/queue/memory"
	"github.com/cryptoganster/cryptoingest/internal/resilience"
	"github.com/cryptoganster/cryptoingest/internal/source/ratelimit"
	sourcerss "github.com/cryptoganster/cryptoingest/internal/source/rss"
	sourceweb "github.com/cryptoganster/cryptoingest/internal/source/web"
	storememory "github.com/cryptoganster/cryptoingest/internal/storage/memory"
	storepostgres "github.com/cryptoganster/cryptoingest/internal/storage/postgres"
	"github.com/cryptoganster/cryptoingest/internal/validate"
)

// App holds all the shared, long-lived services of the ingestion service.
type App struct {
	Logger     *zap.Logger
	Config     config.Config
	Jobs       ingest.JobRepository
	Reader     ingest.ContentReader
	Writer     ingest.ContentWriter
	Publisher  ingest.Publisher
	Archive    ingest.BlobStore
	Queue      *queuememory.Queue
	Dispatcher *pipeline.Dispatcher
	Runner     *pipeline.Runner
	Server     *api.Server
	WebSource  *sourceweb.Source
	RSSSource  *sourcerss.Source
	IDs        ingest.IDGenerator
	Clock      ingest.Clock

	closers []func()
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) (string, error) {
	return "noop", nil
}

// New creates and initializes an App from configuration. It fails fast if
// any critical service cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Logger: logger, Config: cfg}

	clock := clocksystem.New()
	ids := iduuid.New()
	hasher := sha256.New()
	a.Clock = clock
	a.IDs = ids

	if err := a.initStores(ctx, cfg); err != nil {
		return nil, err
	}
	if err := a.initPublisher(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initArchive(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	cache, err := a.buildDedupCache(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	dedupSvc := dedup.NewService(hasher, cache, clock)

	contentParser, err := a.buildParser(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	retry := resilience.NewRetryPolicy(
		cfg.Retry.MaxAttempts,
		cfg.Retry.BackoffInitial(),
		cfg.Retry.BackoffMax(),
	)
	breaker := resilience.NewCircuitBreaker("storage", resilience.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		FailureWindow:    cfg.Breaker.FailureWindow(),
		ResetTimeout:     cfg.Breaker.ResetTimeout(),
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
	}, clock)

	a.Queue = queuememory.NewQueue(cfg.Pipeline.QueueDepth)
	workerDeps := pipeline.Deps{
		Queue:      a.Queue,
		Parser:     contentParser,
		Normalizer: normalize.NewService(logger),
		Validator: validate.NewService(validate.Config{
			MinLength: cfg.Quality.MinLength,
			MaxLength: cfg.Quality.MaxLength,
		}),
		Dedup:     dedupSvc,
		Reader:    a.Reader,
		Writer:    a.Writer,
		Publisher: a.Publisher,
		Archive:   a.Archive,
		IDs:       ids,
		Clock:     clock,
		Breaker:   breaker,
		Retry:     retry,
	}
	workerCfg := pipeline.Config{
		TopicIngested:         cfg.Pipeline.TopicIngested,
		TopicValidationFailed: cfg.Pipeline.TopicValidationFailed,
		ArchivePrefix:         cfg.Archive.Prefix,
		ArchiveContentType:    cfg.Archive.ContentType,
	}
	workers := make([]*pipeline.Worker, cfg.Pipeline.Workers)
	for i := range workers {
		workers[i] = pipeline.NewWorker(workerDeps, workerCfg, logger)
	}
	a.Dispatcher = pipeline.NewDispatcher(a.Queue, workers)
	a.Runner = pipeline.NewRunner(a.Jobs, retry, clock, ids, logger)

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Sources.RateLimitRPS,
		DefaultBurst: cfg.Sources.RateLimitBurst,
	})
	a.WebSource = sourceweb.New(sourceweb.Config{
		SourceID:      cfg.Sources.WebSourceID,
		UserAgent:     cfg.Sources.UserAgent,
		RespectRobots: cfg.Sources.RespectRobots,
		Timeout:       cfg.Sources.FetchTimeout(),
	}, limiter, clock, a.Queue, logger)
	a.RSSSource = sourcerss.New(sourcerss.Config{
		SourceID:  cfg.Sources.RSSSourceID,
		UserAgent: cfg.Sources.UserAgent,
		Timeout:   cfg.Sources.FetchTimeout(),
	}, limiter, clock, a.Queue, logger)

	a.Server = api.NewServer(a.Jobs, a.Reader, a.Dispatcher, ids, clock, logger)

	logger.Info("application services initialized",
		zap.String("database", cfg.Database.Provider),
		zap.String("publisher", cfg.Publisher.Provider),
		zap.String("dedup", cfg.Dedup.Provider),
		zap.String("archive", cfg.Archive.Provider),
		zap.Int("workers", cfg.Pipeline.Workers),
	)
	return a, nil
}

func (a *App) initStores(ctx context.Context, cfg config.Config) error {
	switch cfg.Database.Provider {
	case "postgres":
		contentStore, err := storepostgres.NewContentStore(ctx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("init content store: %w", err)
		}
		a.closers = append(a.closers, contentStore.Close)
		jobStore, err := storepostgres.NewJobStore(ctx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("init job store: %w", err)
		}
		a.closers = append(a.closers, jobStore.Close)
		a.Reader = contentStore
		a.Writer = contentStore
		a.Jobs = jobStore
	case "memory":
		contentStore := storememory.NewContentStore()
		a.Reader = contentStore
		a.Writer = contentStore
		a.Jobs = storememory.NewJobStore()
	default:
		return fmt.Errorf("unknown database provider: %s", cfg.Database.Provider)
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context, cfg config.Config) error {
	switch cfg.Publisher.Provider {
	case "pubsub":
		pub, err := pubpubsub.Connect(ctx, cfg.Publisher.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := pub.Close(); err != nil {
				a.Logger.Warn("close pubsub publisher", zap.Error(err))
			}
		})
		a.Publisher = pub
	case "kafka":
		pub, err := pubkafka.Connect(pubkafka.Config{Brokers: cfg.Publisher.Kafka.Brokers})
		if err != nil {
			return fmt.Errorf("init kafka publisher: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := pub.Close(); err != nil {
				a.Logger.Warn("close kafka publisher", zap.Error(err))
			}
		})
		a.Publisher = pub
	case "memory":
		a.Publisher = pubmemory.New()
	case "noop":
		a.Publisher = noopPublisher{}
	default:
		return fmt.Errorf("unknown publisher provider: %s", cfg.Publisher.Provider)
	}
	return nil
}

func (a *App) initArchive(ctx context.Context, cfg config.Config) error {
	switch cfg.Archive.Provider {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				a.Logger.Warn("close gcs client", zap.Error(err))
			}
		})
		store, err := archivegcs.New(client, archivegcs.Config{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			return fmt.Errorf("init gcs archive: %w", err)
		}
		a.Archive = store
	case "local":
		store, err := archivelocal.New(archivelocal.Config{BaseDir: cfg.Archive.LocalDir})
		if err != nil {
			return fmt.Errorf("init local archive: %w", err)
		}
		a.Archive = store
	case "memory":
		a.Archive = archivememory.NewBlobStore()
	case "noop":
		// Raw content is not archived; the worker treats a nil store as
		// archival disabled.
		a.Archive = nil
	default:
		return fmt.Errorf("unknown archive provider: %s", cfg.Archive.Provider)
	}
	return nil
}

func (a *App) buildDedupCache(cfg config.Config) (dedup.Cache, error) {
	switch cfg.Dedup.Provider {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Dedup.Redis.Addr,
			Password: cfg.Dedup.Redis.Password,
			DB:       cfg.Dedup.Redis.DB,
		})
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				a.Logger.Warn("close redis client", zap.Error(err))
			}
		})
		return dedup.NewRedisCache(client, cfg.Dedup.Redis.Key), nil
	case "memory":
		return dedup.NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unknown dedup provider: %s", cfg.Dedup.Provider)
	}
}

func (a *App) buildParser(cfg config.Config) (*parser.Parser, error) {
	html := parser.NewHTMLStrategy()
	rssStrategy := parser.NewRSSStrategy()

	var fallback parser.Strategy
	var det parser.JSDetector
	if cfg.Headless.Enabled {
		renderer, err := parser.NewChromeRenderer(parser.ChromeConfig{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Headless.UserAgent,
			NavigationTimeout: cfg.Headless.NavTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("init chrome renderer: %w", err)
		}
		a.closers = append(a.closers, renderer.Close)
		fallback = parser.NewRenderedStrategy(renderer, html)
		det = detector.NewHeuristic(cfg.Headless.Denylist, 0)
	}
	return parser.New(html, rssStrategy, fallback, det, a.Logger), nil
}

// Close gracefully shuts down all services in reverse initialization order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}
