// Package pipeline implements the five-stage ingestion chain and the worker
// pool that executes it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cryptoganster/cryptoingest/internal/dedup"
	"github.com/cryptoganster/cryptoingest/internal/domain"
	"github.com/cryptoganster/cryptoingest/internal/ingest"
	"github.com/cryptoganster/cryptoingest/internal/metrics"
	"github.com/cryptoganster/cryptoingest/internal/normalize"
	"github.com/cryptoganster/cryptoingest/internal/parser"
	"github.com/cryptoganster/cryptoingest/internal/resilience"
	"github.com/cryptoganster/cryptoingest/internal/validate"
)

// Outcome summarizes how one collected item moved through the pipeline.
type Outcome string

// Pipeline outcomes. Every item ends in exactly one of these; stage errors
// are isolated and never abort the worker loop.
const (
	OutcomeIngested         Outcome = "ingested"
	OutcomeValidationFailed Outcome = "validation_failed"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeError            Outcome = "error"
)

// Result reports one item's pipeline run.
type Result struct {
	Outcome   Outcome
	ContentID string
	Stage     string
	Err       error
	Bytes     int
}

// Config controls Worker behavior.
type Config struct {
	TopicIngested         string
	TopicValidationFailed string
	ArchivePrefix         string
	ArchiveContentType    string
}

// Worker consumes collected-content facts and executes the pipeline:
// normalize, validate, deduplicate, persist, publish. One bad item never
// blocks the items behind it.
type Worker struct {
	queue      ingest.Queue
	parser     *parser.Parser
	normalizer *normalize.Service
	validator  *validate.Service
	dedup      *dedup.Service
	reader     ingest.ContentReader
	writer     ingest.ContentWriter
	publisher  ingest.Publisher
	archive    ingest.BlobStore
	ids        ingest.IDGenerator
	clock      ingest.Clock
	breaker    *resilience.CircuitBreaker
	retry      *resilience.RetryPolicy
	cfg        Config
	logger     *zap.Logger
}

// Deps bundles the worker's collaborators. Parser, archive, breaker, and
// retry are optional; everything else is required.
type Deps struct {
	Queue      ingest.Queue
	Parser     *parser.Parser
	Normalizer *normalize.Service
	Validator  *validate.Service
	Dedup      *dedup.Service
	Reader     ingest.ContentReader
	Writer     ingest.ContentWriter
	Publisher  ingest.Publisher
	Archive    ingest.BlobStore
	IDs        ingest.IDGenerator
	Clock      ingest.Clock
	Breaker    *resilience.CircuitBreaker
	Retry      *resilience.RetryPolicy
}

// NewWorker constructs a Worker.
func NewWorker(deps Deps, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopicIngested == "" {
		cfg.TopicIngested = "content.ingested"
	}
	if cfg.TopicValidationFailed == "" {
		cfg.TopicValidationFailed = "content.validation_failed"
	}
	if cfg.ArchiveContentType == "" {
		cfg.ArchiveContentType = "text/plain; charset=utf-8"
	}
	metrics.Init()
	return &Worker{
		queue:      deps.Queue,
		parser:     deps.Parser,
		normalizer: deps.Normalizer,
		validator:  deps.Validator,
		dedup:      deps.Dedup,
		reader:     deps.Reader,
		writer:     deps.Writer,
		publisher:  deps.Publisher,
		archive:    deps.Archive,
		ids:        deps.IDs,
		clock:      deps.Clock,
		breaker:    deps.Breaker,
		retry:      deps.Retry,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run blocks, consuming facts until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		fact, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ingest.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		metrics.IncActiveWorkers()
		result := w.Process(ctx, fact)
		metrics.DecActiveWorkers()

		switch result.Outcome {
		case OutcomeIngested:
			w.logger.Debug("item ingested",
				zap.String("job_id", fact.JobID),
				zap.String("content_id", result.ContentID),
			)
		case OutcomeError:
			w.logger.Error("pipeline stage failed",
				zap.String("job_id", fact.JobID),
				zap.String("source_id", fact.SourceID),
				zap.String("stage", result.Stage),
				zap.Error(result.Err),
			)
		default:
			w.logger.Debug("item dropped",
				zap.String("job_id", fact.JobID),
				zap.String("outcome", string(result.Outcome)),
			)
		}
	}
}

// Process runs the full chain for one fact. Errors are folded into the
// returned Result; the method never panics the loop or returns an error.
func (w *Worker) Process(ctx context.Context, fact ingest.ContentCollected) Result {
	w.archiveRaw(ctx, fact)

	content, meta := w.parse(ctx, fact)

	normalized := w.normalizer.Normalize(content, fact.SourceType)
	extracted := w.normalizer.ExtractMetadata(normalized, fact.SourceType)
	meta = meta.Merge(extracted)

	if result, ok := w.checkQuality(ctx, fact, normalized, meta); !ok {
		return result
	}

	hash, err := w.dedup.ComputeHash(normalized)
	if err != nil {
		return w.stageError("hash", err)
	}

	existing, err := w.lookupByHash(ctx, hash)
	if err != nil {
		return w.stageError("lookup", err)
	}
	if existing != nil {
		if err := w.dedup.RecordHash(ctx, hash); err != nil {
			w.logger.Warn("record duplicate hash failed", zap.Error(err))
		}
		metrics.ObserveDuplicate(string(fact.SourceType))
		return Result{Outcome: OutcomeDuplicate}
	}

	item, err := w.buildItem(fact, hash, normalized, meta)
	if err != nil {
		return w.stageError("construct", err)
	}

	if err := w.guard(ctx, func(ctx context.Context) error {
		return w.writer.Save(ctx, item)
	}); err != nil {
		return w.stageError("persist", err)
	}
	if err := w.dedup.RecordHash(ctx, hash); err != nil {
		w.logger.Warn("record hash failed", zap.Error(err))
	}

	w.announceIngested(ctx, fact, item)
	metrics.ObserveIngested(string(fact.SourceType), len(normalized))
	return Result{Outcome: OutcomeIngested, ContentID: item.ContentID, Bytes: len(normalized)}
}

// parse converts raw content to markdown when a strategy exists for the
// source type. Parse failures degrade to the raw content rather than
// dropping the item; normalization still applies the source-specific pass.
func (w *Worker) parse(ctx context.Context, fact ingest.ContentCollected) (string, domain.ContentMetadata) {
	if w.parser == nil {
		return fact.RawContent, fact.Metadata
	}
	parsed, err := w.parser.Parse(ctx, fact.RawContent, fact.SourceType, &fact.Metadata, parser.Options{
		SourceURL: fact.Metadata.SourceURL,
	})
	if err != nil {
		if !errors.Is(err, parser.ErrUnsupportedSourceType) {
			metrics.ObserveStageError("parse")
			w.logger.Warn("parse failed, ingesting raw content",
				zap.String("job_id", fact.JobID),
				zap.String("source_type", string(fact.SourceType)),
				zap.Error(err),
			)
		}
		return fact.RawContent, fact.Metadata
	}
	for _, warning := range parsed.Info.Warnings {
		w.logger.Debug("parser warning",
			zap.String("job_id", fact.JobID),
			zap.String("warning", warning),
		)
	}
	return parsed.Markdown, parsed.Metadata
}

func (w *Worker) checkQuality(ctx context.Context, fact ingest.ContentCollected, normalized string, meta domain.ContentMetadata) (Result, bool) {
	res := w.validator.ValidateQuality(normalized, meta)
	if res.Valid {
		return Result{}, true
	}

	event := ingest.ContentValidationFailed{
		JobID:     fact.JobID,
		SourceID:  fact.SourceID,
		Content:   ingest.TruncateContent(normalized, ingest.ValidationFailedContentLimit),
		Errors:    res.Errors,
		Timestamp: w.clock.Now(),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.TopicValidationFailed, event); err != nil {
		w.logger.Error("publish validation-failed event", zap.Error(err))
	}
	metrics.ObserveValidationFailure(string(fact.SourceType))
	return Result{Outcome: OutcomeValidationFailed, Err: fmt.Errorf("quality gate: %s", strings.Join(res.Errors, "; "))}, false
}

func (w *Worker) lookupByHash(ctx context.Context, hash domain.ContentHash) (*domain.ContentItem, error) {
	var existing *domain.ContentItem
	err := w.guard(ctx, func(ctx context.Context) error {
		var lookupErr error
		existing, lookupErr = w.reader.FindByHash(ctx, hash)
		return lookupErr
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func (w *Worker) buildItem(fact ingest.ContentCollected, hash domain.ContentHash, normalized string, meta domain.ContentMetadata) (*domain.ContentItem, error) {
	contentID, err := w.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate content id: %w", err)
	}
	tags := w.normalizer.DetectAssets(normalized)
	item, err := domain.NewContentItem(domain.NewContentItemParams{
		ContentID:         contentID,
		SourceID:          fact.SourceID,
		Hash:              hash,
		RawContent:        fact.RawContent,
		NormalizedContent: normalized,
		Metadata:          meta,
		AssetTags:         tags,
		CollectedAt:       fact.CollectedAt,
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// announceIngested publishes the ingested event exactly once. The item is
// already persisted; a publish failure is logged, not retried.
func (w *Worker) announceIngested(ctx context.Context, fact ingest.ContentCollected, item *domain.ContentItem) {
	event := ingest.ContentIngested{
		ContentID:         item.ContentID,
		SourceID:          item.SourceID,
		JobID:             fact.JobID,
		ContentHash:       item.Hash.String(),
		NormalizedContent: item.NormalizedContent,
		Metadata:          item.Metadata,
		AssetTags:         item.AssetTags(),
		CollectedAt:       item.CollectedAt,
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.TopicIngested, event); err != nil {
		w.logger.Error("publish ingested event",
			zap.String("content_id", item.ContentID),
			zap.Error(err),
		)
	}
}

// archiveRaw stores the raw artifact before any transformation. Archival is
// best effort; failures never stop the pipeline.
func (w *Worker) archiveRaw(ctx context.Context, fact ingest.ContentCollected) {
	if w.archive == nil {
		return
	}
	path := w.buildArchivePath(fact)
	if _, err := w.archive.PutObject(ctx, path, w.cfg.ArchiveContentType, []byte(fact.RawContent)); err != nil {
		metrics.ObserveStageError("archive")
		w.logger.Warn("archive raw content failed",
			zap.String("job_id", fact.JobID),
			zap.Error(err),
		)
	}
}

func (w *Worker) buildArchivePath(fact ingest.ContentCollected) string {
	prefix := strings.Trim(w.cfg.ArchivePrefix, "/")
	name := fmt.Sprintf("%s/%s/%d.raw", fact.JobID, fact.SourceID, fact.CollectedAt.UnixNano())
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// guard wraps an external call with the circuit breaker and retry policy
// when they are configured.
func (w *Worker) guard(ctx context.Context, op func(context.Context) error) error {
	wrapped := op
	if w.breaker != nil {
		inner := wrapped
		wrapped = func(ctx context.Context) error {
			return w.breaker.Execute(ctx, inner)
		}
	}
	if w.retry != nil {
		return w.retry.Do(ctx, wrapped)
	}
	return wrapped(ctx)
}

func (w *Worker) stageError(stage string, err error) Result {
	metrics.ObserveStageError(stage)
	return Result{Outcome: OutcomeError, Stage: stage, Err: err}
}
