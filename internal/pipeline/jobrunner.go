package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/cryptoganster/cryptoingest/internal/domain"
	"github.com/cryptoganster/cryptoingest/internal/ingest"
	"github.com/cryptoganster/cryptoingest/internal/metrics"
	"github.com/cryptoganster/cryptoingest/internal/parser"
	"github.com/cryptoganster/cryptoingest/internal/resilience"
)

// JobFunc performs one execution attempt of a job and reports its metrics.
// It must be safe to re-run: retries repeat the whole attempt.
type JobFunc func(ctx context.Context) (domain.JobMetrics, error)

// Runner drives the ingestion-job lifecycle around a job function: start,
// run, complete or fail, and retry while the aggregate permits it. Every
// state change is persisted under the version the runner loaded,
// so a concurrent writer surfaces as a version conflict instead of a lost
// update.
type Runner struct {
	jobs   ingest.JobRepository
	retry  *resilience.RetryPolicy
	clock  ingest.Clock
	ids    ingest.IDGenerator
	logger *zap.Logger
}

// NewRunner constructs a Runner. The retry policy bounds attempts together
// with the aggregate's own CanRetry rule.
func NewRunner(jobs ingest.JobRepository, retry *resilience.RetryPolicy, clock ingest.Clock, ids ingest.IDGenerator, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Runner{
		jobs:   jobs,
		retry:  retry,
		clock:  clock,
		ids:    ids,
		logger: logger,
	}
}

// Execute loads the job, runs fn, and persists every lifecycle transition.
// Failed attempts are retried with backoff while the job's CanRetry rule
// holds. The returned error is the last attempt's error when the job ends
// FAILED, nil when it completes.
func (r *Runner) Execute(ctx context.Context, jobID string, fn JobFunc) error {
	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}

	for {
		if err := r.transition(ctx, job, (*domain.IngestionJob).Start); err != nil {
			return fmt.Errorf("start job: %w", err)
		}

		jobMetrics, runErr := fn(ctx)
		if runErr == nil {
			if err := r.transition(ctx, job, func(j *domain.IngestionJob) error {
				return j.Complete(jobMetrics)
			}); err != nil {
				return fmt.Errorf("complete job: %w", err)
			}
			metrics.ObserveJob(string(domain.JobCompleted))
			return nil
		}

		record, recErr := r.buildRecord(runErr)
		if recErr != nil {
			return fmt.Errorf("build error record: %w", recErr)
		}
		if err := r.transition(ctx, job, func(j *domain.IngestionJob) error {
			return j.Fail(record)
		}); err != nil {
			return fmt.Errorf("fail job: %w", err)
		}

		if !job.CanRetry() || ctx.Err() != nil {
			metrics.ObserveJob(string(domain.JobFailed))
			return fmt.Errorf("job %s failed: %w", jobID, runErr)
		}

		if err := r.transition(ctx, job, (*domain.IngestionJob).Retry); err != nil {
			return fmt.Errorf("retry job: %w", err)
		}
		r.logger.Info("retrying job",
			zap.String("job_id", jobID),
			zap.Int("retries", job.RetryCount()),
			zap.Error(runErr),
		)

		if err := r.wait(ctx, job.RetryCount()); err != nil {
			metrics.ObserveJob(string(domain.JobFailed))
			return err
		}
	}
}

// transition applies a mutation and persists it under the pre-mutation
// version.
func (r *Runner) transition(ctx context.Context, job *domain.IngestionJob, mutate func(*domain.IngestionJob) error) error {
	expected := job.Version
	if err := mutate(job); err != nil {
		return err
	}
	if err := r.jobs.Save(ctx, job, expected); err != nil {
		return err
	}
	return nil
}

// buildRecord classifies the attempt's error for the retry decision. The
// retry counter marks this record as one consumed attempt.
func (r *Runner) buildRecord(runErr error) (domain.ErrorRecord, error) {
	errorID, err := r.ids.NewID()
	if err != nil {
		return domain.ErrorRecord{}, err
	}
	record, err := domain.NewErrorRecord(errorID, r.clock.Now(), classifyError(runErr), runErr.Error())
	if err != nil {
		return domain.ErrorRecord{}, err
	}
	record.RetryCount = 1
	return record, nil
}

func (r *Runner) wait(ctx context.Context, attempt int) error {
	if r.retry == nil {
		return nil
	}
	delay := r.retry.Backoff(attempt)
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("retry wait canceled: %w", ctx.Err())
	}
}

// classifyError maps an attempt error onto the job error taxonomy. Network
// timeouts and cancellations count as timeouts, other network failures as
// network errors, domain and parser rejections as permanent.
func classifyError(err error) domain.ErrorType {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrorTypeTimeout
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return domain.ErrorTypeTimeout
		}
		return domain.ErrorTypeNetwork
	case errors.Is(err, parser.ErrUnsupportedSourceType):
		return domain.ErrorTypeParsing
	case errors.Is(err, domain.ErrInvalidContentItem), errors.Is(err, domain.ErrInvalidMetadata):
		return domain.ErrorTypeValidation
	case errors.Is(err, resilience.ErrCircuitOpen):
		return domain.ErrorTypeInfrastructure
	default:
		return domain.ErrorTypeInfrastructure
	}
}
