package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cryptoganster/cryptoingest/internal/domain"
	"github.com/cryptoganster/cryptoingest/internal/ingest"
)

// JobStore persists ingestion jobs with optimistic concurrency on the
// version column.
type JobStore struct {
	pool Querier
}

// NewJobStore connects a pool with the given DSN.
func NewJobStore(ctx context.Context, dsn string) (*JobStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &JobStore{pool: pool}, nil
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewJobStoreWithPool(pool Querier) *JobStore {
	return &JobStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const jobColumns = `job_id, source_id, status, scheduled_at, executed_at, completed_at, metrics, errors, version`

// Create inserts a new job row.
func (s *JobStore) Create(ctx context.Context, job *domain.IngestionJob) error {
	metricsJSON, errorsJSON, err := encodeJobBlobs(job)
	if err != nil {
		return err
	}
	query := `
INSERT INTO ingestion_jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (job_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		job.JobID, job.SourceID, string(job.Status), job.ScheduledAt,
		job.ExecutedAt, job.CompletedAt, metricsJSON, errorsJSON, job.Version,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", job.JobID, ingest.ErrJobExists)
	}
	return nil
}

// Get fetches a job by ID.
func (s *JobStore) Get(ctx context.Context, jobID string) (*domain.IngestionJob, error) {
	query := `SELECT ` + jobColumns + ` FROM ingestion_jobs WHERE job_id = $1`
	job, err := scanJob(s.pool.QueryRow(ctx, query, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, ingest.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}
	return job, nil
}

// Save writes a mutated job, guarded by the version the caller loaded. A
// concurrent writer bumps the stored version and this write is rejected.
func (s *JobStore) Save(ctx context.Context, job *domain.IngestionJob, expectedVersion int64) error {
	metricsJSON, errorsJSON, err := encodeJobBlobs(job)
	if err != nil {
		return err
	}
	query := `
UPDATE ingestion_jobs
SET status = $1, executed_at = $2, completed_at = $3, metrics = $4, errors = $5, version = $6
WHERE job_id = $7 AND version = $8`

	tag, err := s.pool.Exec(ctx, query,
		string(job.Status), job.ExecutedAt, job.CompletedAt,
		metricsJSON, errorsJSON, job.Version,
		job.JobID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var stored int64
	err = s.pool.QueryRow(ctx, `SELECT version FROM ingestion_jobs WHERE job_id = $1`, job.JobID).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("job %s: %w", job.JobID, ingest.ErrJobNotFound)
	}
	if err != nil {
		return fmt.Errorf("query job version: %w", err)
	}
	return fmt.Errorf("job %s: expected version %d, have %d: %w",
		job.JobID, expectedVersion, stored, ingest.ErrVersionConflict)
}

// List returns all jobs ordered by scheduled time.
func (s *JobStore) List(ctx context.Context) ([]*domain.IngestionJob, error) {
	query := `SELECT ` + jobColumns + ` FROM ingestion_jobs ORDER BY scheduled_at`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.IngestionJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

func encodeJobBlobs(job *domain.IngestionJob) ([]byte, []byte, error) {
	metricsJSON, err := json.Marshal(job.Metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal metrics: %w", err)
	}
	errorsJSON, err := json.Marshal(job.Errors)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal errors: %w", err)
	}
	return metricsJSON, errorsJSON, nil
}

func scanJob(row pgx.Row) (*domain.IngestionJob, error) {
	var (
		job         domain.IngestionJob
		status      string
		executedAt  *time.Time
		completedAt *time.Time
		metricsJSON []byte
		errorsJSON  []byte
	)
	err := row.Scan(
		&job.JobID, &job.SourceID, &status, &job.ScheduledAt,
		&executedAt, &completedAt, &metricsJSON, &errorsJSON, &job.Version,
	)
	if err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	job.ExecutedAt = executedAt
	job.CompletedAt = completedAt
	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &job.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics: %w", err)
		}
	}
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &job.Errors); err != nil {
			return nil, fmt.Errorf("decode errors: %w", err)
		}
	}
	return &job, nil
}
