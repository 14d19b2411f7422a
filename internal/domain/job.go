package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidStateTransition is returned when a job transition is not in the
// allowed table.
var ErrInvalidStateTransition = errors.New("invalid job state transition")

// ErrInvalidJob is returned when job construction fails.
var ErrInvalidJob = errors.New("invalid ingestion job")

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

// Job lifecycle states. COMPLETED is terminal.
const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
	JobRetrying  JobStatus = "RETRYING"
)

const maxRetries = 5

var allowedTransitions = map[JobStatus][]JobStatus{
	JobPending:   {JobRunning, JobFailed},
	JobRunning:   {JobCompleted, JobFailed, JobRetrying},
	JobCompleted: {},
	JobFailed:    {JobRetrying, JobPending},
	JobRetrying:  {JobRunning, JobFailed},
}

// CanTransitionTo reports whether the transition table allows moving from s
// to target.
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IngestionJob tracks one scheduled ingestion run for a source. Every
// state-changing operation bumps Version; the persistence layer rejects a
// save whose expected version no longer matches the stored one.
type IngestionJob struct {
	JobID       string        `json:"job_id"`
	SourceID    string        `json:"source_id"`
	Status      JobStatus     `json:"status"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	ExecutedAt  *time.Time    `json:"executed_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Metrics     JobMetrics    `json:"metrics"`
	Errors      []ErrorRecord `json:"errors,omitempty"`
	Version     int64         `json:"version"`
}

// NewIngestionJob creates a pending job at version zero.
func NewIngestionJob(jobID, sourceID string, scheduledAt time.Time) (*IngestionJob, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("%w: job id is blank", ErrInvalidJob)
	}
	if strings.TrimSpace(sourceID) == "" {
		return nil, fmt.Errorf("%w: source id is blank", ErrInvalidJob)
	}
	if scheduledAt.IsZero() {
		return nil, fmt.Errorf("%w: scheduled time is required", ErrInvalidJob)
	}
	return &IngestionJob{
		JobID:       jobID,
		SourceID:    sourceID,
		Status:      JobPending,
		ScheduledAt: scheduledAt.UTC(),
	}, nil
}

func (j *IngestionJob) transitionTo(target JobStatus) error {
	if !j.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, j.Status, target)
	}
	j.Status = target
	j.Version++
	return nil
}

// Start moves the job to RUNNING and stamps the execution time.
func (j *IngestionJob) Start() error {
	if err := j.transitionTo(JobRunning); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.ExecutedAt = &now
	return nil
}

// Complete moves a running job to COMPLETED and stores its metrics.
func (j *IngestionJob) Complete(metrics JobMetrics) error {
	if err := j.transitionTo(JobCompleted); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.CompletedAt = &now
	j.Metrics = metrics
	return nil
}

// Fail moves the job to FAILED, appending the error record.
func (j *IngestionJob) Fail(record ErrorRecord) error {
	if err := j.transitionTo(JobFailed); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.CompletedAt = &now
	j.Errors = append(j.Errors, record)
	return nil
}

// Retry moves a failed job into RETRYING.
func (j *IngestionJob) Retry() error {
	if j.Status != JobFailed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, j.Status, JobRetrying)
	}
	return j.transitionTo(JobRetrying)
}

// AddError appends an error without changing status. It still bumps the
// version so concurrent writers are detected.
func (j *IngestionJob) AddError(record ErrorRecord) {
	j.Errors = append(j.Errors, record)
	j.Version++
}

// RetryCount sums the retry counters across all recorded errors.
func (j *IngestionJob) RetryCount() int {
	total := 0
	for _, rec := range j.Errors {
		total += rec.RetryCount
	}
	return total
}

// CanRetry reports whether another retry is permitted: fewer than five total
// retries, a FAILED or RETRYING status, and a retryable most-recent error.
func (j *IngestionJob) CanRetry() bool {
	if j.Status != JobFailed && j.Status != JobRetrying {
		return false
	}
	if j.RetryCount() >= maxRetries {
		return false
	}
	if len(j.Errors) == 0 {
		return false
	}
	return j.Errors[len(j.Errors)-1].IsRetryable()
}

// IsOverdue reports whether a pending job has slipped past its schedule.
func (j *IngestionJob) IsOverdue() bool {
	return j.Status == JobPending && j.ScheduledAt.Before(time.Now().UTC())
}

// Duration returns the elapsed execution time. The second return is false
// until the job has started; a running job reports time elapsed so far.
func (j *IngestionJob) Duration() (time.Duration, bool) {
	if j.ExecutedAt == nil {
		return 0, false
	}
	end := time.Now().UTC()
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	return end.Sub(*j.ExecutedAt), true
}
