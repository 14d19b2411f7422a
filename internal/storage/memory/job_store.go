package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/cryptoganster/cryptoingest/internal/domain"
	"github.com/cryptoganster/cryptoingest/internal/ingest"
)

// JobStore keeps ingestion jobs in memory with the same optimistic
// concurrency rules as the Postgres store.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string][]byte
	vers map[string]int64
}

// NewJobStore constructs an empty store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string][]byte),
		vers: make(map[string]int64),
	}
}

// Create stores a new job; the job ID must be unused.
func (s *JobStore) Create(_ context.Context, job *domain.IngestionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.JobID]; exists {
		return fmt.Errorf("job %s: %w", job.JobID, ingest.ErrJobExists)
	}
	return s.put(job)
}

// Get fetches a job by ID.
func (s *JobStore) Get(_ context.Context, jobID string) (*domain.IngestionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, ingest.ErrJobNotFound)
	}
	return decodeJob(raw)
}

// Save persists a mutated job. The write is rejected when expectedVersion
// no longer matches the stored version.
func (s *JobStore) Save(_ context.Context, job *domain.IngestionJob, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.JobID]; !ok {
		return fmt.Errorf("job %s: %w", job.JobID, ingest.ErrJobNotFound)
	}
	if s.vers[job.JobID] != expectedVersion {
		return fmt.Errorf("job %s: expected version %d, have %d: %w",
			job.JobID, expectedVersion, s.vers[job.JobID], ingest.ErrVersionConflict)
	}
	return s.put(job)
}

// List returns all jobs ordered by scheduled time.
func (s *JobStore) List(_ context.Context) ([]*domain.IngestionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.IngestionJob, 0, len(s.jobs))
	for _, raw := range s.jobs {
		job, err := decodeJob(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

// put snapshots the job so later mutations of the caller's aggregate do not
// leak into the store.
func (s *JobStore) put(job *domain.IngestionJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	s.jobs[job.JobID] = raw
	s.vers[job.JobID] = job.Version
	return nil
}

func decodeJob(raw []byte) (*domain.IngestionJob, error) {
	var job domain.IngestionJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}
