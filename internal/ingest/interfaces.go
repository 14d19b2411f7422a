package ingest

import (
	"context"
	"time"

	"github.com/cryptoganster/cryptoingest/internal/domain"
)

// Hasher computes digests for deduplication. The pipeline never implements
// the digest itself.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces content, job, and error IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// ContentReader is the read side of the content store. FindByHash is the
// authoritative duplicate lookup; it returns nil when no item has the hash.
type ContentReader interface {
	FindByHash(ctx context.Context, hash domain.ContentHash) (*domain.ContentItem, error)
}

// ContentWriter is the write side of the content store.
type ContentWriter interface {
	Save(ctx context.Context, item *domain.ContentItem) error
}

// JobRepository persists ingestion jobs with optimistic concurrency: Save
// must reject a write whose expected version does not match the stored one.
type JobRepository interface {
	Create(ctx context.Context, job *domain.IngestionJob) error
	Get(ctx context.Context, jobID string) (*domain.IngestionJob, error)
	Save(ctx context.Context, job *domain.IngestionJob, expectedVersion int64) error
	List(ctx context.Context) ([]*domain.IngestionJob, error)
}

// Publisher pushes pipeline events to Pub/Sub, Kafka, or similar.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for collected content facts.
type Queue interface {
	Enqueue(ctx context.Context, fact ContentCollected) error
	Dequeue(ctx context.Context) (ContentCollected, error)
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}
