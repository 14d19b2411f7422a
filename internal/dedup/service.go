package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cryptoganster/cryptoingest/internal/domain"
	"github.com/cryptoganster/cryptoingest/internal/ingest"
)

// DuplicateEvent records one duplicate sighting within this process's
// lifetime.
type DuplicateEvent struct {
	Hash       domain.ContentHash
	DetectedAt time.Time
}

// Service does hash bookkeeping for the pipeline. Membership answers come
// from the injected cache; the duplicate-event log is deliberately
// process-local. This is distinct from the authoritative durable lookup
// (the content read repository), which the pipeline consults first: the
// first time this process records a hash it is never logged as a duplicate,
// even when the durable store already had it.
type Service struct {
	hasher ingest.Hasher
	cache  Cache
	clock  ingest.Clock

	mu     sync.Mutex
	events []DuplicateEvent
}

// NewService wires the hashing abstraction, the seen-hash cache, and a clock.
func NewService(hasher ingest.Hasher, cache Cache, clock ingest.Clock) *Service {
	return &Service{hasher: hasher, cache: cache, clock: clock}
}

// ComputeHash digests content through the hashing abstraction and validates
// the result as a ContentHash.
func (s *Service) ComputeHash(content string) (domain.ContentHash, error) {
	digest, err := s.hasher.Hash([]byte(content))
	if err != nil {
		return domain.ContentHash{}, fmt.Errorf("hash content: %w", err)
	}
	hash, err := domain.NewContentHash(digest)
	if err != nil {
		return domain.ContentHash{}, fmt.Errorf("wrap digest: %w", err)
	}
	return hash, nil
}

// IsDuplicate reports whether this process has already recorded the hash.
func (s *Service) IsDuplicate(ctx context.Context, hash domain.ContentHash) (bool, error) {
	seen, err := s.cache.Contains(ctx, hash.String())
	if err != nil {
		return false, fmt.Errorf("cache lookup: %w", err)
	}
	return seen, nil
}

// RecordHash inserts the hash into the cache. When the hash was already
// present a duplicate event is appended to the process-local log; the first
// recording is never logged.
func (s *Service) RecordHash(ctx context.Context, hash domain.ContentHash) error {
	existed, err := s.cache.Add(ctx, hash.String())
	if err != nil {
		return fmt.Errorf("cache insert: %w", err)
	}
	if existed {
		s.mu.Lock()
		s.events = append(s.events, DuplicateEvent{Hash: hash, DetectedAt: s.clock.Now()})
		s.mu.Unlock()
	}
	return nil
}

// DuplicateEvents returns a copy of the duplicate log.
func (s *Service) DuplicateEvents() []DuplicateEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DuplicateEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Clear resets both the cache and the duplicate log.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
	return nil
}
