// Package memory provides in-process stores for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/cryptoganster/cryptoingest/internal/domain"
)

// ContentStore keeps content items in maps keyed by ID and by hash. It
// implements both the read and write side of the content store.
type ContentStore struct {
	mu     sync.RWMutex
	byID   map[string]*domain.ContentItem
	byHash map[string]*domain.ContentItem
}

// NewContentStore constructs an empty store.
func NewContentStore() *ContentStore {
	return &ContentStore{
		byID:   make(map[string]*domain.ContentItem),
		byHash: make(map[string]*domain.ContentItem),
	}
}

// FindByHash returns the item with the given hash, or nil when absent.
func (s *ContentStore) FindByHash(_ context.Context, hash domain.ContentHash) (*domain.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byHash[hash.String()], nil
}

// Save stores the item, indexed by content ID and hash.
func (s *ContentStore) Save(_ context.Context, item *domain.ContentItem) error {
	if item == nil {
		return fmt.Errorf("content item is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[item.ContentID] = item
	s.byHash[item.Hash.String()] = item
	return nil
}

// Get returns the item with the given content ID, or nil when absent.
func (s *ContentStore) Get(_ context.Context, contentID string) (*domain.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[contentID], nil
}

// Len reports the number of stored items.
func (s *ContentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
