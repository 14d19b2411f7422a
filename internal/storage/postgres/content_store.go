// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cryptoganster/cryptoingest/internal/domain"
)

// Querier is the subset of pgxpool.Pool the stores use. Tests substitute a
// pgxmock pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// ContentStore persists content items. It implements both the read and the
// write side of the content store.
type ContentStore struct {
	pool Querier
}

// NewContentStore connects a pool with the given DSN.
func NewContentStore(ctx context.Context, dsn string) (*ContentStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ContentStore{pool: pool}, nil
}

// NewContentStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewContentStoreWithPool(pool Querier) *ContentStore {
	return &ContentStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *ContentStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// FindByHash is the authoritative duplicate lookup. It returns nil when no
// item carries the hash.
func (s *ContentStore) FindByHash(ctx context.Context, hash domain.ContentHash) (*domain.ContentItem, error) {
	query := `
SELECT content_id, source_id, content_hash, raw_content, normalized_content, metadata, asset_tags, collected_at
FROM content_items
WHERE content_hash = $1`

	var (
		contentID, sourceID, hashHex string
		rawContent, normalized       string
		metadataJSON, tagsJSON       []byte
		collectedAt                  time.Time
	)
	err := s.pool.QueryRow(ctx, query, hash.String()).Scan(
		&contentID, &sourceID, &hashHex, &rawContent, &normalized,
		&metadataJSON, &tagsJSON, &collectedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query content by hash: %w", err)
	}
	return buildItem(contentID, sourceID, hashHex, rawContent, normalized, metadataJSON, tagsJSON, collectedAt)
}

// Save inserts the item. Content IDs are unique; inserting the same ID
// twice is an error.
func (s *ContentStore) Save(ctx context.Context, item *domain.ContentItem) error {
	if item == nil {
		return fmt.Errorf("content item is nil")
	}
	metadataJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	tagsJSON, err := json.Marshal(item.AssetTags())
	if err != nil {
		return fmt.Errorf("marshal asset tags: %w", err)
	}

	query := `
INSERT INTO content_items (
	content_id,
	source_id,
	content_hash,
	raw_content,
	normalized_content,
	metadata,
	asset_tags,
	collected_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.pool.Exec(ctx, query,
		item.ContentID,
		item.SourceID,
		item.Hash.String(),
		item.RawContent,
		item.NormalizedContent,
		metadataJSON,
		tagsJSON,
		item.CollectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert content item: %w", err)
	}
	return nil
}

func buildItem(contentID, sourceID, hashHex, rawContent, normalized string, metadataJSON, tagsJSON []byte, collectedAt time.Time) (*domain.ContentItem, error) {
	hash, err := domain.NewContentHash(hashHex)
	if err != nil {
		return nil, fmt.Errorf("stored hash: %w", err)
	}
	var metadata domain.ContentMetadata
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	var tags []domain.AssetTag
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &tags); err != nil {
			return nil, fmt.Errorf("decode asset tags: %w", err)
		}
	}
	item, err := domain.NewContentItem(domain.NewContentItemParams{
		ContentID:         contentID,
		SourceID:          sourceID,
		Hash:              hash,
		RawContent:        rawContent,
		NormalizedContent: normalized,
		Metadata:          metadata,
		AssetTags:         tags,
		CollectedAt:       collectedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("rebuild content item %s: %w", contentID, err)
	}
	return item, nil
}
