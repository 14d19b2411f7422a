package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidContentItem is returned when construction invariants fail.
var ErrInvalidContentItem = errors.New("invalid content item")

const minNormalizedLength = 10

// ContentItem is the aggregate persisted for every accepted piece of content.
// It is created once by the pipeline after validation and deduplication, and
// is immutable afterwards except for asset-tag additions and removals. A
// single writer owns each content ID.
type ContentItem struct {
	ContentID         string
	SourceID          string
	Hash              ContentHash
	RawContent        string
	NormalizedContent string
	Metadata          ContentMetadata
	CollectedAt       time.Time

	tags map[string]AssetTag
}

// NewContentItemParams carries everything needed to build a ContentItem.
type NewContentItemParams struct {
	ContentID         string
	SourceID          string
	Hash              ContentHash
	RawContent        string
	NormalizedContent string
	Metadata          ContentMetadata
	AssetTags         []AssetTag
	CollectedAt       time.Time
}

// NewContentItem enforces the aggregate's construction invariants: non-blank
// IDs, normalized content of at least ten characters, a present hash, usable
// metadata, and a collection time that is not in the future.
func NewContentItem(p NewContentItemParams) (*ContentItem, error) {
	if strings.TrimSpace(p.ContentID) == "" {
		return nil, fmt.Errorf("%w: content id is blank", ErrInvalidContentItem)
	}
	if strings.TrimSpace(p.SourceID) == "" {
		return nil, fmt.Errorf("%w: source id is blank", ErrInvalidContentItem)
	}
	if p.Hash.IsZero() {
		return nil, fmt.Errorf("%w: content hash is missing", ErrInvalidContentItem)
	}
	if len(strings.TrimSpace(p.NormalizedContent)) < minNormalizedLength {
		return nil, fmt.Errorf("%w: normalized content shorter than %d characters",
			ErrInvalidContentItem, minNormalizedLength)
	}
	if err := p.Metadata.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContentItem, err)
	}
	if !p.Metadata.HasRequiredFields() {
		return nil, fmt.Errorf("%w: metadata needs a title or source url", ErrInvalidContentItem)
	}
	if p.CollectedAt.After(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: collected_at %v is in the future", ErrInvalidContentItem, p.CollectedAt)
	}

	item := &ContentItem{
		ContentID:         p.ContentID,
		SourceID:          p.SourceID,
		Hash:              p.Hash,
		RawContent:        p.RawContent,
		NormalizedContent: p.NormalizedContent,
		Metadata:          p.Metadata,
		CollectedAt:       p.CollectedAt.UTC(),
		tags:              make(map[string]AssetTag, len(p.AssetTags)),
	}
	for _, tag := range p.AssetTags {
		item.tags[tag.Symbol] = tag
	}
	return item, nil
}

// AddAssetTag records a tag keyed by symbol. Adding a symbol that is already
// present is a no-op; the method reports whether the tag was added.
func (c *ContentItem) AddAssetTag(tag AssetTag) bool {
	if _, exists := c.tags[tag.Symbol]; exists {
		return false
	}
	c.tags[tag.Symbol] = tag
	return true
}

// RemoveAssetTag drops the tag for a symbol, reporting whether it existed.
func (c *ContentItem) RemoveAssetTag(symbol string) bool {
	symbol = strings.ToUpper(symbol)
	if _, exists := c.tags[symbol]; !exists {
		return false
	}
	delete(c.tags, symbol)
	return true
}

// HasAssetTag reports whether a symbol is tagged.
func (c *ContentItem) HasAssetTag(symbol string) bool {
	_, ok := c.tags[strings.ToUpper(symbol)]
	return ok
}

// AssetTags returns the tags sorted by symbol.
func (c *ContentItem) AssetTags() []AssetTag {
	out := make([]AssetTag, 0, len(c.tags))
	for _, tag := range c.tags {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
