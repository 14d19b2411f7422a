// Package domain defines the value objects and aggregates of the content
// ingestion pipeline. Everything here validates itself at construction and is
// immutable afterwards, except where an aggregate method says otherwise.
package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidHashFormat is returned when a content hash string is not a
// 64-character lowercase hex digest.
var ErrInvalidHashFormat = errors.New("invalid content hash format")

const hashLength = 64

// ContentHash is a SHA-256 digest used as the stable identity of a piece of
// normalized content. Equality is value equality.
type ContentHash struct {
	value string
}

// NewContentHash validates and wraps a hex digest string.
func NewContentHash(s string) (ContentHash, error) {
	if len(s) != hashLength {
		return ContentHash{}, fmt.Errorf("%w: expected %d characters, got %d", ErrInvalidHashFormat, hashLength, len(s))
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return ContentHash{}, fmt.Errorf("%w: non-hex character %q", ErrInvalidHashFormat, c)
		}
	}
	return ContentHash{value: s}, nil
}

// String returns the hex digest.
func (h ContentHash) String() string {
	return h.value
}

// Equal reports whether two hashes carry the same digest.
func (h ContentHash) Equal(other ContentHash) bool {
	return h.value == other.value
}

// IsZero reports whether the hash was never constructed.
func (h ContentHash) IsZero() bool {
	return h.value == ""
}
