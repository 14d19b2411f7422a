package dedup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cryptoganster/cryptoingest/internal/hash/sha256"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(sha256.New(), NewMemoryCache(),
		fixedClock{now: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)})
}

func TestComputeHashDeterministic(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	a, err := svc.ComputeHash("bitcoin content")
	require.NoError(t, err)
	b, err := svc.ComputeHash("bitcoin content")
	require.NoError(t, err)
	require.True(t, a.Equal(b))

	c, err := svc.ComputeHash("different content")
	require.NoError(t, err)
	require.False(t, a.Equal(c))
}

func TestRecordHashDuplicateLog(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	hash, err := svc.ComputeHash("some article body")
	require.NoError(t, err)

	dup, err := svc.IsDuplicate(ctx, hash)
	require.NoError(t, err)
	require.False(t, dup)

	// First recording is never a duplicate event.
	require.NoError(t, svc.RecordHash(ctx, hash))
	require.Empty(t, svc.DuplicateEvents())

	dup, err = svc.IsDuplicate(ctx, hash)
	require.NoError(t, err)
	require.True(t, dup)

	require.NoError(t, svc.RecordHash(ctx, hash))
	events := svc.DuplicateEvents()
	require.Len(t, events, 1)
	require.True(t, events[0].Hash.Equal(hash))
	require.Equal(t, time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC), events[0].DetectedAt)
}

func TestClearResetsEverything(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	hash, err := svc.ComputeHash("clear me")
	require.NoError(t, err)

	require.NoError(t, svc.RecordHash(ctx, hash))
	require.NoError(t, svc.RecordHash(ctx, hash))
	require.Len(t, svc.DuplicateEvents(), 1)

	require.NoError(t, svc.Clear(ctx))
	require.Empty(t, svc.DuplicateEvents())

	dup, err := svc.IsDuplicate(ctx, hash)
	require.NoError(t, err)
	require.False(t, dup)
}

func TestServiceConcurrentRecording(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	hash, err := svc.ComputeHash("contended hash")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.RecordHash(ctx, hash)
		}()
	}
	wg.Wait()

	// Exactly one of the sixteen recordings was first.
	require.Len(t, svc.DuplicateEvents(), 15)
}
