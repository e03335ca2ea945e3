package sequence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signet/internal/domain"
)

func TestNext_Monotonic(t *testing.T) {
	a := NewAllocator()
	ctx := context.Background()

	for want := int64(1); want <= 100; want++ {
		got, err := a.Next(ctx, "org-a", domain.SequenceClassIRN, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestNext_IndependentCounters(t *testing.T) {
	a := NewAllocator()
	ctx := context.Background()

	first, err := a.Next(ctx, "org-a", domain.SequenceClassIRN, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	other, err := a.Next(ctx, "org-b", domain.SequenceClassIRN, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	past, err := a.Next(ctx, "org-a", domain.SequenceClassIRN, yesterday)
	require.NoError(t, err)
	assert.Equal(t, int64(1), past)
}

func TestNext_Exhaustion(t *testing.T) {
	a := NewAllocator(WithCeiling(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := a.Next(ctx, "org-a", domain.SequenceClassIRN, time.Time{})
		require.NoError(t, err)
	}

	_, err := a.Next(ctx, "org-a", domain.SequenceClassIRN, time.Time{})
	require.ErrorIs(t, err, domain.ErrSequenceExhausted)

	// Exhaustion is sticky, never a wrap back to 1.
	_, err = a.Next(ctx, "org-a", domain.SequenceClassIRN, time.Time{})
	require.ErrorIs(t, err, domain.ErrSequenceExhausted)
}

func TestNext_Concurrent(t *testing.T) {
	a := NewAllocator()
	ctx := context.Background()

	const workers = 20
	const perWorker = 50

	var mu sync.Mutex
	seen := make(map[int64]bool, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				n, err := a.Next(ctx, "org-a", domain.SequenceClassIRN, time.Time{})
				assert.NoError(t, err)
				mu.Lock()
				assert.False(t, seen[n], "sequence %d issued twice", n)
				seen[n] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	status := a.Status(ctx, "org-a", domain.SequenceClassIRN, time.Time{})
	assert.Equal(t, int64(workers*perWorker), status.Current)
}

func TestReserveBlock_Contiguous(t *testing.T) {
	a := NewAllocator()
	ctx := context.Background()

	block, err := a.ReserveBlock(ctx, "org-a", domain.SequenceClassIRN, 10)
	require.NoError(t, err)
	require.Len(t, block, 10)
	for i, n := range block {
		assert.Equal(t, int64(i+1), n)
	}

	// The next block starts right after the first.
	next, err := a.ReserveBlock(ctx, "org-a", domain.SequenceClassIRN, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(11), next[0])
	assert.Equal(t, int64(15), next[4])
}

func TestReserveBlock_InsufficientCapacity(t *testing.T) {
	a := NewAllocator(WithCeiling(10))
	ctx := context.Background()

	_, err := a.ReserveBlock(ctx, "org-a", domain.SequenceClassIRN, 11)
	require.ErrorIs(t, err, domain.ErrInsufficientCapacity)

	// Failed reservation leaves the counter untouched.
	n, err := a.Next(ctx, "org-a", domain.SequenceClassIRN, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestReserveBlock_InvalidCount(t *testing.T) {
	a := NewAllocator()
	_, err := a.ReserveBlock(context.Background(), "org-a", domain.SequenceClassIRN, 0)
	require.Error(t, err)
}

func TestStatus_DoesNotAllocate(t *testing.T) {
	a := NewAllocator(WithCeiling(100))
	ctx := context.Background()

	status := a.Status(ctx, "org-a", domain.SequenceClassIRN, time.Time{})
	assert.Equal(t, int64(0), status.Current)
	assert.Equal(t, int64(100), status.Remaining)

	_, err := a.Next(ctx, "org-a", domain.SequenceClassIRN, time.Time{})
	require.NoError(t, err)

	status = a.Status(ctx, "org-a", domain.SequenceClassIRN, time.Time{})
	assert.Equal(t, int64(1), status.Current)
	assert.Equal(t, int64(99), status.Remaining)
	assert.InDelta(t, 1.0, status.Utilization, 0.001)
}

type fakeStore struct {
	mu    sync.Mutex
	saved map[string]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string]int64)}
}

func (f *fakeStore) Load(_ context.Context, org, class, day string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.saved[org+"/"+class+"/"+day]; ok {
		return v, nil
	}
	return 0, domain.ErrNotFound
}

func (f *fakeStore) Save(_ context.Context, org, class, day string, current int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[org+"/"+class+"/"+day] = current
	return nil
}

func TestStore_HydrationAndWriteThrough(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	day := time.Now().UTC().Format("2006-01-02")
	store.saved["org-a/irn/"+day] = 42

	a := NewAllocator(WithStore(store))

	n, err := a.Next(ctx, "org-a", domain.SequenceClassIRN, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(43), n)

	store.mu.Lock()
	assert.Equal(t, int64(43), store.saved["org-a/irn/"+day])
	store.mu.Unlock()
}
