package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signet/internal/domain"
)

func invoice(number, customer string, amount float64) domain.InvoiceRecord {
	return domain.InvoiceRecord{
		"invoice_number": number,
		"customer_name":  customer,
		"total_amount":   amount,
		"invoice_date":   "2024-01-15",
		"currency":       "INR",
	}
}

func TestRegisterAndCheckExact(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	inv := invoice("INV-1", "Acme Corp", 50000)

	_, found := r.CheckExact(inv)
	assert.False(t, found)

	require.True(t, r.Register(ctx, "INV1-SIGNET01-20240115", inv, "org-a"))

	issued, found := r.CheckExact(inv)
	require.True(t, found)
	assert.Equal(t, "INV1-SIGNET01-20240115", issued)
}

func TestRegister_RejectsDuplicateContent(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	inv := invoice("INV-1", "Acme Corp", 50000)

	require.True(t, r.Register(ctx, "IRN-A-SIGNET01-20240115", inv, "org-a"))
	assert.False(t, r.Register(ctx, "IRN-B-SIGNET01-20240115", inv, "org-a"))
	assert.Equal(t, 1, r.Len())
}

func TestRegister_RejectsDuplicateIRN(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	require.True(t, r.Register(ctx, "X1-SIGNET01-20240115", invoice("INV-1", "Acme Corp", 100), "org-a"))
	assert.False(t, r.Register(ctx, "X1-SIGNET01-20240115", invoice("INV-2", "Other Corp", 200), "org-a"))
	assert.Equal(t, 1, r.Len())
}

func TestRegister_ConcurrentSameContent(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	inv := invoice("INV-RACE", "Acme Corp", 999)

	const racers = 20
	wins := make(chan bool, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			irnValue := fmt.Sprintf("RACE%d-SIGNET01-20240115", i)
			wins <- r.Register(ctx, irnValue, inv, "org-a")
		}(i)
	}
	wg.Wait()
	close(wins)

	succeeded := 0
	for won := range wins {
		if won {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, r.Len())
}

func TestLookup(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	inv := invoice("INV-1", "Acme Corp", 50000)
	require.True(t, r.Register(ctx, "INV1-SIGNET01-20240115", inv, "org-a"))

	rec, ok := r.Lookup("INV1-SIGNET01-20240115")
	require.True(t, ok)
	assert.Equal(t, "org-a", rec.Organization)
	assert.Equal(t, "acme corp", rec.Summary.CustomerName)

	_, ok = r.Lookup("UNKNOWN-SIGNET01-20240115")
	assert.False(t, ok)
}

func TestFindSimilar(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	require.True(t, r.Register(ctx, "A1-SIGNET01-20240115", invoice("INV-1", "Acme Corporation Ltd", 50000), "org-a"))
	require.True(t, r.Register(ctx, "B1-SIGNET01-20240115", invoice("INV-9", "Completely Different Buyer", 12), "org-a"))
	require.True(t, r.Register(ctx, "C1-SIGNET01-20240115", invoice("INV-2", "Acme Corporation Ltd", 50000), "org-b"))

	// Near-identical: same customer, same amount, different number.
	probe := invoice("INV-1A", "Acme Corporation Ltd", 50000)

	matches := r.FindSimilar(probe, "org-a", 0.5)
	require.Len(t, matches, 1, "matches must stay org-scoped")
	assert.Equal(t, "A1-SIGNET01-20240115", matches[0].IRNValue)
	assert.Greater(t, matches[0].Score, 0.5)

	// Nothing in org-a resembles this.
	none := r.FindSimilar(invoice("ZZZ", "Unrelated Entity", 7), "org-a", 0.8)
	assert.Empty(t, none)
}

func TestFindSimilar_SortedByScore(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	require.True(t, r.Register(ctx, "A1-SIGNET01-20240115", invoice("INV-1", "Acme Corporation Ltd", 50000), "org-a"))
	require.True(t, r.Register(ctx, "B1-SIGNET01-20240115", invoice("INV-2", "Acme Corporation", 48000), "org-a"))

	matches := r.FindSimilar(invoice("INV-1", "Acme Corporation Ltd", 50000), "org-a", 0.3)
	require.GreaterOrEqual(t, len(matches), 2)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestEviction(t *testing.T) {
	r := NewRegistry(WithCapacity(10))
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		inv := invoice(fmt.Sprintf("INV-%d", i), fmt.Sprintf("Customer %d", i), float64(i*100))
		require.True(t, r.Register(ctx, fmt.Sprintf("E%d-SIGNET01-20240115", i), inv, "org-a"))
	}

	// Crossing capacity evicts the oldest tenth.
	assert.Equal(t, 10, r.Len())
	_, ok := r.Lookup("E0-SIGNET01-20240115")
	assert.False(t, ok, "oldest record should be evicted")
	_, ok = r.Lookup("E10-SIGNET01-20240115")
	assert.True(t, ok)
}

type fakeDupStore struct {
	mu      sync.Mutex
	records []domain.DuplicateRecord
}

func (f *fakeDupStore) Append(_ context.Context, rec *domain.DuplicateRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeDupStore) LoadAll(_ context.Context) ([]domain.DuplicateRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.DuplicateRecord(nil), f.records...), nil
}

func TestStore_WriteThroughAndHydrate(t *testing.T) {
	store := &fakeDupStore{}
	ctx := context.Background()

	r := NewRegistry(WithStore(store))
	inv := invoice("INV-1", "Acme Corp", 50000)
	require.True(t, r.Register(ctx, "H1-SIGNET01-20240115", inv, "org-a"))

	store.mu.Lock()
	require.Len(t, store.records, 1)
	store.mu.Unlock()

	// A fresh registry hydrated from the same store rejects the replay.
	fresh := NewRegistry(WithStore(store))
	n, err := fresh.Hydrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	issued, found := fresh.CheckExact(inv)
	require.True(t, found)
	assert.Equal(t, "H1-SIGNET01-20240115", issued)
}

func TestSimilarity_Weights(t *testing.T) {
	a := summarize(invoice("INV-1", "Acme Corp", 50000))
	identical := summarize(invoice("INV-1", "Acme Corp", 50000))
	assert.InDelta(t, 1.0, similarity(a, identical), 0.001)

	unrelated := summarize(domain.InvoiceRecord{
		"invoice_number": "X-99",
		"customer_name":  "Zenith Trading",
		"total_amount":   3.50,
		"invoice_date":   "2020-06-30",
		"currency":       "USD",
	})
	assert.Less(t, similarity(a, unrelated), 0.3)
}
