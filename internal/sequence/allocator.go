// Package sequence issues monotonically increasing, gap-free sequence
// numbers per (organization, class, day).
package sequence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"signet/internal/domain"
	"signet/internal/port"
)

// DefaultCeiling is the highest value a counter may reach.
const DefaultCeiling int64 = 999_999_999

const dayFormat = "2006-01-02"

type key struct {
	org   string
	class domain.SequenceClass
	day   string
}

// counter owns its own lock so unrelated organizations and days never
// contend with each other.
type counter struct {
	mu        sync.Mutex
	current   int64
	ceiling   int64
	createdAt time.Time
	lastUsed  time.Time
}

// Allocator hands out sequence numbers from per-key counters. Counters are
// created lazily and, when a store is configured, hydrated from it first.
type Allocator struct {
	mu       sync.Mutex
	counters map[key]*counter
	ceiling  int64
	store    port.SequenceStore
	now      func() time.Time
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithCeiling overrides the default counter ceiling.
func WithCeiling(ceiling int64) Option {
	return func(a *Allocator) { a.ceiling = ceiling }
}

// WithStore attaches a durable backing store for hydration and
// write-through persistence.
func WithStore(store port.SequenceStore) Option {
	return func(a *Allocator) { a.store = store }
}

// NewAllocator creates an Allocator with the default ceiling.
func NewAllocator(opts ...Option) *Allocator {
	a := &Allocator{
		counters: make(map[key]*counter),
		ceiling:  DefaultCeiling,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Next returns the next sequence number for (org, class, day). A zero day
// means today. Fails with domain.ErrSequenceExhausted once the counter
// reaches its ceiling; it never wraps.
func (a *Allocator) Next(ctx context.Context, org string, class domain.SequenceClass, day time.Time) (int64, error) {
	c, k := a.counterFor(ctx, org, class, day)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current >= c.ceiling {
		return 0, fmt.Errorf("counter %s/%s/%s at ceiling %d: %w", k.org, k.class, k.day, c.ceiling, domain.ErrSequenceExhausted)
	}
	c.current++
	c.lastUsed = a.now().UTC()
	a.persist(ctx, k, c.current)
	return c.current, nil
}

// ReserveBlock atomically advances the counter by count and returns the
// contiguous range of reserved values in order. Fails with
// domain.ErrInsufficientCapacity when fewer than count values remain;
// on failure the counter is untouched.
func (a *Allocator) ReserveBlock(ctx context.Context, org string, class domain.SequenceClass, count int) ([]int64, error) {
	if count <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", count)
	}
	c, k := a.counterFor(ctx, org, class, time.Time{})
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ceiling-c.current < int64(count) {
		return nil, fmt.Errorf("counter %s/%s/%s has %d of %d values remaining: %w",
			k.org, k.class, k.day, c.ceiling-c.current, count, domain.ErrInsufficientCapacity)
	}
	block := make([]int64, count)
	for i := range block {
		c.current++
		block[i] = c.current
	}
	c.lastUsed = a.now().UTC()
	a.persist(ctx, k, c.current)
	return block, nil
}

// Status returns a read-only snapshot of the counter for (org, class, day)
// without mutating it. A counter that has never issued reports zero.
func (a *Allocator) Status(ctx context.Context, org string, class domain.SequenceClass, day time.Time) *domain.SequenceStatus {
	c, k := a.counterFor(ctx, org, class, day)
	c.mu.Lock()
	defer c.mu.Unlock()

	return &domain.SequenceStatus{
		Organization: k.org,
		Class:        k.class,
		Day:          k.day,
		Current:      c.current,
		Ceiling:      c.ceiling,
		Remaining:    c.ceiling - c.current,
		Utilization:  float64(c.current) / float64(c.ceiling) * 100,
	}
}

// counterFor returns the counter for the key, creating and hydrating it on
// first use. The allocator lock is held only for the map access, not for
// counter mutation.
func (a *Allocator) counterFor(ctx context.Context, org string, class domain.SequenceClass, day time.Time) (*counter, key) {
	if day.IsZero() {
		day = a.now()
	}
	k := key{org: org, class: class, day: day.UTC().Format(dayFormat)}

	a.mu.Lock()
	c, ok := a.counters[k]
	if !ok {
		c = &counter{ceiling: a.ceiling, createdAt: a.now().UTC()}
		if a.store != nil {
			if current, err := a.store.Load(ctx, k.org, string(k.class), k.day); err == nil {
				c.current = current
			} else if !errors.Is(err, domain.ErrNotFound) {
				log.Printf("sequence.Allocator: hydrate %s/%s/%s failed: %v", k.org, k.class, k.day, err)
			}
		}
		a.counters[k] = c
	}
	a.mu.Unlock()
	return c, k
}

// persist writes the counter value through to the store. Persistence is
// best-effort: the in-memory counter stays authoritative and a failed
// write must not fail the allocation.
func (a *Allocator) persist(ctx context.Context, k key, current int64) {
	if a.store == nil {
		return
	}
	if err := a.store.Save(ctx, k.org, string(k.class), k.day, current); err != nil {
		log.Printf("sequence.Allocator: persist %s/%s/%s=%d failed: %v", k.org, k.class, k.day, current, err)
	}
}
