package port

import "context"

// SequenceStore is the host-injected durable backing for sequence
// counters. The in-memory allocator remains authoritative at runtime;
// the store exists for hydration at startup and audit persistence.
type SequenceStore interface {
	// Load returns the persisted current value for a counter, or
	// domain.ErrNotFound when the counter has never been persisted.
	Load(ctx context.Context, org, class, day string) (int64, error)
	// Save upserts the counter's current value.
	Save(ctx context.Context, org, class, day string, current int64) error
}
