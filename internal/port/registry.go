package port

import (
	"context"

	"signet/internal/domain"
)

// DuplicateStore is the host-injected durable backing for the duplicate
// registry, used to re-hydrate the in-memory index and to retain records
// beyond its bounded capacity.
type DuplicateStore interface {
	Append(ctx context.Context, rec *domain.DuplicateRecord) error
	LoadAll(ctx context.Context) ([]domain.DuplicateRecord, error)
}
