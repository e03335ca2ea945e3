package port

import (
	"context"

	"signet/internal/domain"
)

// AlertSender delivers operator notifications for capacity incidents and
// finished bulk jobs.
type AlertSender interface {
	SendCapacityAlert(ctx context.Context, org string, status *domain.SequenceStatus) error
	SendJobCompleted(ctx context.Context, job *domain.BulkJob) error
}
