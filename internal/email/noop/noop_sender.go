package noop

import (
	"context"
	"log"

	"signet/internal/domain"
	"signet/internal/port"
)

type noopSender struct{}

// NewNoopSender creates a no-op AlertSender that logs alerts to stdout.
func NewNoopSender() port.AlertSender {
	return &noopSender{}
}

func (s *noopSender) SendCapacityAlert(_ context.Context, org string, status *domain.SequenceStatus) error {
	log.Printf("[NOOP ALERT] capacity alert for %s: %d/%d used on %s", org, status.Current, status.Ceiling, status.Day)
	return nil
}

func (s *noopSender) SendJobCompleted(_ context.Context, job *domain.BulkJob) error {
	log.Printf("[NOOP ALERT] bulk job %s completed: %d ok, %d failed of %d", job.ID, job.Succeeded, job.Failed, job.Total)
	return nil
}
