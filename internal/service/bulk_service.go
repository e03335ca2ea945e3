package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"signet/internal/domain"
	"signet/internal/port"
	"signet/internal/sequence"
)

// BulkConfig holds bulk processing settings.
type BulkConfig struct {
	MaxBatchSize    int
	Retention       time.Duration
	CleanupInterval time.Duration
}

// BulkService runs batch issuance jobs through the
// Pending → InProgress → {Completed, Failed, Cancelled} state machine.
type BulkService struct {
	issuance  *IssuanceService
	allocator *sequence.Allocator
	alerts    port.AlertSender
	cfg       BulkConfig

	mu   sync.Mutex
	jobs map[string]*domain.BulkJob

	now func() time.Time
}

// NewBulkService creates a BulkService. alerts may be nil.
func NewBulkService(issuance *IssuanceService, allocator *sequence.Allocator, alerts port.AlertSender, cfg BulkConfig) *BulkService {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1000
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	return &BulkService{
		issuance:  issuance,
		allocator: allocator,
		alerts:    alerts,
		cfg:       cfg,
		jobs:      make(map[string]*domain.BulkJob),
		now:       time.Now,
	}
}

// Submit validates the batch, reserves a contiguous sequence block sized
// to it, and processes every invoice in order. One invoice's failure never
// aborts its siblings; only infrastructure-level errors (capacity, key
// loading) mark the whole job Failed. The returned job is a snapshot.
func (b *BulkService) Submit(ctx context.Context, invoices []domain.InvoiceRecord, org, jobID string, level domain.ValidationLevel, format domain.QRFormat) (*domain.BulkJob, error) {
	if len(invoices) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	if len(invoices) > b.cfg.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d invoices, maximum %d", domain.ErrBatchTooLarge, len(invoices), b.cfg.MaxBatchSize)
	}
	if jobID == "" {
		jobID = uuid.New().String()
	}

	job := &domain.BulkJob{
		ID:           jobID,
		Organization: org,
		Status:       domain.JobStatusPending,
		Total:        len(invoices),
		Items:        make([]domain.BulkItemResult, 0, len(invoices)),
		CreatedAt:    b.now().UTC(),
	}

	b.mu.Lock()
	if _, exists := b.jobs[jobID]; exists {
		b.mu.Unlock()
		return nil, fmt.Errorf("bulk job %s already exists", jobID)
	}
	b.jobs[jobID] = job
	b.mu.Unlock()

	// Reserve the whole block up front so concurrent jobs for the same
	// organization can never interleave sequence numbers.
	block, err := b.allocator.ReserveBlock(ctx, org, domain.SequenceClassIRN, len(invoices))
	if err != nil {
		b.failJob(job, fmt.Sprintf("sequence reservation: %v", err))
		if errors.Is(err, domain.ErrInsufficientCapacity) || errors.Is(err, domain.ErrSequenceExhausted) {
			b.sendCapacityAlert(ctx, org)
		}
		return nil, err
	}

	b.transition(job, domain.JobStatusInProgress)
	log.Printf("bulkService: job %s started (%d invoices, org=%s, level=%s)", jobID, len(invoices), org, level)

	for i, inv := range invoices {
		if b.currentStatus(job) == domain.JobStatusCancelled {
			log.Printf("bulkService: job %s cancelled after %d items", jobID, i)
			return b.Status(jobID)
		}

		item := domain.BulkItemResult{Index: i}
		result, err := b.issuance.issueAllocated(ctx, inv, org, block[i], level, format)
		switch {
		case err == nil:
			item.Success = true
			item.Result = result
		case errors.Is(err, domain.ErrSigningKeyUnavailable):
			// Infrastructure failure: the rest of the batch would fail
			// identically, so abort.
			item.Error = err.Error()
			b.appendItem(job, item, false)
			b.failJob(job, fmt.Sprintf("item %d: %v", i, err))
			return b.Status(jobID)
		default:
			item.Error = err.Error()
		}
		b.appendItem(job, item, item.Success)
	}

	b.complete(ctx, job)
	return b.Status(jobID)
}

// Status returns a snapshot of a job.
func (b *BulkService) Status(jobID string) (*domain.BulkJob, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job.Clone(), nil
}

// Cancel marks a Pending or InProgress job Cancelled. Sequence numbers
// already reserved are consumed, not returned, so cancellation can never
// reintroduce collision risk.
func (b *BulkService) Cancel(jobID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.jobs[jobID]
	if !ok {
		return false, domain.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return false, domain.ErrJobNotCancellable
	}
	job.Status = domain.JobStatusCancelled
	completed := b.now().UTC()
	job.CompletedAt = &completed
	log.Printf("bulkService: job %s cancelled", jobID)
	return true, nil
}

// Cleanup removes terminal jobs older than maxAge and returns how many
// were dropped.
func (b *BulkService) Cleanup(maxAge time.Duration) int {
	cutoff := b.now().UTC().Add(-maxAge)
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for id, job := range b.jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(b.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("bulkService: cleaned up %d terminal jobs older than %s", removed, maxAge)
	}
	return removed
}

// StartCleanupLoop periodically evicts terminal jobs past retention until
// ctx is cancelled.
func (b *BulkService) StartCleanupLoop(ctx context.Context) {
	interval := b.cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("bulkService: cleanup loop started (interval=%s, retention=%s)", interval, b.cfg.Retention)
	for {
		select {
		case <-ctx.Done():
			log.Printf("bulkService: cleanup loop stopped")
			return
		case <-ticker.C:
			b.Cleanup(b.cfg.Retention)
		}
	}
}

func (b *BulkService) currentStatus(job *domain.BulkJob) domain.JobStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return job.Status
}

func (b *BulkService) transition(job *domain.BulkJob, status domain.JobStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if job.Status.Terminal() {
		return
	}
	job.Status = status
	if status == domain.JobStatusInProgress && job.StartedAt == nil {
		started := b.now().UTC()
		job.StartedAt = &started
	}
}

func (b *BulkService) appendItem(job *domain.BulkJob, item domain.BulkItemResult, succeeded bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	job.Items = append(job.Items, item)
	job.Processed++
	if succeeded {
		job.Succeeded++
	} else {
		job.Failed++
	}
	if item.Result != nil {
		for _, fb := range item.Result.Fallbacks {
			job.Warnings = append(job.Warnings, fmt.Sprintf("item %d: %s", item.Index, fb))
		}
	}
}

func (b *BulkService) failJob(job *domain.BulkJob, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if job.Status.Terminal() {
		return
	}
	job.Status = domain.JobStatusFailed
	job.Errors = append(job.Errors, reason)
	completed := b.now().UTC()
	job.CompletedAt = &completed
	log.Printf("bulkService: job %s failed: %s", job.ID, reason)
}

// complete transitions the job to Completed even when some items failed,
// since per-item failures are part of the result, not the job's fate.
func (b *BulkService) complete(ctx context.Context, job *domain.BulkJob) {
	b.mu.Lock()
	if job.Status.Terminal() {
		b.mu.Unlock()
		return
	}
	job.Status = domain.JobStatusCompleted
	completed := b.now().UTC()
	job.CompletedAt = &completed
	snapshot := job.Clone()
	b.mu.Unlock()

	log.Printf("bulkService: job %s completed (%d ok, %d failed)", job.ID, snapshot.Succeeded, snapshot.Failed)
	if b.alerts != nil {
		if err := b.alerts.SendJobCompleted(ctx, snapshot); err != nil {
			log.Printf("bulkService: job completion alert failed: %v", err)
		}
	}
}

func (b *BulkService) sendCapacityAlert(ctx context.Context, org string) {
	if b.alerts == nil {
		return
	}
	status := b.issuance.SequenceStatus(ctx, org, time.Time{})
	if err := b.alerts.SendCapacityAlert(ctx, org, status); err != nil {
		log.Printf("bulkService: capacity alert failed: %v", err)
	}
}
