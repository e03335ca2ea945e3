package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"signet/internal/domain"
	"signet/internal/irn"
	"signet/internal/qr"
	"signet/internal/registry"
	"signet/internal/sequence"
	"signet/internal/validator"
)

// IssuanceService orchestrates single-invoice IRN issuance: duplicate
// pre-check, sequence allocation, generation, validation, registration,
// and QR signing.
type IssuanceService struct {
	generator *irn.Generator
	allocator *sequence.Allocator
	registry  *registry.Registry
	validator *validator.IRNValidator
	signer    *qr.Signer
	policies  map[string]*validator.OrgPolicy
	threshold float64
}

// NewIssuanceService wires the issuance pipeline. policies maps
// organization ids to their validation policies and may be nil.
func NewIssuanceService(
	generator *irn.Generator,
	allocator *sequence.Allocator,
	reg *registry.Registry,
	val *validator.IRNValidator,
	signer *qr.Signer,
	policies map[string]*validator.OrgPolicy,
	similarityThreshold float64,
) *IssuanceService {
	return &IssuanceService{
		generator: generator,
		allocator: allocator,
		registry:  reg,
		validator: val,
		signer:    signer,
		policies:  policies,
		threshold: similarityThreshold,
	}
}

// Issue processes one invoice end to end. Exact duplicates and capacity or
// signing failures return errors; validation failures come back inside the
// result so callers can inspect them.
func (s *IssuanceService) Issue(ctx context.Context, inv domain.InvoiceRecord, org string, level domain.ValidationLevel, format domain.QRFormat) (*domain.IssuanceResult, error) {
	if existing, found := s.registry.CheckExact(inv); found {
		return nil, fmt.Errorf("%w: already issued as %s", domain.ErrDuplicateInvoice, existing)
	}

	seq, err := s.allocator.Next(ctx, org, domain.SequenceClassIRN, time.Time{})
	if err != nil {
		return nil, err
	}

	return s.issueAllocated(ctx, inv, org, seq, level, format)
}

// issueAllocated runs the per-invoice pipeline for an already-reserved
// sequence number. Used directly by bulk processing, where the block is
// reserved up front.
func (s *IssuanceService) issueAllocated(ctx context.Context, inv domain.InvoiceRecord, org string, seq int64, level domain.ValidationLevel, format domain.QRFormat) (*domain.IssuanceResult, error) {
	issued, fallbacks := s.generator.Generate(inv)

	report := s.validator.Validate(validator.Input{
		IRNValue:         issued.IRNValue,
		VerificationCode: issued.VerificationCode,
		IssuedAt:         issued.IssuedAt,
		Policy:           s.policies[org],
	}, level)

	if !s.registry.Register(ctx, issued.IRNValue, inv, org) {
		// Lost the race to a concurrent registration of the same content.
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateInvoice, issued.IRNValue)
	}

	similar := s.registry.FindSimilar(inv, org, s.threshold)
	// The record just registered always matches itself perfectly.
	advisory := similar[:0]
	for _, m := range similar {
		if m.IRNValue != issued.IRNValue {
			advisory = append(advisory, m)
		}
	}

	signed, err := s.signer.Sign(ctx, issued.IRNValue, issued.VerificationCode, inv, format)
	if err != nil {
		return nil, err
	}

	if len(fallbacks) > 0 {
		log.Printf("issuanceService: %s issued with fallbacks: %v", issued.IRNValue, fallbacks)
	}

	return &domain.IssuanceResult{
		IRN:               issued,
		Sequence:          seq,
		Validation:        report,
		QR:                signed,
		Fallbacks:         fallbacks,
		DuplicateWarnings: advisory,
	}, nil
}

// SequenceStatus exposes allocator introspection for the API surface.
func (s *IssuanceService) SequenceStatus(ctx context.Context, org string, day time.Time) *domain.SequenceStatus {
	return s.allocator.Status(ctx, org, domain.SequenceClassIRN, day)
}
