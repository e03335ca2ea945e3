package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// IssuedIRN is the identity produced for a single invoice.
type IssuedIRN struct {
	IRNValue         string    `json:"irn_value"`
	VerificationCode string    `json:"verification_code"`
	ContentHash      string    `json:"content_hash"`
	IssuedAt         time.Time `json:"issued_at"`
}

// SimilaritySummary is the compact projection of an invoice kept for
// approximate duplicate matching. It is never used for exact lookup.
type SimilaritySummary struct {
	CustomerName  string          `json:"customer_name" db:"customer_name"`
	Reference     string          `json:"reference" db:"reference"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Currency      string          `json:"currency" db:"currency"`
	LineItemCount int             `json:"line_item_count" db:"line_item_count"`
	InvoiceDate   string          `json:"invoice_date" db:"invoice_date"`
}

// DuplicateRecord maps one invoice content hash to the IRN it was issued.
type DuplicateRecord struct {
	ContentHash  string            `json:"content_hash" db:"content_hash"`
	IRNValue     string            `json:"irn_value" db:"irn_value"`
	Organization string            `json:"organization" db:"organization"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	Summary      SimilaritySummary `json:"summary"`
}

// SimilarMatch is one advisory near-duplicate hit.
type SimilarMatch struct {
	IRNValue string           `json:"irn_value"`
	Score    float64          `json:"score"`
	Record   *DuplicateRecord `json:"record"`
}

// SequenceStatus is a read-only snapshot of one counter.
type SequenceStatus struct {
	Organization string        `json:"organization"`
	Class        SequenceClass `json:"class"`
	Day          string        `json:"day"`
	Current      int64         `json:"current"`
	Ceiling      int64         `json:"ceiling"`
	Remaining    int64         `json:"remaining"`
	Utilization  float64       `json:"utilization_pct"`
}

// IRNMetadata is what the validator could extract from an IRN string.
type IRNMetadata struct {
	Prefix    string     `json:"prefix"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Suffix    string     `json:"suffix"`
}

// ValidationReport is the structured outcome of IRN validation. Any entry
// in Errors makes the IRN invalid; Warnings are advisory only.
type ValidationReport struct {
	IsValid  bool        `json:"is_valid"`
	Level    string      `json:"level"`
	Errors   []string    `json:"errors"`
	Warnings []string    `json:"warnings"`
	Metadata IRNMetadata `json:"metadata"`
}

// SignedQR is the signer's output. Kind tells the caller whether
// EncryptedPayload can be decrypted back into the envelope or only proves
// the envelope existed (digest-only fallback for oversized payloads).
type SignedQR struct {
	Format           QRFormat    `json:"qr_format"`
	QRString         string      `json:"qr_string"`
	EncryptedPayload []byte      `json:"encrypted_payload"`
	Kind             PayloadKind `json:"payload_kind"`
	Digest           string      `json:"payload_digest,omitempty"`
	KeyFingerprint   string      `json:"key_fingerprint"`
	SignedAt         time.Time   `json:"signed_at"`
}

// IssuanceResult mirrors the single-issuance output contract.
type IssuanceResult struct {
	IRN               *IssuedIRN       `json:"irn"`
	Sequence          int64            `json:"sequence"`
	Validation        ValidationReport `json:"validation"`
	QR                *SignedQR        `json:"qr,omitempty"`
	Fallbacks         []string         `json:"fallbacks,omitempty"`
	DuplicateWarnings []SimilarMatch   `json:"duplicate_warnings,omitempty"`
}

// BulkItemResult is the per-invoice slot in a bulk job.
type BulkItemResult struct {
	Index   int             `json:"index"`
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Result  *IssuanceResult `json:"result,omitempty"`
}

// BulkJob tracks one batch submission through its state machine.
type BulkJob struct {
	ID           string           `json:"id"`
	Organization string           `json:"organization"`
	Status       JobStatus        `json:"status"`
	Total        int              `json:"total"`
	Processed    int              `json:"processed"`
	Succeeded    int              `json:"succeeded"`
	Failed       int              `json:"failed"`
	Items        []BulkItemResult `json:"items"`
	Errors       []string         `json:"errors,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

// Clone returns a deep-enough copy safe to hand outside the processor's lock.
func (j *BulkJob) Clone() *BulkJob {
	cp := *j
	cp.Items = make([]BulkItemResult, len(j.Items))
	copy(cp.Items, j.Items)
	cp.Errors = append([]string(nil), j.Errors...)
	cp.Warnings = append([]string(nil), j.Warnings...)
	return &cp
}

// APIClient is a machine credential allowed to call the issuance API.
type APIClient struct {
	ID           string     `json:"id"`
	Organization string     `json:"organization"`
	SecretHash   string     `json:"-"`
	Role         ClientRole `json:"role"`
	IsActive     bool       `json:"is_active"`
}
