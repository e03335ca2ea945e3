package domain

import "fmt"

// ValidationLevel selects how strictly an issued IRN is checked.
type ValidationLevel string

const (
	ValidationBasic    ValidationLevel = "basic"
	ValidationStandard ValidationLevel = "standard"
	ValidationStrict   ValidationLevel = "strict"
)

// ParseValidationLevel converts a string to a ValidationLevel,
// defaulting to standard for an empty input.
func ParseValidationLevel(s string) (ValidationLevel, error) {
	switch ValidationLevel(s) {
	case ValidationBasic, ValidationStandard, ValidationStrict:
		return ValidationLevel(s), nil
	case "":
		return ValidationStandard, nil
	default:
		return "", fmt.Errorf("unknown validation level %q", s)
	}
}

// QRFormat selects the serialization of a QR payload.
type QRFormat string

const (
	QRFormatStructured QRFormat = "structured"
	QRFormatCompact    QRFormat = "compact"
	QRFormatURL        QRFormat = "url"
)

// ParseQRFormat converts a string to a QRFormat, defaulting to structured.
func ParseQRFormat(s string) (QRFormat, error) {
	switch QRFormat(s) {
	case QRFormatStructured, QRFormatCompact, QRFormatURL:
		return QRFormat(s), nil
	case "":
		return QRFormatStructured, nil
	default:
		return "", ErrUnknownQRFormat
	}
}

// JobStatus is the lifecycle state of a bulk issuance job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// PayloadKind distinguishes a recoverable encrypted QR payload from a
// digest-only proof of existence.
type PayloadKind string

const (
	PayloadRecoverable PayloadKind = "recoverable"
	PayloadDigestOnly  PayloadKind = "digest_only"
)

// SequenceClass namespaces counters within an organization and day.
type SequenceClass string

const (
	SequenceClassIRN SequenceClass = "irn"
)

// ClientRole defines what an API client may do.
type ClientRole string

const (
	RoleIssuer ClientRole = "issuer"
	RoleAdmin  ClientRole = "admin"
)
