package domain

import "errors"

var (
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrClientInactive        = errors.New("client is inactive")
	ErrSequenceExhausted     = errors.New("sequence counter exhausted")
	ErrInsufficientCapacity  = errors.New("insufficient sequence capacity for block reservation")
	ErrBatchTooLarge         = errors.New("batch exceeds maximum allowed size")
	ErrEmptyBatch            = errors.New("batch contains no invoices")
	ErrJobNotFound           = errors.New("bulk job not found")
	ErrJobNotCancellable     = errors.New("bulk job is already terminal")
	ErrJobNotCompleted       = errors.New("bulk job has not completed")
	ErrDuplicateInvoice      = errors.New("invoice content already registered")
	ErrSigningKeyUnavailable = errors.New("no QR signing key could be loaded")
	ErrUnknownQRFormat       = errors.New("unknown QR serialization format")
	ErrMalformedQRPayload    = errors.New("malformed QR payload")
)
