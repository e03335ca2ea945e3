package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"signet/internal/domain"
	"signet/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondAccepted sends a 202 success response.
func RespondAccepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, APIResponse{Success: true, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials"
	case errors.Is(err, domain.ErrClientInactive):
		return http.StatusForbidden, "CLIENT_INACTIVE", "client is inactive"
	case errors.Is(err, domain.ErrSequenceExhausted):
		return http.StatusConflict, "SEQUENCE_EXHAUSTED", "daily sequence capacity exhausted for this organization"
	case errors.Is(err, domain.ErrInsufficientCapacity):
		return http.StatusConflict, "INSUFFICIENT_CAPACITY", "not enough sequence capacity left for this batch"
	case errors.Is(err, domain.ErrBatchTooLarge):
		return http.StatusBadRequest, "BATCH_TOO_LARGE", "batch exceeds the maximum allowed size"
	case errors.Is(err, domain.ErrEmptyBatch):
		return http.StatusBadRequest, "EMPTY_BATCH", "batch contains no invoices"
	case errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound, "JOB_NOT_FOUND", "bulk job not found"
	case errors.Is(err, domain.ErrJobNotCancellable):
		return http.StatusConflict, "JOB_NOT_CANCELLABLE", "bulk job is already in a terminal state"
	case errors.Is(err, domain.ErrJobNotCompleted):
		return http.StatusConflict, "JOB_NOT_COMPLETED", "bulk job has not completed yet"
	case errors.Is(err, domain.ErrDuplicateInvoice):
		return http.StatusConflict, "DUPLICATE_INVOICE", "invoice content has already been issued an IRN"
	case errors.Is(err, domain.ErrSigningKeyUnavailable):
		return http.StatusServiceUnavailable, "SIGNING_KEY_UNAVAILABLE", "QR signing key could not be loaded"
	case errors.Is(err, domain.ErrUnknownQRFormat):
		return http.StatusBadRequest, "UNKNOWN_QR_FORMAT", "unknown QR format; allowed: structured, compact, url"
	case errors.Is(err, domain.ErrMalformedQRPayload):
		return http.StatusBadRequest, "MALFORMED_QR_PAYLOAD", "QR payload could not be parsed"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// extractAuthContext extracts the organization from the request context.
// Returns false if auth context is missing (error response already written).
func extractAuthContext(c *gin.Context) (org string, ok bool) {
	org, err := middleware.GetOrganization(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing organization context")
		return "", false
	}
	return org, true
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		requestID, _ := c.Get("request_id")
		log.Printf("[%s] internal error: %v", requestID, err)
	}
	RespondError(c, status, code, msg)
}
