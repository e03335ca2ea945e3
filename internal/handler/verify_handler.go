package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"signet/internal/domain"
	"signet/internal/irn"
	"signet/internal/registry"
	"signet/internal/validator"
)

// VerifyHandler serves the public verification target of the QR url
// format. It is deliberately unauthenticated: anyone scanning a QR code
// can check the IRN it points at.
type VerifyHandler struct {
	generator *irn.Generator
	registry  *registry.Registry
	validator *validator.IRNValidator
}

// NewVerifyHandler creates a new VerifyHandler.
func NewVerifyHandler(generator *irn.Generator, reg *registry.Registry, val *validator.IRNValidator) *VerifyHandler {
	return &VerifyHandler{generator: generator, registry: reg, validator: val}
}

// VerifyOutput is the verification response body.
type VerifyOutput struct {
	IRN           string                   `json:"irn"`
	FormatValid   bool                     `json:"format_valid"`
	Registered    bool                     `json:"registered"`
	CodeVerified  *bool                    `json:"code_verified,omitempty"`
	IssuedAt      string                   `json:"issued_at,omitempty"`
	Organization  string                   `json:"organization,omitempty"`
	Validation    *domain.ValidationReport `json:"validation,omitempty"`
}

// Verify handles GET /api/v1/verify?irn=...&code=...
func (h *VerifyHandler) Verify(c *gin.Context) {
	irnValue := c.Query("irn")
	if irnValue == "" {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "irn query parameter is required")
		return
	}
	code := c.Query("code")

	out := VerifyOutput{
		IRN:         irnValue,
		FormatValid: irn.ValidateFormat(irnValue),
	}

	rec, found := h.registry.Lookup(irnValue)
	out.Registered = found
	if found {
		out.Organization = rec.Organization
		out.IssuedAt = rec.CreatedAt.UTC().Format(time.RFC3339)
		if code != "" {
			verified := h.generator.CodeMatchesHash(irnValue, code, rec.ContentHash)
			out.CodeVerified = &verified
		}
	}

	level, err := domain.ParseValidationLevel(c.Query("level"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	report := h.validator.Validate(validator.Input{
		IRNValue:         irnValue,
		VerificationCode: code,
	}, level)
	out.Validation = &report

	RespondOK(c, out)
}
