package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"signet/internal/domain"
	"signet/internal/service"
)

// IssuanceHandler handles single-invoice issuance and sequence
// introspection endpoints.
type IssuanceHandler struct {
	issuance *service.IssuanceService
}

// NewIssuanceHandler creates a new IssuanceHandler.
func NewIssuanceHandler(issuance *service.IssuanceService) *IssuanceHandler {
	return &IssuanceHandler{issuance: issuance}
}

// IssueInput is the DTO for issuance requests.
type IssueInput struct {
	Invoice         domain.InvoiceRecord `json:"invoice" binding:"required"`
	ValidationLevel string               `json:"validation_level"`
	QRFormat        string               `json:"qr_format"`
}

// Issue handles POST /api/v1/issue
func (h *IssuanceHandler) Issue(c *gin.Context) {
	org, ok := extractAuthContext(c)
	if !ok {
		return
	}

	var input IssueInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	level, err := domain.ParseValidationLevel(input.ValidationLevel)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	format, err := domain.ParseQRFormat(input.QRFormat)
	if err != nil {
		HandleError(c, err)
		return
	}

	result, err := h.issuance.Issue(c.Request.Context(), input.Invoice, org, level, format)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, result)
}

// SequenceStatus handles GET /api/v1/sequences/status?day=YYYY-MM-DD
func (h *IssuanceHandler) SequenceStatus(c *gin.Context) {
	org, ok := extractAuthContext(c)
	if !ok {
		return
	}

	var day time.Time
	if q := c.Query("day"); q != "" {
		parsed, err := time.Parse("2006-01-02", q)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "day must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	RespondOK(c, h.issuance.SequenceStatus(c.Request.Context(), org, day))
}
