package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"signet/internal/domain"
	"signet/internal/export"
	"signet/internal/service"
)

// BulkHandler handles bulk issuance job endpoints.
type BulkHandler struct {
	bulk *service.BulkService
}

// NewBulkHandler creates a new BulkHandler.
func NewBulkHandler(bulk *service.BulkService) *BulkHandler {
	return &BulkHandler{bulk: bulk}
}

// BulkInput is the DTO for bulk submission requests.
type BulkInput struct {
	Invoices        []domain.InvoiceRecord `json:"invoices" binding:"required"`
	JobID           string                 `json:"job_id"`
	ValidationLevel string                 `json:"validation_level"`
	QRFormat        string                 `json:"qr_format"`
}

// Submit handles POST /api/v1/bulk
func (h *BulkHandler) Submit(c *gin.Context) {
	org, ok := extractAuthContext(c)
	if !ok {
		return
	}

	var input BulkInput
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

	job, err := h.bulk.Submit(c.Request.Context(), input.Invoices, org, input.JobID, level, format)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, job)
}

// Status handles GET /api/v1/bulk/:id
func (h *BulkHandler) Status(c *gin.Context) {
	org, ok := extractAuthContext(c)
	if !ok {
		return
	}

	job, err := h.bulk.Status(c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	if job.Organization != org {
		HandleError(c, domain.ErrJobNotFound)
		return
	}

	RespondOK(c, job)
}

// Cancel handles POST /api/v1/bulk/:id/cancel
func (h *BulkHandler) Cancel(c *gin.Context) {
	org, ok := extractAuthContext(c)
	if !ok {
		return
	}

	job, err := h.bulk.Status(c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	if job.Organization != org {
		HandleError(c, domain.ErrJobNotFound)
		return
	}

	if _, err := h.bulk.Cancel(c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}

	job, err = h.bulk.Status(c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, job)
}

// Export handles GET /api/v1/bulk/:id/export?format=csv|xlsx
func (h *BulkHandler) Export(c *gin.Context) {
	org, ok := extractAuthContext(c)
	if !ok {
		return
	}

	job, err := h.bulk.Status(c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	if job.Organization != org {
		HandleError(c, domain.ErrJobNotFound)
		return
	}
	if job.Status != domain.JobStatusCompleted {
		HandleError(c, domain.ErrJobNotCompleted)
		return
	}

	switch c.DefaultQuery("format", "csv") {
	case "csv":
		filename := export.BuildFilename(job.ID, "csv")
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Writer.WriteHeader(http.StatusOK)

		if _, err := c.Writer.Write(export.BOM); err != nil {
			return
		}
		w := export.NewWriter(c.Writer)
		if err := w.WriteHeader(); err != nil {
			return
		}
		if err := w.WriteJob(job); err != nil {
			return
		}
		w.Flush()

	case "xlsx":
		filename := export.BuildFilename(job.ID, "xlsx")
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Writer.WriteHeader(http.StatusOK)

		if err := export.WriteXLSX(c.Writer, job); err != nil {
			return
		}

	default:
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "format must be csv or xlsx")
	}
}
