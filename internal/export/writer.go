// Package export renders completed bulk job results as CSV or XLSX
// downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"signet/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the export header row (12 columns).
var columns = []string{
	"Index",
	"Status",
	"IRN",
	"Verification Code",
	"Sequence",
	"Issued At",
	"Valid",
	"Validation Errors",
	"Validation Warnings",
	"Payload Kind",
	"Key Fingerprint",
	"Error",
}

// Writer wraps csv.Writer for exporting bulk job items as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteJob converts a job's items to CSV rows and writes them.
func (w *Writer) WriteJob(job *domain.BulkJob) error {
	for i := range job.Items {
		if err := w.csv.Write(itemToRow(&job.Items[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// WriteXLSX renders the job as a single-sheet workbook.
func WriteXLSX(w io.Writer, job *domain.BulkJob) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for col, name := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("building header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("writing header cell: %w", err)
		}
	}

	for i := range job.Items {
		row := itemToRow(&job.Items[i])
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("building cell for item %d: %w", i, err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("writing cell for item %d: %w", i, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// itemToRow converts a single item to a 12-element string slice. Failed
// items keep their index and error while issuance columns stay empty.
func itemToRow(item *domain.BulkItemResult) []string {
	row := make([]string, len(columns))
	row[0] = strconv.Itoa(item.Index)
	row[1] = statusLabel(item.Success)
	row[11] = item.Error

	if item.Result == nil {
		return row
	}
	res := item.Result

	if res.IRN != nil {
		row[2] = res.IRN.IRNValue
		row[3] = res.IRN.VerificationCode
		row[5] = res.IRN.IssuedAt.Format(time.RFC3339)
	}
	row[4] = strconv.FormatInt(res.Sequence, 10)
	row[6] = formatBool(res.Validation.IsValid)
	row[7] = strings.Join(res.Validation.Errors, "; ")
	row[8] = strings.Join(res.Validation.Warnings, "; ")
	if res.QR != nil {
		row[9] = string(res.QR.Kind)
		row[10] = res.QR.KeyFingerprint
	}
	return row
}

func statusLabel(success bool) string {
	if success {
		return "succeeded"
	}
	return "failed"
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a job id for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: {sanitized_job_id}_{YYYY-MM-DD}.{ext}
func BuildFilename(jobID, ext string) string {
	sanitized := SanitizeFilename(jobID)
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_%s.%s", sanitized, date, ext)
}
