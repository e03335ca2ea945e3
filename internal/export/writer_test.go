package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"signet/internal/domain"
)

func sampleJob() *domain.BulkJob {
	issued := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	return &domain.BulkJob{
		ID:     "job-1",
		Status: domain.JobStatusCompleted,
		Total:  2,
		Items: []domain.BulkItemResult{
			{
				Index:   0,
				Success: true,
				Result: &domain.IssuanceResult{
					IRN: &domain.IssuedIRN{
						IRNValue:         "INV2024001-SIGNET01-20240115",
						VerificationCode: "abcDEF123_-X",
						IssuedAt:         issued,
					},
					Sequence: 7,
					Validation: domain.ValidationReport{
						IsValid:  true,
						Warnings: []string{"issued outside business hours"},
					},
					QR: &domain.SignedQR{
						Kind:           domain.PayloadRecoverable,
						KeyFingerprint: "ab12cd34",
					},
				},
			},
			{
				Index:   1,
				Success: false,
				Error:   "invoice content already registered",
			},
		},
	}
}

func TestWriter_CSV(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.WriteJob(sampleJob()))
	w.Flush()
	require.NoError(t, w.Error())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, columns, rows[0])

	ok := rows[1]
	assert.Equal(t, "0", ok[0])
	assert.Equal(t, "succeeded", ok[1])
	assert.Equal(t, "INV2024001-SIGNET01-20240115", ok[2])
	assert.Equal(t, "abcDEF123_-X", ok[3])
	assert.Equal(t, "7", ok[4])
	assert.Equal(t, "2024-01-15T10:30:00Z", ok[5])
	assert.Equal(t, "Yes", ok[6])
	assert.Equal(t, "issued outside business hours", ok[8])
	assert.Equal(t, "recoverable", ok[9])
	assert.Equal(t, "ab12cd34", ok[10])
	assert.Empty(t, ok[11])

	failed := rows[2]
	assert.Equal(t, "1", failed[0])
	assert.Equal(t, "failed", failed[1])
	assert.Empty(t, failed[2], "issuance columns stay empty on failure")
	assert.Empty(t, failed[4])
	assert.Equal(t, "invoice content already registered", failed[11])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleJob()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	header, err := f.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Index", header)

	irnCell, err := f.GetCellValue(sheet, "C2")
	require.NoError(t, err)
	assert.Equal(t, "INV2024001-SIGNET01-20240115", irnCell)

	errCell, err := f.GetCellValue(sheet, "L3")
	require.NoError(t, err)
	assert.Equal(t, "invoice content already registered", errCell)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean name untouched", "job-123_final", "job-123_final"},
		{"specials replaced", "job 123/export?.csv", "job_123_export_csv"},
		{"consecutive specials collapse", "a!!!b", "a_b"},
		{"edges trimmed", "__job__", "job"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}

	t.Run("long names truncated", func(t *testing.T) {
		long := SanitizeFilename(string(bytes.Repeat([]byte("a"), 150)))
		assert.Len(t, long, 100)
	})
}

func TestBuildFilename(t *testing.T) {
	name := BuildFilename("job/1", "csv")
	assert.Equal(t, fmt.Sprintf("job_1_%s.csv", time.Now().Format("2006-01-02")), name)
}
