package irn

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signet/internal/domain"
)

func TestGenerate_Deterministic(t *testing.T) {
	g := NewGenerator("test-secret", "SIGNET01")
	inv := domain.InvoiceRecord{
		"invoice_number": "INV-2024-001",
		"invoice_date":   "2024-01-15",
		"customer_name":  "Acme Corp",
		"total_amount":   50000.0,
	}

	first, fallbacks := g.Generate(inv)
	require.Empty(t, fallbacks)
	assert.Equal(t, "INV2024001-SIGNET01-20240115", first.IRNValue)
	assert.Len(t, first.VerificationCode, 12)
	assert.True(t, ValidateFormat(first.IRNValue))

	second, _ := g.Generate(inv)
	assert.Equal(t, first.IRNValue, second.IRNValue)
	assert.Equal(t, first.VerificationCode, second.VerificationCode)
}

func TestGenerate_SecretChangesCode(t *testing.T) {
	inv := domain.InvoiceRecord{
		"invoice_number": "INV-77",
		"invoice_date":   "2024-03-01",
	}

	a, _ := NewGenerator("secret-a", "").Generate(inv)
	b, _ := NewGenerator("secret-b", "").Generate(inv)

	assert.Equal(t, a.IRNValue, b.IRNValue)
	assert.NotEqual(t, a.VerificationCode, b.VerificationCode)
}

func TestGenerate_Fallbacks(t *testing.T) {
	g := NewGenerator("test-secret", "")

	t.Run("missing reference", func(t *testing.T) {
		issued, fallbacks := g.Generate(domain.InvoiceRecord{
			"invoice_date": "2024-01-15",
		})
		require.Len(t, fallbacks, 1)
		assert.Contains(t, fallbacks[0], "reference")
		assert.True(t, ValidateFormat(issued.IRNValue))
		assert.True(t, strings.HasPrefix(issued.IRNValue, "INV"))
	})

	t.Run("unparseable date", func(t *testing.T) {
		issued, fallbacks := g.Generate(domain.InvoiceRecord{
			"invoice_number": "INV-5",
			"invoice_date":   "not a date",
		})
		require.Len(t, fallbacks, 1)
		assert.Contains(t, fallbacks[0], "invoice_date")
		assert.True(t, ValidateFormat(issued.IRNValue))
	})

	t.Run("empty invoice still issues", func(t *testing.T) {
		issued, fallbacks := g.Generate(domain.InvoiceRecord{})
		assert.Len(t, fallbacks, 2)
		assert.True(t, ValidateFormat(issued.IRNValue))
		assert.Len(t, issued.VerificationCode, 12)
	})
}

func TestGenerate_ReferenceSanitization(t *testing.T) {
	g := NewGenerator("test-secret", "SIGNET01")

	issued, fallbacks := g.Generate(domain.InvoiceRecord{
		"invoice_number": "inv/2024#001 x",
		"invoice_date":   "2024-01-15",
	})
	require.Empty(t, fallbacks)
	assert.Equal(t, "INV2024001X-SIGNET01-20240115", issued.IRNValue)
}

func TestGenerate_ReferenceTruncation(t *testing.T) {
	g := NewGenerator("test-secret", "SIGNET01")

	issued, _ := g.Generate(domain.InvoiceRecord{
		"invoice_number": strings.Repeat("A", 60),
		"invoice_date":   "2024-01-15",
	})
	segments := strings.Split(issued.IRNValue, "-")
	require.Len(t, segments, 3)
	assert.Len(t, segments[0], 48)
	assert.True(t, ValidateFormat(issued.IRNValue))
}

func TestGenerate_ServiceIDNormalization(t *testing.T) {
	tests := []struct {
		name     string
		invoice  domain.InvoiceRecord
		expected string
	}{
		{
			name:     "invoice overrides default",
			invoice:  domain.InvoiceRecord{"invoice_number": "A1", "invoice_date": "2024-01-15", "service_id": "custom"},
			expected: "A1-CUSTOM00-20240115",
		},
		{
			name:     "long service id truncated",
			invoice:  domain.InvoiceRecord{"invoice_number": "A1", "invoice_date": "2024-01-15", "service_id": "VERYLONGSERVICE"},
			expected: "A1-VERYLONG-20240115",
		},
	}
	g := NewGenerator("test-secret", "SIGNET01")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issued, _ := g.Generate(tt.invoice)
			assert.Equal(t, tt.expected, issued.IRNValue)
		})
	}
}

func TestGenerate_DateFormats(t *testing.T) {
	g := NewGenerator("test-secret", "SIGNET01")
	for _, date := range []string{"2024-01-15", "15-01-2024", "15/01/2024", "15 Jan 2024", "20240115"} {
		issued, fallbacks := g.Generate(domain.InvoiceRecord{
			"invoice_number": "A1",
			"invoice_date":   date,
		})
		assert.Emptyf(t, fallbacks, "date %q should parse", date)
		assert.True(t, strings.HasSuffix(issued.IRNValue, "-20240115"), "date %q", date)
	}
}

func TestVerificationCodeMatches(t *testing.T) {
	g := NewGenerator("test-secret", "SIGNET01")
	inv := domain.InvoiceRecord{
		"invoice_number": "INV-9",
		"invoice_date":   "2024-06-01",
		"customer_name":  "Acme Corp",
	}
	issued, _ := g.Generate(inv)

	assert.True(t, g.VerificationCodeMatches(issued.IRNValue, issued.VerificationCode, inv))
	assert.False(t, g.VerificationCodeMatches(issued.IRNValue, "tampered-code", inv))

	altered := domain.InvoiceRecord{
		"invoice_number": "INV-9",
		"invoice_date":   "2024-06-01",
		"customer_name":  "Other Corp",
	}
	assert.False(t, g.VerificationCodeMatches(issued.IRNValue, issued.VerificationCode, altered))
}

func TestInvoiceContentHash_AmountNormalization(t *testing.T) {
	base := domain.InvoiceRecord{
		"customer_name":  "Acme Corp",
		"invoice_number": "INV-1",
		"invoice_date":   "2024-01-15",
		"total_amount":   50000.0,
	}
	asString := domain.InvoiceRecord{
		"customer_name":  "Acme Corp",
		"invoice_number": "INV-1",
		"invoice_date":   "2024-01-15",
		"total_amount":   "50000",
	}
	assert.Equal(t, InvoiceContentHash(base), InvoiceContentHash(asString))

	different := domain.InvoiceRecord{
		"customer_name":  "Acme Corp",
		"invoice_number": "INV-1",
		"invoice_date":   "2024-01-15",
		"total_amount":   50001.0,
	}
	assert.NotEqual(t, InvoiceContentHash(base), InvoiceContentHash(different))
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		irn   string
		valid bool
	}{
		{"INV2024001-SIGNET01-20240115", true},
		{"A-SIGNET01-20240115", true},
		{"", false},
		{"INV2024001-SIGNET01", false},
		{"inv2024001-SIGNET01-20240115", false},
		{"INV2024001-SHORT-20240115", false},
		{"INV2024001-SIGNET01-2024011", false},
		{"INV2024001-SIGNET01-20240115-EXTRA", false},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.valid, ValidateFormat(tt.irn), "irn %q", tt.irn)
	}
}
