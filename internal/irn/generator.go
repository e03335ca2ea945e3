// Package irn builds deterministic Invoice Reference Numbers and their
// verification codes from opaque invoice records.
package irn

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"signet/internal/domain"
)

const (
	// DefaultServiceID identifies this issuing service when neither the
	// configuration nor the invoice carries one.
	DefaultServiceID = "SIGNET01"

	maxReferenceLen     = 48
	serviceIDLen        = 8
	verificationCodeLen = 12
)

// referenceKeys, serviceIDKeys and dateKeys are the prioritized invoice
// fields consulted during resolution.
var (
	referenceKeys = []string{"irn_reference", "reference", "invoice_number", "document_number", "number"}
	serviceIDKeys = []string{"service_id", "supplier_service_id"}
	dateKeys      = []string{"invoice_date", "date", "document_date", "issue_date"}

	customerKeys = []string{"customer_id", "customer_gstin", "customer_tax_id", "customer_name", "customer"}
	numberKeys   = []string{"invoice_number", "reference", "document_number", "number"}
	amountKeys   = []string{"total_amount", "amount", "total", "grand_total"}

	irnPattern      = regexp.MustCompile(`^[A-Z0-9]{1,48}-[A-Z0-9]{8}-\d{8}$`)
	nonAlphanumeric = regexp.MustCompile(`[^A-Z0-9]+`)
)

// Generator derives IRNs and verification codes. Safe for concurrent use.
type Generator struct {
	secret    []byte
	serviceID string
	now       func() time.Time
}

// NewGenerator creates a Generator with the given HMAC secret and default
// service ID. An empty serviceID falls back to DefaultServiceID.
func NewGenerator(secret, serviceID string) *Generator {
	return &Generator{
		secret:    []byte(secret),
		serviceID: normalizeServiceID(serviceID),
		now:       time.Now,
	}
}

// Generate builds the IRN, verification code, and content hash for an
// invoice. It never fails: missing or malformed fields resolve to generated
// defaults, and every applied fallback is reported so the caller can
// surface data-quality warnings.
func (g *Generator) Generate(inv domain.InvoiceRecord) (*domain.IssuedIRN, []string) {
	var fallbacks []string

	ref := sanitizeReference(inv.FirstString(referenceKeys...))
	if ref == "" {
		ref = g.generatedReference()
		fallbacks = append(fallbacks, "reference: no usable invoice field, generated token")
	}

	serviceID := g.serviceID
	if s := inv.FirstString(serviceIDKeys...); s != "" {
		serviceID = normalizeServiceID(s)
	}

	day, ok := g.resolveDate(inv)
	if !ok {
		fallbacks = append(fallbacks, "invoice_date: unparseable or missing, using current date")
	}

	irnValue := fmt.Sprintf("%s-%s-%s", ref, serviceID, day.Format("20060102"))
	contentHash := InvoiceContentHash(inv)
	code := g.verificationCode(irnValue, contentHash)

	return &domain.IssuedIRN{
		IRNValue:         irnValue,
		VerificationCode: code,
		ContentHash:      contentHash,
		IssuedAt:         g.now().UTC(),
	}, fallbacks
}

// VerificationCodeMatches recomputes the HMAC code for an IRN and invoice
// and compares in constant time.
func (g *Generator) VerificationCodeMatches(irnValue, code string, inv domain.InvoiceRecord) bool {
	return g.CodeMatchesHash(irnValue, code, InvoiceContentHash(inv))
}

// CodeMatchesHash verifies a code against an already-computed content hash,
// for callers holding a registry record instead of the original invoice.
func (g *Generator) CodeMatchesHash(irnValue, code, contentHash string) bool {
	expected := g.verificationCode(irnValue, contentHash)
	return hmac.Equal([]byte(expected), []byte(code))
}

// ValidateFormat checks the three-segment
// {reference}-{service id}-{YYYYMMDD} structure.
func ValidateFormat(irnValue string) bool {
	return irnPattern.MatchString(irnValue)
}

// InvoiceContentHash hashes the fixed, ordered subset of semantically
// significant invoice fields: customer identifier, invoice number, total
// amount, invoice date. Volatile fields are deliberately excluded so
// logically identical resubmissions reproduce the same hash.
func InvoiceContentHash(inv domain.InvoiceRecord) string {
	amount := inv.FirstString(amountKeys...)
	if d, ok := inv.Decimal(firstPresent(inv, amountKeys)); ok {
		// Normalize so "50000", "50000.0" and 50000 hash identically.
		amount = d.String()
	}
	parts := []string{
		inv.FirstString(customerKeys...),
		inv.FirstString(numberKeys...),
		amount,
		inv.FirstString(dateKeys...),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func (g *Generator) verificationCode(irnValue, contentHash string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(irnValue))
	mac.Write([]byte(contentHash))
	code := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return code[:verificationCodeLen]
}

func (g *Generator) generatedReference() string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("INV%s%s", g.now().Format("20060102"), strings.ToUpper(hex.EncodeToString(buf)))
}

// resolveDate returns the invoice's effective date, or the current date
// (with ok=false) when no field parses.
func (g *Generator) resolveDate(inv domain.InvoiceRecord) (time.Time, bool) {
	for _, key := range dateKeys {
		if s := inv.String(key); s != "" {
			if t, err := parseDate(s); err == nil {
				return t, true
			}
		}
	}
	return g.now(), false
}

func sanitizeReference(s string) string {
	s = nonAlphanumeric.ReplaceAllString(strings.ToUpper(s), "")
	if len(s) > maxReferenceLen {
		s = s[:maxReferenceLen]
	}
	return s
}

func normalizeServiceID(s string) string {
	s = nonAlphanumeric.ReplaceAllString(strings.ToUpper(s), "")
	if s == "" {
		return DefaultServiceID
	}
	if len(s) > serviceIDLen {
		return s[:serviceIDLen]
	}
	return s + strings.Repeat("0", serviceIDLen-len(s))
}

func firstPresent(inv domain.InvoiceRecord, keys []string) string {
	for _, k := range keys {
		if _, ok := inv[k]; ok {
			return k
		}
	}
	return ""
}

// parseDate tries common date formats.
func parseDate(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02",
		"02-01-2006",
		"02/01/2006",
		"2006/01/02",
		"02 Jan 2006",
		"2 Jan 2006",
		"Jan 02, 2006",
		"January 02, 2006",
		"20060102",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date: %s", s)
}
