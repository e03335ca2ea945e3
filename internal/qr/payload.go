// Package qr assembles, serializes, and encrypts the scannable
// proof-of-authenticity payload attached to every issued IRN.
package qr

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"signet/internal/domain"
)

// PayloadVersion is the current payload structure version.
const PayloadVersion = "1"

// compactChecksumLen is how much of the checksum the compact and url
// encodings retain.
const compactChecksumLen = 8

var (
	numberKeys   = []string{"invoice_number", "reference", "document_number", "number"}
	dateKeys     = []string{"invoice_date", "date", "document_date", "issue_date"}
	amountKeys   = []string{"total_amount", "amount", "total", "grand_total"}
	customerKeys = []string{"customer_name", "customer", "buyer_name"}
)

// InvoiceSummary carries only non-sensitive display fields.
type InvoiceSummary struct {
	Number       string `json:"number"`
	Date         string `json:"date"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	CustomerName string `json:"customer_name"`
}

// Payload is the versioned, checksummed QR data structure.
type Payload struct {
	Version          string         `json:"version"`
	IRN              string         `json:"irn"`
	VerificationCode string         `json:"verification_code"`
	Timestamp        string         `json:"timestamp"`
	Summary          InvoiceSummary `json:"invoice_summary"`
	Checksum         string         `json:"checksum"`
}

// Builder constructs and encodes payloads.
type Builder struct {
	verifyBaseURL string
	now           func() time.Time
}

// NewBuilder creates a Builder. verifyBaseURL is the endpoint the url
// encoding points scanners at.
func NewBuilder(verifyBaseURL string) *Builder {
	return &Builder{verifyBaseURL: verifyBaseURL, now: time.Now}
}

// Build assembles the payload for an issued IRN, checksummed for tamper
// detection independent of encryption.
func (b *Builder) Build(irnValue, verificationCode string, inv domain.InvoiceRecord) *Payload {
	amount := inv.FirstString(amountKeys...)
	for _, k := range amountKeys {
		if d, ok := inv.Decimal(k); ok {
			amount = d.String()
			break
		}
	}
	p := &Payload{
		Version:          PayloadVersion,
		IRN:              irnValue,
		VerificationCode: verificationCode,
		Timestamp:        b.now().UTC().Format(time.RFC3339),
		Summary: InvoiceSummary{
			Number:       inv.FirstString(numberKeys...),
			Date:         inv.FirstString(dateKeys...),
			Amount:       amount,
			Currency:     strings.ToUpper(inv.String("currency")),
			CustomerName: inv.FirstString(customerKeys...),
		},
	}
	p.Checksum = checksum(p)
	return p
}

// Validate recomputes the checksum over everything but the checksum field.
func Validate(p *Payload) bool {
	return p != nil && p.Checksum == checksum(p)
}

// Serialize encodes the payload in the requested format.
func (b *Builder) Serialize(p *Payload, format domain.QRFormat) (string, error) {
	switch format {
	case domain.QRFormatStructured:
		data, err := json.Marshal(p)
		if err != nil {
			return "", fmt.Errorf("marshaling payload: %w", err)
		}
		return string(data), nil
	case domain.QRFormatCompact:
		fields := []string{
			p.Version, p.IRN, p.VerificationCode, p.Timestamp,
			p.Summary.Number, p.Summary.Date, p.Summary.Amount,
			p.Summary.Currency, p.Summary.CustomerName,
			truncate(p.Checksum, compactChecksumLen),
		}
		for _, f := range fields[:9] {
			if strings.Contains(f, "|") {
				return "", fmt.Errorf("field %q contains the compact delimiter: %w", f, domain.ErrMalformedQRPayload)
			}
		}
		return strings.Join(fields, "|"), nil
	case domain.QRFormatURL:
		q := url.Values{}
		q.Set("irn", p.IRN)
		q.Set("code", p.VerificationCode)
		q.Set("cs", truncate(p.Checksum, compactChecksumLen))
		return b.verifyBaseURL + "?" + q.Encode(), nil
	default:
		return "", domain.ErrUnknownQRFormat
	}
}

// Parse is the inverse of Serialize. It returns an error, never a partial
// payload, on malformed input. The url format carries only the
// verification parameters, so the returned payload holds just those.
func (b *Builder) Parse(s string, format domain.QRFormat) (*Payload, error) {
	switch format {
	case domain.QRFormatStructured:
		var p Payload
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedQRPayload, err)
		}
		if p.Version == "" || p.IRN == "" {
			return nil, domain.ErrMalformedQRPayload
		}
		return &p, nil
	case domain.QRFormatCompact:
		fields := strings.Split(s, "|")
		if len(fields) != 10 {
			return nil, fmt.Errorf("%w: expected 10 fields, got %d", domain.ErrMalformedQRPayload, len(fields))
		}
		if fields[0] == "" || fields[1] == "" {
			return nil, domain.ErrMalformedQRPayload
		}
		return &Payload{
			Version:          fields[0],
			IRN:              fields[1],
			VerificationCode: fields[2],
			Timestamp:        fields[3],
			Summary: InvoiceSummary{
				Number:       fields[4],
				Date:         fields[5],
				Amount:       fields[6],
				Currency:     fields[7],
				CustomerName: fields[8],
			},
			Checksum: fields[9],
		}, nil
	case domain.QRFormatURL:
		u, err := url.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedQRPayload, err)
		}
		q := u.Query()
		if q.Get("irn") == "" {
			return nil, domain.ErrMalformedQRPayload
		}
		return &Payload{
			Version:          PayloadVersion,
			IRN:              q.Get("irn"),
			VerificationCode: q.Get("code"),
			Checksum:         q.Get("cs"),
		}, nil
	default:
		return nil, domain.ErrUnknownQRFormat
	}
}

// checksum hashes the payload with the checksum field excluded.
func checksum(p *Payload) string {
	material := strings.Join([]string{
		p.Version, p.IRN, p.VerificationCode, p.Timestamp,
		p.Summary.Number, p.Summary.Date, p.Summary.Amount,
		p.Summary.Currency, p.Summary.CustomerName,
	}, "\x1f")
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
