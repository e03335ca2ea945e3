package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// InvoiceRecord is the opaque field-named invoice mapping submitted by the
// host. The engine reads a small set of fields by name and never mutates
// or retains the record.
type InvoiceRecord map[string]any

// String returns the value under key rendered as a trimmed string, or ""
// when the key is absent. Numeric values are formatted without an exponent
// so document numbers survive JSON decoding as float64.
func (r InvoiceRecord) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return decimal.NewFromFloat(t).String()
	case int:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// FirstString returns the first non-empty string among the given keys.
func (r InvoiceRecord) FirstString(keys ...string) string {
	for _, k := range keys {
		if s := r.String(k); s != "" {
			return s
		}
	}
	return ""
}

// Decimal parses the value under key as a decimal amount. Returns zero and
// false when the field is absent or unparseable.
func (r InvoiceRecord) Decimal(key string) (decimal.Decimal, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return decimal.Zero, false
	}
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case decimal.Decimal:
		return t, true
	default:
		return decimal.Zero, false
	}
}

// LineItemCount returns the length of the first array-valued line item
// field, or zero when none is present.
func (r InvoiceRecord) LineItemCount() int {
	for _, key := range []string{"line_items", "items", "lines"} {
		if v, ok := r[key]; ok {
			if arr, ok := v.([]any); ok {
				return len(arr)
			}
			if arr, ok := v.([]map[string]any); ok {
				return len(arr)
			}
		}
	}
	return 0
}
