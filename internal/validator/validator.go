// Package validator checks issued IRNs against format, organizational
// policy, and regulatory compliance rules at selectable strictness.
package validator

import (
	"time"

	"signet/internal/domain"
)

type severity string

const (
	sevError   severity = "error"
	sevWarning severity = "warning"
)

// Input carries everything a rule may inspect.
type Input struct {
	IRNValue         string
	VerificationCode string
	// IssuedAt is the issuance timestamp when known; rules fall back to
	// the IRN's embedded date otherwise.
	IssuedAt time.Time
	Policy   *OrgPolicy
}

// OrgPolicy holds per-organization issuance constraints. All fields are
// optional; zero values disable the corresponding check.
type OrgPolicy struct {
	RequiredPrefix    string
	MaxLength         int
	BusinessHoursOnly bool
	// Business hours window, local to the validator clock. Defaults to
	// 08:00-20:00 when BusinessHoursOnly is set.
	BusinessOpenHour  int
	BusinessCloseHour int
}

// rule is one named check. The closure returns failure messages; an empty
// slice means the rule passed.
type rule struct {
	key   string
	name  string
	sev   severity
	check func(in *Input, now time.Time) []string
}

// IRNValidator runs escalating rule sets. Basic is structural only,
// Standard adds verification-code and policy checks, Strict adds
// regulatory compliance checks.
type IRNValidator struct {
	maxAgeDays int
	now        func() time.Time
}

// Option configures an IRNValidator.
type Option func(*IRNValidator)

// WithMaxAgeDays overrides the standard-level age warning threshold
// (default 365 days).
func WithMaxAgeDays(days int) Option {
	return func(v *IRNValidator) { v.maxAgeDays = days }
}

// New creates an IRNValidator.
func New(opts ...Option) *IRNValidator {
	v := &IRNValidator{maxAgeDays: 365, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs every rule at or below level and folds the findings into a
// report. Errors make the report invalid; warnings never do. Validation
// failures are returned, not raised, so callers can inspect a failed IRN.
func (v *IRNValidator) Validate(in Input, level domain.ValidationLevel) domain.ValidationReport {
	report := domain.ValidationReport{
		IsValid:  true,
		Level:    string(level),
		Errors:   []string{},
		Warnings: []string{},
		Metadata: extractMetadata(in.IRNValue),
	}

	rules := basicRules()
	if level == domain.ValidationStandard || level == domain.ValidationStrict {
		rules = append(rules, v.standardRules()...)
	}
	if level == domain.ValidationStrict {
		rules = append(rules, strictRules()...)
	}

	now := v.now().UTC()
	for _, r := range rules {
		for _, msg := range r.check(&in, now) {
			if r.sev == sevError {
				report.Errors = append(report.Errors, r.name+": "+msg)
			} else {
				report.Warnings = append(report.Warnings, r.name+": "+msg)
			}
		}
	}
	report.IsValid = len(report.Errors) == 0
	return report
}
