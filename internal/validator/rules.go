package validator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"signet/internal/domain"
	"signet/internal/irn"
)

const (
	minIRNLength = 15
	maxIRNLength = 30

	strictAgeWarnDays = 30

	defaultBusinessOpenHour  = 8
	defaultBusinessCloseHour = 20
)

var (
	codeAlphabet   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	standardPrefix = regexp.MustCompile(`^[A-Z]{2,}`)
	dateSegment    = regexp.MustCompile(`^\d{8}$`)
)

// basicRules are structural checks on the IRN string alone.
func basicRules() []rule {
	return []rule{
		{
			key: "basic.format", name: "Format: Segment Structure", sev: sevError,
			check: func(in *Input, _ time.Time) []string {
				if in.IRNValue == "" {
					return []string{"IRN is empty"}
				}
				if !irn.ValidateFormat(in.IRNValue) {
					return []string{"IRN does not match {reference}-{service id}-{YYYYMMDD}"}
				}
				return nil
			},
		},
		{
			key: "basic.length", name: "Format: Length Bounds", sev: sevError,
			check: func(in *Input, _ time.Time) []string {
				if in.IRNValue == "" {
					return nil // already reported by basic.format
				}
				if n := len(in.IRNValue); n < minIRNLength || n > maxIRNLength {
					return []string{fmt.Sprintf("length %d outside %d-%d", n, minIRNLength, maxIRNLength)}
				}
				return nil
			},
		},
		{
			key: "basic.date_segment", name: "Format: Date Segment", sev: sevError,
			check: func(in *Input, _ time.Time) []string {
				segments := strings.Split(in.IRNValue, "-")
				if len(segments) != 3 {
					return nil
				}
				if !dateSegment.MatchString(segments[2]) {
					return []string{"date segment is not YYYYMMDD"}
				}
				if _, err := time.Parse("20060102", segments[2]); err != nil {
					return []string{"date segment is not a real calendar date"}
				}
				return nil
			},
		},
	}
}

// standardRules add verification-code shape, organizational policy, and
// age advisories.
func (v *IRNValidator) standardRules() []rule {
	return []rule{
		{
			key: "std.code_shape", name: "Verification Code", sev: sevError,
			check: func(in *Input, _ time.Time) []string {
				if in.VerificationCode == "" {
					return nil // absence is a warning at this level, see std.code_present
				}
				var msgs []string
				if len(in.VerificationCode) < 8 || len(in.VerificationCode) > 16 {
					msgs = append(msgs, fmt.Sprintf("code length %d outside 8-16", len(in.VerificationCode)))
				}
				if !codeAlphabet.MatchString(in.VerificationCode) {
					msgs = append(msgs, "code contains characters outside the base64url alphabet")
				}
				return msgs
			},
		},
		{
			key: "std.code_present", name: "Verification Code", sev: sevWarning,
			check: func(in *Input, _ time.Time) []string {
				if in.VerificationCode == "" {
					return []string{"verification code is missing"}
				}
				return nil
			},
		},
		{
			key: "std.policy_prefix", name: "Policy: Required Prefix", sev: sevError,
			check: func(in *Input, _ time.Time) []string {
				if in.Policy == nil || in.Policy.RequiredPrefix == "" {
					return nil
				}
				if !strings.HasPrefix(in.IRNValue, in.Policy.RequiredPrefix) {
					return []string{fmt.Sprintf("IRN does not start with required prefix %q", in.Policy.RequiredPrefix)}
				}
				return nil
			},
		},
		{
			key: "std.policy_length", name: "Policy: Maximum Length", sev: sevError,
			check: func(in *Input, _ time.Time) []string {
				if in.Policy == nil || in.Policy.MaxLength <= 0 {
					return nil
				}
				if len(in.IRNValue) > in.Policy.MaxLength {
					return []string{fmt.Sprintf("length %d exceeds organization maximum %d", len(in.IRNValue), in.Policy.MaxLength)}
				}
				return nil
			},
		},
		{
			key: "std.policy_hours", name: "Policy: Business Hours", sev: sevWarning,
			check: func(in *Input, now time.Time) []string {
				if in.Policy == nil || !in.Policy.BusinessHoursOnly {
					return nil
				}
				issued := in.IssuedAt
				if issued.IsZero() {
					issued = now
				}
				open, close := in.Policy.BusinessOpenHour, in.Policy.BusinessCloseHour
				if open == 0 && close == 0 {
					open, close = defaultBusinessOpenHour, defaultBusinessCloseHour
				}
				if h := issued.Hour(); h < open || h >= close {
					return []string{fmt.Sprintf("issued at %02d:00, outside business hours %02d:00-%02d:00", h, open, close)}
				}
				return nil
			},
		},
		{
			key: "std.age", name: "Age", sev: sevWarning,
			check: func(in *Input, now time.Time) []string {
				if age, ok := irnAgeDays(in, now); ok && age > v.maxAgeDays {
					return []string{fmt.Sprintf("IRN is %d days old, exceeding the %d-day maximum", age, v.maxAgeDays)}
				}
				return nil
			},
		},
	}
}

// strictRules are the regulatory compliance checks.
func strictRules() []rule {
	return []rule{
		{
			key: "strict.code_mandatory", name: "Compliance: Verification Code", sev: sevError,
			check: func(in *Input, _ time.Time) []string {
				if in.VerificationCode == "" {
					return []string{"verification code is mandatory at strict level"}
				}
				return nil
			},
		},
		{
			key: "strict.no_future", name: "Compliance: Timestamp", sev: sevError,
			check: func(in *Input, now time.Time) []string {
				ts := in.IssuedAt
				if ts.IsZero() {
					if embedded, ok := embeddedDate(in.IRNValue); ok {
						ts = embedded
					} else {
						return nil
					}
				}
				// Allow a day of slack for timezone skew on the embedded date.
				if ts.After(now.Add(24 * time.Hour)) {
					return []string{fmt.Sprintf("issuance timestamp %s is in the future", ts.Format("2006-01-02"))}
				}
				return nil
			},
		},
		{
			key: "strict.age", name: "Compliance: Age", sev: sevWarning,
			check: func(in *Input, now time.Time) []string {
				if age, ok := irnAgeDays(in, now); ok && age > strictAgeWarnDays {
					return []string{fmt.Sprintf("IRN is %d days old, exceeding the %d-day compliance window", age, strictAgeWarnDays)}
				}
				return nil
			},
		},
		{
			key: "strict.prefix", name: "Compliance: Prefix", sev: sevWarning,
			check: func(in *Input, _ time.Time) []string {
				segments := strings.Split(in.IRNValue, "-")
				if len(segments) == 0 || segments[0] == "" {
					return nil
				}
				if !standardPrefix.MatchString(segments[0]) {
					return []string{fmt.Sprintf("prefix %q is non-standard (expected leading letters)", segments[0])}
				}
				return nil
			},
		},
	}
}

// irnAgeDays derives the IRN's age from its issuance timestamp or, failing
// that, its embedded date segment.
func irnAgeDays(in *Input, now time.Time) (int, bool) {
	ts := in.IssuedAt
	if ts.IsZero() {
		embedded, ok := embeddedDate(in.IRNValue)
		if !ok {
			return 0, false
		}
		ts = embedded
	}
	if ts.After(now) {
		return 0, true
	}
	return int(now.Sub(ts).Hours() / 24), true
}

// embeddedDate decodes the YYYYMMDD segment, if present.
func embeddedDate(irnValue string) (time.Time, bool) {
	segments := strings.Split(irnValue, "-")
	if len(segments) != 3 || !dateSegment.MatchString(segments[2]) {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102", segments[2])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// extractMetadata pulls the displayable parts out of an IRN string.
func extractMetadata(irnValue string) domain.IRNMetadata {
	meta := domain.IRNMetadata{}
	segments := strings.Split(irnValue, "-")
	if len(segments) > 0 {
		meta.Prefix = segments[0]
	}
	if len(segments) == 3 {
		meta.Suffix = segments[1]
		if t, ok := embeddedDate(irnValue); ok {
			meta.Timestamp = &t
		}
	}
	return meta
}
