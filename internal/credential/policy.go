// Package credential validates and hashes wallet PINs. No function in this
// package logs, stores or echoes a PIN, including in error messages.
package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/congo-pay/simwallet/internal/metrics"
)

// Policy names.
const (
	PolicyAlphanumeric = "alphanumeric"
	PolicyNumeric6     = "numeric6"
)

// Rules reported by PolicyViolation.
const (
	RuleTooShort        = "too_short"
	RuleLength          = "wrong_length"
	RuleNeedsLetter     = "needs_letter"
	RuleNeedsDigit      = "needs_digit"
	RuleDigitsOnly      = "digits_only"
	RuleRepeatedChar    = "repeated_character"
	RuleRepeatingRun    = "repeating_pattern"
	RuleTooFewDistinct  = "too_few_distinct"
	RuleSequentialDigit = "sequential_digits"
)

// ErrPolicyViolation matches every *PolicyViolation via errors.Is.
var ErrPolicyViolation = errors.New("pin policy violation")

// ErrUnknownPolicy is returned by PolicyByName.
var ErrUnknownPolicy = errors.New("unknown pin policy")

// PolicyViolation names the policy and rule a PIN failed. It never carries
// the PIN.
type PolicyViolation struct {
	Policy string
	Rule   string
}

func (v *PolicyViolation) Error() string {
	return fmt.Sprintf("pin does not satisfy %s policy: %s", v.Policy, strings.ReplaceAll(v.Rule, "_", " "))
}

// Is makes errors.Is(err, ErrPolicyViolation) hold.
func (v *PolicyViolation) Is(target error) bool {
	return target == ErrPolicyViolation
}

// Policy is a named PIN strength rule set.
type Policy interface {
	Name() string
	Validate(pin string) error
}

// Alphanumeric requires at least eight characters mixing letters and digits.
type Alphanumeric struct {
	MinLength   int
	MinDistinct int
}

// NewAlphanumeric returns the stricter policy with its default thresholds.
func NewAlphanumeric() Alphanumeric {
	return Alphanumeric{MinLength: 8, MinDistinct: 4}
}

// Name implements Policy.
func (Alphanumeric) Name() string { return PolicyAlphanumeric }

// Validate implements Policy.
func (p Alphanumeric) Validate(pin string) error {
	if len(pin) < p.MinLength {
		return p.violation(RuleTooShort)
	}
	var letters, digits int
	for i := 0; i < len(pin); i++ {
		switch c := pin[i]; {
		case c >= '0' && c <= '9':
			digits++
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			letters++
		}
	}
	if letters == 0 {
		return p.violation(RuleNeedsLetter)
	}
	if digits == 0 {
		return p.violation(RuleNeedsDigit)
	}
	if singleChar(pin) {
		return p.violation(RuleRepeatedChar)
	}
	if repeatingPattern(pin) {
		return p.violation(RuleRepeatingRun)
	}
	if distinct(pin) < p.MinDistinct {
		return p.violation(RuleTooFewDistinct)
	}
	return nil
}

func (p Alphanumeric) violation(rule string) error {
	return reject(p.Name(), rule)
}

// Numeric6 is the looser six-digit USSD PIN.
type Numeric6 struct{}

// Name implements Policy.
func (Numeric6) Name() string { return PolicyNumeric6 }

// Validate implements Policy.
func (p Numeric6) Validate(pin string) error {
	if len(pin) != 6 {
		return reject(p.Name(), RuleLength)
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return reject(p.Name(), RuleDigitsOnly)
		}
	}
	if singleChar(pin) {
		return reject(p.Name(), RuleRepeatedChar)
	}
	if repeatingPattern(pin) {
		return reject(p.Name(), RuleRepeatingRun)
	}
	if sequential(pin) {
		return reject(p.Name(), RuleSequentialDigit)
	}
	return nil
}

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PolicyAlphanumeric, "":
		return NewAlphanumeric(), nil
	case PolicyNumeric6:
		return Numeric6{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// ValidateStrength checks pin against policy.
func ValidateStrength(pin string, policy Policy) error {
	return policy.Validate(pin)
}

func reject(policy, rule string) error {
	metrics.PINRejections.WithLabelValues(policy, rule).Inc()
	return &PolicyViolation{Policy: policy, Rule: rule}
}

func singleChar(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return len(s) > 0
}

// repeatingPattern reports whether s is some shorter block repeated at least
// twice, e.g. "121212" or "abcabc".
func repeatingPattern(s string) bool {
	n := len(s)
	for period := 1; period <= n/2; period++ {
		if n%period != 0 {
			continue
		}
		if strings.Repeat(s[:period], n/period) == s {
			return true
		}
	}
	return false
}

func distinct(s string) int {
	var seen [256]bool
	count := 0
	for i := 0; i < len(s); i++ {
		if !seen[s[i]] {
			seen[s[i]] = true
			count++
		}
	}
	return count
}

// sequential reports strictly ascending or descending digit runs such as
// "123456" or "987654".
func sequential(s string) bool {
	if len(s) < 2 {
		return false
	}
	step := int(s[1]) - int(s[0])
	if step != 1 && step != -1 {
		return false
	}
	for i := 2; i < len(s); i++ {
		if int(s[i])-int(s[i-1]) != step {
			return false
		}
	}
	return true
}
