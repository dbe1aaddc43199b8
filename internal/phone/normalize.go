// Package phone canonicalizes raw phone-number input into the identifier used
// for wallet derivation.
package phone

import (
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/nyaruka/phonenumbers"
)

// Normalize returns the canonical identifier for raw in the given region.
//
// Numbers that parse and validate for the region are returned in E.164 form.
// Anything else is sanitized down to ASCII digits with at most one leading
// '+'. The result is a fixed point: Normalize(Normalize(x, r), r) equals
// Normalize(x, r). Input without any digit yields "".
func Normalize(raw, region string) string {
	region = strings.ToUpper(strings.TrimSpace(region))

	if canonical, ok := e164(raw, region); ok {
		return canonical
	}

	sanitized := sanitize(raw)
	if sanitized == "" {
		return ""
	}
	// The sanitized form may itself be parseable (separators the parser
	// rejected are gone), and it must map to the same output when fed back in.
	if canonical, ok := e164(sanitized, region); ok {
		return canonical
	}
	return sanitized
}

// IsCanonical reports whether identifier is a validated E.164 number rather
// than a sanitized fallback.
func IsCanonical(identifier string) bool {
	if !strings.HasPrefix(identifier, "+") {
		return false
	}
	canonical, ok := e164(identifier, "")
	return ok && canonical == identifier
}

// ValidRegion reports whether region is an ISO 3166-1 alpha-2 code.
func ValidRegion(region string) bool {
	return govalidator.IsISO3166Alpha2(strings.ToUpper(region))
}

func e164(raw, region string) (canonical string, ok bool) {
	defer func() {
		if recover() != nil {
			canonical, ok = "", false
		}
	}()

	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

func sanitize(raw string) string {
	trimmed := strings.TrimSpace(raw)

	var b strings.Builder
	b.Grow(len(trimmed) + 1)
	if strings.HasPrefix(trimmed, "+") {
		b.WriteByte('+')
	}
	digits := 0
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		if c >= '0' && c <= '9' {
			b.WriteByte(c)
			digits++
		}
	}
	if digits == 0 {
		return ""
	}
	return b.String()
}
