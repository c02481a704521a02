package phone

import "strings"

const (
	DefaultCountryCode    = "55"
	DefaultNationalLength = 11
)

// Scheme describes how raw numbers collapse into a canonical key.
type Scheme struct {
	CountryCode    string
	NationalLength int
}

var Default = Scheme{
	CountryCode:    DefaultCountryCode,
	NationalLength: DefaultNationalLength,
}

// Normalize returns the canonical key for raw using the default scheme.
func Normalize(raw string) string {
	return Default.Normalize(raw)
}

// Same reports whether a and b identify the same contact.
func Same(a, b string) bool {
	return Default.Normalize(a) == Default.Normalize(b)
}

// Normalize keeps digits only, drops the country prefix while the number is
// longer than the national length and drops a trunk zero from a number of
// exactly national length. The result is a fixed point: Normalize(Normalize(x)) == Normalize(x).
func (s Scheme) Normalize(raw string) string {
	digits := onlyDigits(raw)
	if digits == "" {
		return ""
	}

	if s.CountryCode != "" {
		for strings.HasPrefix(digits, s.CountryCode) && len(digits) > s.NationalLength {
			digits = digits[len(s.CountryCode):]
		}
	}

	if len(digits) == s.NationalLength && digits[0] == '0' {
		digits = digits[1:]
	}
	return digits
}

// International prefixes a canonical number with the country code when it
// looks like a national number (area code plus subscriber).
func (s Scheme) International(canonical string) string {
	if canonical == "" || s.CountryCode == "" {
		return canonical
	}
	if n := len(canonical); n >= s.NationalLength-1 && n <= s.NationalLength {
		return s.CountryCode + canonical
	}
	return canonical
}

func onlyDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
