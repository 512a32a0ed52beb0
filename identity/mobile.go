package identity

import (
	"regexp"
	"strings"
)

// CountryPrefix is the Egyptian country calling code every normalized
// number starts with.
const CountryPrefix = "+20"

var (
	normalizedRegex = regexp.MustCompile(`^\+20\d{9,10}$`)
	// 11-digit local number with trunk prefix, first match anywhere
	localMobileRegex = regexp.MustCompile(`0\d{10}`)
	maskableRegex    = regexp.MustCompile(`\+?\d[\d\s]{8,}\d`)
)

// IsNormalized reports whether s is a fully normalized mobile number:
// +20 followed by the subscriber digits, nothing else.
func IsNormalized(s string) bool {
	return normalizedRegex.MatchString(s)
}

// FindLocalMobile returns the first 11-digit local number (leading 0) in
// text, or "".
func FindLocalMobile(text string) string {
	return localMobileRegex.FindString(text)
}

// FromLocal converts an 11-digit local number (01012345678) to +201012345678.
// Anything else yields "".
func FromLocal(local string) string {
	if len(local) != 11 || local[0] != '0' || !allDigits(local) {
		return ""
	}
	return CountryPrefix + local[1:]
}

// NormalizeMobile accepts the usual spellings of an Egyptian mobile number
// (local, +20, 0020, with spaces or dashes) and returns the +20 form, or ""
// when the digits do not form a mobile number.
func NormalizeMobile(raw string) string {
	digits := onlyDigits(raw)
	switch {
	case strings.HasPrefix(digits, "0020"):
		digits = digits[4:]
	case strings.HasPrefix(digits, "20") && len(digits) >= 11:
		digits = digits[2:]
	}
	if len(digits) == 11 && digits[0] == '0' {
		digits = digits[1:]
	}
	if len(digits) != 10 || digits[0] != '1' {
		return ""
	}
	return CountryPrefix + digits
}

// Mask keeps the first three characters of every phone-looking run in s
// and replaces the remaining digits with '*'.
func Mask(s string) string {
	return maskableRegex.ReplaceAllStringFunc(s, func(match string) string {
		var b strings.Builder
		kept := 0
		for _, r := range match {
			if kept < 3 {
				b.WriteRune(r)
				kept++
				continue
			}
			if r >= '0' && r <= '9' {
				b.WriteByte('*')
			} else {
				b.WriteRune(r)
			}
		}
		return b.String()
	})
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
