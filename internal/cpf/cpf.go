// Package cpf normalizes and validates Brazilian CPF numbers used as account keys.
package cpf

import (
	"regexp"
	"strings"

	"github.com/paemuri/brdoc"
)

var reFormatted = regexp.MustCompile(`^[0-9]{3}\.?[0-9]{3}\.?[0-9]{3}-?[0-9]{2}$`)

// Normalize strips the usual punctuation (dots, dash, spaces) and returns the digits.
// Input that is not shaped like a CPF is returned trimmed but otherwise untouched
// so that IsValid rejects it.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if !reFormatted.MatchString(s) {
		return s
	}
	out := make([]byte, 0, 11)
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// IsValid reports whether s is exactly 11 digits and a CPF according to brdoc.
// Punctuated input must go through Normalize first. Repeated-digit sequences
// (000.000.000-00 etc.) pass the arithmetic but are rejected.
func IsValid(s string) bool {
	if len(s) != 11 {
		return false
	}
	same := true
	for i := 0; i < 11; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
		if s[i] != s[0] {
			same = false
		}
	}
	return !same && brdoc.IsCPF(s)
}

// Format renders 11 digits as 000.000.000-00.
func Format(s string) string {
	if len(s) != 11 {
		return s
	}
	return s[0:3] + "." + s[3:6] + "." + s[6:9] + "-" + s[9:11]
}
