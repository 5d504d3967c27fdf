// Package privacy masks buyer data before it reaches logs.
package privacy

import (
	"strings"
	"unicode/utf8"
)

// MaskEmail keeps the first character and the domain
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if utf8.RuneCountInString(email) < 5 || at < 1 {
		return "***"
	}
	first, _ := utf8.DecodeRuneInString(email)
	return string(first) + "***" + email[at:]
}

// MaskPhone keeps the last four digits
func MaskPhone(phone string) string {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return "***"
	}
	return "***" + string(digits[len(digits)-4:])
}

// MaskName keeps the first letter of every name part
func MaskName(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "*"
	}
	masked := make([]string, len(parts))
	for i, part := range parts {
		first, _ := utf8.DecodeRuneInString(part)
		masked[i] = string(first) + "***"
	}
	return strings.Join(masked, " ")
}
