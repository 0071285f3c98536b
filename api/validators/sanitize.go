package validators

import (
	"strings"
	"unicode"
)

// MaxReasonLength bounds free-text reasons stored on tickets, orders and events.
const MaxReasonLength = 500

// SanitizeString drops control characters, trims, and caps the result at maxLen runes.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, input))
	if maxLen <= 0 {
		return cleaned
	}
	if runes := []rune(cleaned); len(runes) > maxLen {
		return strings.TrimSpace(string(runes[:maxLen]))
	}
	return cleaned
}
