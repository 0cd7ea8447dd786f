package gateway

import "strings"

// Redact masks a credential for logging. Strings of 8 characters or fewer
// are fully masked; longer strings keep the first and last 4 characters.
func Redact(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + "..." + s[len(s)-4:]
}
