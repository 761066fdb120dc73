// Package utils holds small helpers shared across packages: text
// truncation, vector math, and logger construction.
package utils

// Truncate shortens s to at most maxLen bytes and marks the cut with an
// ellipsis. A maxLen of zero or less disables truncation. Cuts are byte
// positions, so a multibyte rune at the boundary may be split.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
