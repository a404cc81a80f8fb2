// Package utils holds small helpers shared by the controller packages.
package utils

import "strings"

// SplitList splits a comma-separated list and returns trimmed non-empty values.
// Returns nil for empty/whitespace-only input.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var result []string
	for _, v := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Truncate shortens s to at most n bytes, marking the cut with "...".
// Used to keep subprocess diagnostics readable in error messages.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
