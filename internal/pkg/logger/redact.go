package logger

import (
	"strings"
	"unicode/utf8"
)

// maxTextLen caps free-text values such as climb notes.
const maxTextLen = 64

// RedactID masks an identifier for safe logging, keeping a short prefix so
// entries for the same user can still be correlated.
// "3f2a9c1e-77b0-4c1e-9a55-0d6c1a2b3c4d" → "3f2a***"
// Short ids (≤4 chars) are fully masked.
func RedactID(id string) string {
	if len(id) > 4 {
		return id[:4] + "***"
	}
	return "***"
}

// Truncate shortens s to at most n runes, marking the cut with "…".
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}

func redactValue(key, val string) string {
	key = strings.ToLower(key)
	switch {
	case key == "user" || strings.HasPrefix(key, "user_") || key == "userid":
		return RedactID(val)
	case strings.Contains(key, "note") || strings.Contains(key, "comment"):
		return Truncate(val, maxTextLen)
	}
	return val
}
