package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"

	"avulto/internal/interpolation"
)

// IsIdent reports whether s is a DM identifier: a letter or underscore
// followed by letters, digits and underscores.
func IsIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// Hash computes a SHA-256 hex hash of a string for deduplication.
func Hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// HashBytes is Hash for raw content such as file bodies.
func HashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// Truncate shortens s to at most maxLen runes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:max(maxLen, 0)]) + "..."
}

// Quote renders s as a DM string literal. Text macros such as \the are
// written with their single backslash.
func Quote(s string) string {
	return `"` + interpolation.Escape(s) + `"`
}
