package id

import (
	"strings"

	"github.com/google/uuid"
)

// NewID32 returns exactly 32 lowercase hex characters (a v4 UUID without separators).
func NewID32() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Valid reports whether s looks like an id produced by NewID32.
func Valid(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
