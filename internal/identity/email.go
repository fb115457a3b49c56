package identity

import (
	"strings"

	"golang.org/x/text/cases"
)

var emailFolder = cases.Fold()

// NormalizeEmail canonicalizes an email address for storage and lookup.
// Uniqueness is case-insensitive, so every directory access goes through
// the same fold.
func NormalizeEmail(email string) string {
	return emailFolder.String(strings.TrimSpace(email))
}
