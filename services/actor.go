package services

import "strings"

// Actor is the authenticated caller as resolved by the identity middleware.
type Actor struct {
	ID    uint
	Email string
	Role  string
}

// emailsEqual compares addresses the way the authorization checks need to:
// case-insensitively.
func emailsEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
