package entity

import (
	"strings"
	"time"
)

// Identity is the principal the auth backend recognises for a session.
// Anonymous identities carry no email.
type Identity struct {
	ID          string
	Email       string
	IsAnonymous bool
}

// IsAdmin reports whether the identity may use the admin dashboard:
// it must be signed in with an email, not anonymously.
func (i *Identity) IsAdmin() bool {
	return i != nil && !i.IsAnonymous && strings.TrimSpace(i.Email) != ""
}

// Credential is what an auth backend hands back on sign-in. Token is opaque
// to everything except the backend that issued it.
type Credential struct {
	Identity  Identity
	Token     string
	ExpiresAt time.Time
}
