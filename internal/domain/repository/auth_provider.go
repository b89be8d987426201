package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/storefront-admin/internal/domain/entity"
)

// ErrCredentialsRejected is wrapped by providers when the backend refuses a
// sign-in. The wrapping error carries the backend's own message.
var ErrCredentialsRejected = errors.New("credentials rejected")

// AuthProvider is the external authentication backend.
type AuthProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*entity.Credential, error)
	SignInAnonymously(ctx context.Context) (*entity.Credential, error)
	SignOut(ctx context.Context, cred *entity.Credential) error
	// Resolve restores a credential from a token previously issued by the
	// same provider.
	Resolve(ctx context.Context, token string) (*entity.Credential, error)
}
