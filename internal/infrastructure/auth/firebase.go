package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	idtk "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"github.com/oksasatya/storefront-admin/internal/domain/entity"
	repo "github.com/oksasatya/storefront-admin/internal/domain/repository"
)

// FirebaseProvider signs in through the Identity Toolkit API used by
// Firebase Authentication. Tokens are Firebase ID tokens.
type FirebaseProvider struct {
	svc    *idtk.Service
	Logger *logrus.Logger
}

var _ repo.AuthProvider = (*FirebaseProvider)(nil)

// NewFirebaseProvider authenticates API calls with the project's web API key.
func NewFirebaseProvider(ctx context.Context, apiKey string, logger *logrus.Logger, opts ...option.ClientOption) (*FirebaseProvider, error) {
	if apiKey == "" {
		return nil, errors.New("firebase: FIREBASE_API_KEY is required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := idtk.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &FirebaseProvider{svc: svc, Logger: logger}, nil
}

func (p *FirebaseProvider) SignInWithPassword(ctx context.Context, email, password string) (*entity.Credential, error) {
	resp, err := p.svc.Relyingparty.VerifyPassword(&idtk.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, providerError(err)
	}
	return credential(resp.LocalId, resp.Email, resp.IdToken, resp.ExpiresIn), nil
}

// SignInAnonymously creates a user without email or password, which
// Firebase treats as an anonymous account.
func (p *FirebaseProvider) SignInAnonymously(ctx context.Context) (*entity.Credential, error) {
	resp, err := p.svc.Relyingparty.SignupNewUser(&idtk.IdentitytoolkitRelyingpartySignupNewUserRequest{}).Context(ctx).Do()
	if err != nil {
		return nil, providerError(err)
	}
	return credential(resp.LocalId, "", resp.IdToken, resp.ExpiresIn), nil
}

// SignOut forgets the token locally. ID tokens cannot be revoked with an
// API key; they lapse at their expiry.
func (p *FirebaseProvider) SignOut(context.Context, *entity.Credential) error {
	return nil
}

func (p *FirebaseProvider) Resolve(ctx context.Context, token string) (*entity.Credential, error) {
	resp, err := p.svc.Relyingparty.GetAccountInfo(&idtk.IdentitytoolkitRelyingpartyGetAccountInfoRequest{
		IdToken: token,
	}).Context(ctx).Do()
	if err != nil {
		return nil, providerError(err)
	}
	if len(resp.Users) == 0 {
		return nil, errors.New("firebase: USER_NOT_FOUND")
	}
	u := resp.Users[0]
	return &entity.Credential{
		Identity: entity.Identity{ID: u.LocalId, Email: u.Email, IsAnonymous: u.Email == ""},
		Token:    token,
	}, nil
}

func credential(uid, email, token string, expiresIn int64) *entity.Credential {
	c := &entity.Credential{
		Identity: entity.Identity{ID: uid, Email: email, IsAnonymous: email == ""},
		Token:    token,
	}
	if expiresIn > 0 {
		c.ExpiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)
	}
	return c
}

// providerError keeps the API's own message, e.g. INVALID_PASSWORD, and
// marks client errors as rejected credentials.
func providerError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	msg := gerr.Message
	if msg == "" {
		msg = http.StatusText(gerr.Code)
	}
	if gerr.Code == http.StatusBadRequest {
		return fmt.Errorf("%w: %s", repo.ErrCredentialsRejected, msg)
	}
	return fmt.Errorf("firebase: %s", msg)
}
