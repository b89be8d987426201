// Package auth provides the AuthProvider backends.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/storefront-admin/internal/domain/entity"
	repo "github.com/oksasatya/storefront-admin/internal/domain/repository"
	"github.com/oksasatya/storefront-admin/pkg/helpers"
)

var (
	errSessionRevoked = errors.New("session revoked")
	errBadCredential  = errors.New("missing credential")
)

// LocalProvider authenticates against the users table and issues its own
// JWTs. Signed-in sessions are tracked in Redis so a sign-out revokes the
// token; without Redis a token stays valid until it expires.
type LocalProvider struct {
	Users  repo.UserRepository
	JWT    *helpers.JWTManager
	Redis  *redis.Client
	Logger *logrus.Logger
}

var _ repo.AuthProvider = (*LocalProvider)(nil)

func NewLocalProvider(users repo.UserRepository, jwt *helpers.JWTManager, rdb *redis.Client, logger *logrus.Logger) *LocalProvider {
	return &LocalProvider{Users: users, JWT: jwt, Redis: rdb, Logger: logger}
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (p *LocalProvider) SignInWithPassword(ctx context.Context, email, password string) (*entity.Credential, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: MISSING_EMAIL_OR_PASSWORD", repo.ErrCredentialsRejected)
	}
	u, err := p.Users.GetByEmail(ctx, email)
	if errors.Is(err, repo.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: INVALID_LOGIN_CREDENTIALS", repo.ErrCredentialsRejected)
	}
	if err != nil {
		return nil, err
	}
	if !helpers.CompareHashAndPassword(u.Password, password) {
		return nil, fmt.Errorf("%w: INVALID_LOGIN_CREDENTIALS", repo.ErrCredentialsRejected)
	}

	sid := uuid.NewString()
	token, exp, err := p.JWT.GenerateAccessToken(u.ID, sid, false)
	if err != nil {
		if p.Logger != nil {
			p.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		}
		return nil, err
	}

	if p.Redis != nil {
		key := helpers.SessionKey(u.ID)
		pipe := p.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"user_id":    u.ID,
			"email":      u.Email,
			"sid":        sid,
			"logged_in":  true,
			"created_at": nowRFC3339(),
		})
		pipe.Expire(ctx, key, time.Until(exp))
		if _, err := pipe.Exec(ctx); err != nil {
			// the session would be unverifiable, so refuse the sign-in
			return nil, fmt.Errorf("record session: %w", err)
		}
	}

	return &entity.Credential{
		Identity:  entity.Identity{ID: u.ID, Email: u.Email},
		Token:     token,
		ExpiresAt: exp,
	}, nil
}

// SignInAnonymously mints a throwaway identity. Nothing is stored.
func (p *LocalProvider) SignInAnonymously(context.Context) (*entity.Credential, error) {
	uid := uuid.NewString()
	token, exp, err := p.JWT.GenerateAccessToken(uid, "", true)
	if err != nil {
		return nil, err
	}
	return &entity.Credential{
		Identity:  entity.Identity{ID: uid, IsAnonymous: true},
		Token:     token,
		ExpiresAt: exp,
	}, nil
}

func (p *LocalProvider) SignOut(ctx context.Context, cred *entity.Credential) error {
	if cred == nil {
		return errBadCredential
	}
	if cred.Identity.IsAnonymous || p.Redis == nil {
		return nil
	}
	return p.Redis.Del(ctx, helpers.SessionKey(cred.Identity.ID)).Err()
}

func (p *LocalProvider) Resolve(ctx context.Context, token string) (*entity.Credential, error) {
	claims, err := p.JWT.ParseAccessToken(token)
	if err != nil {
		return nil, err
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	if claims.Anonymous {
		return &entity.Credential{
			Identity:  entity.Identity{ID: claims.UserID, IsAnonymous: true},
			Token:     token,
			ExpiresAt: exp,
		}, nil
	}

	if p.Redis != nil {
		data, err := p.Redis.HGetAll(ctx, helpers.SessionKey(claims.UserID)).Result()
		if err != nil {
			return nil, err
		}
		if len(data) == 0 || data["sid"] != claims.SessionID {
			return nil, errSessionRevoked
		}
	}
	u, err := p.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return &entity.Credential{
		Identity:  entity.Identity{ID: u.ID, Email: u.Email},
		Token:     token,
		ExpiresAt: exp,
	}, nil
}
