package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/storefront-admin/internal/domain/entity"
)

// ErrUserNotFound is returned by UserRepository lookups that match nothing.
var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
}
