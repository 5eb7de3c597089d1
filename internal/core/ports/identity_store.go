package ports

import (
	"context"
	"time"

	"github.com/learnhub/account-service/internal/core/domain"
)

// IdentityStore is the durable home of users and password reset requests.
// Lookups return domain.ErrUserNotFound / domain.ErrResetNotFound when absent.
type IdentityStore interface {
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
	// FindUserByEmail resolves the lookup key used by the reset flow.
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	// CreateUser assigns an ID and persists a new user. Duplicate emails yield
	// domain.ErrUserExists.
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	SaveUser(ctx context.Context, user *domain.User) (*domain.User, error)

	CreateResetRequest(ctx context.Context, req *domain.ChangePasswordRequest) error
	FindResetRequest(ctx context.Context, id string) (*domain.ChangePasswordRequest, error)
	// CompareAndConsume marks the request consumed and stores passwordHash on
	// the owning user in one atomic step, but only while the request is
	// unconsumed and now is before its expiry. It reports whether this call
	// performed the transition; concurrent callers on one id see exactly one true.
	CompareAndConsume(ctx context.Context, id, passwordHash string, now time.Time) (bool, error)
}

// PasswordHasher turns a plaintext credential into its stored form.
type PasswordHasher interface {
	Hash(password string) (string, error)
}
