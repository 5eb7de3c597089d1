package ports

import (
	"context"

	"github.com/learnhub/account-service/internal/core/domain"
)

// RegisterInput carries a new account. Role is ignored for self registration.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// UserService exposes the account operations callers are allowed to perform.
type UserService interface {
	// Register creates a student account for an anonymous caller.
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	// Provision creates an account with any role on behalf of an admin.
	Provision(ctx context.Context, caller domain.Caller, in RegisterInput) (*domain.User, error)
	GetUser(ctx context.Context, caller domain.Caller, targetID string) (*domain.User, error)
	// UpdateUser applies the subset of changes the caller is permitted to make.
	UpdateUser(ctx context.Context, caller domain.Caller, targetID string, changes domain.UserChanges) (*domain.User, error)
}
