package ports

import (
	"context"

	"github.com/learnhub/account-service/internal/core/domain"
)

// PasswordResetService drives the issue → validate → consume handshake.
type PasswordResetService interface {
	// Issue creates a reset request for the user owning lookupKey (an email).
	Issue(ctx context.Context, lookupKey string) (*domain.ChangePasswordRequest, error)
	// Validate reports whether the request is still usable without changing it.
	// A nil error means fresh.
	Validate(ctx context.Context, requestID string) (*domain.ChangePasswordRequest, error)
	// Consume spends the request and sets the owner's password.
	Consume(ctx context.Context, requestID, newPassword string) error
}
