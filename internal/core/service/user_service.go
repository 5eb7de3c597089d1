package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"

	"github.com/learnhub/account-service/internal/core/domain"
	"github.com/learnhub/account-service/internal/core/ports"
)

const minPasswordLen = 8

// UserService implements registration, reads and the role-scoped update path.
type UserService struct {
	store  ports.IdentityStore
	hasher ports.PasswordHasher
	log    zerolog.Logger
}

func NewUserService(store ports.IdentityStore, hasher ports.PasswordHasher, log zerolog.Logger) *UserService {
	return &UserService{store: store, hasher: hasher, log: log}
}

// Register creates a student account. Any role in the input is ignored.
func (s *UserService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	in.Role = domain.RoleStudent
	return s.create(ctx, in)
}

// Provision creates an account with an arbitrary role. Only admins may call it.
func (s *UserService) Provision(ctx context.Context, caller domain.Caller, in ports.RegisterInput) (*domain.User, error) {
	switch caller.Role {
	case domain.RoleAdmin:
	case domain.RoleStudent:
		return nil, domain.ErrForbidden
	default:
		return nil, domain.ErrUnauthorized
	}
	if _, err := parseRole(in.Role); err != nil {
		return nil, err
	}
	return s.create(ctx, in)
}

func (s *UserService) create(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(s.hasher, in.Password)
	if err != nil {
		return nil, err
	}

	created, err := s.store.CreateUser(ctx, &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", created.ID).Str("role", string(created.Role)).Msg("user created")
	return created, nil
}

// GetUser returns the target account if the caller may see it.
func (s *UserService) GetUser(ctx context.Context, caller domain.Caller, targetID string) (*domain.User, error) {
	if err := CanView(caller, targetID); err != nil {
		return nil, err
	}
	return s.store.FindUserByID(ctx, targetID)
}

// UpdateUser filters the requested changes through Decide, then applies what
// remains with a single write. Denials never reach the store.
func (s *UserService) UpdateUser(ctx context.Context, caller domain.Caller, targetID string, changes domain.UserChanges) (*domain.User, error) {
	requested := changes.Fields()
	permitted, err := Decide(caller, targetID, requested)
	if err != nil {
		s.log.Debug().Err(err).
			Str("caller_id", caller.ID).
			Str("caller_role", string(caller.Role)).
			Str("target_id", targetID).
			Msg("update denied")
		return nil, err
	}
	if dropped := len(requested) - len(permitted); dropped > 0 {
		s.log.Debug().Str("caller_id", caller.ID).Int("dropped", dropped).Msg("update fields stripped")
	}
	allowed := changes.Only(permitted)

	user, err := s.store.FindUserByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if allowed.Empty() {
		return user, nil
	}

	if err := s.apply(user, allowed); err != nil {
		return nil, err
	}

	saved, err := s.store.SaveUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.log.Info().
		Str("caller_id", caller.ID).
		Str("target_id", targetID).
		Int("fields", len(permitted)).
		Msg("user updated")
	return saved, nil
}

func (s *UserService) apply(user *domain.User, c domain.UserChanges) error {
	if c.Name != nil {
		name := strings.TrimSpace(*c.Name)
		if name == "" {
			return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
		}
		user.Name = name
	}
	if c.Email != nil {
		email, err := normalizeEmail(*c.Email)
		if err != nil {
			return err
		}
		user.Email = email
	}
	if c.Password != nil {
		hash, err := hashPassword(s.hasher, *c.Password)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
	}
	if c.Role != nil {
		role, err := parseRole(*c.Role)
		if err != nil {
			return err
		}
		user.Role = role
	}
	return nil
}

func hashPassword(hasher ports.PasswordHasher, password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLen)
	}
	hash, err := hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// parseRole validates an already typed role.
func parseRole(r domain.Role) (domain.Role, error) {
	return domain.ParseRole(string(r))
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Address != strings.TrimSpace(raw) {
		return "", fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	return strings.ToLower(addr.Address), nil
}
