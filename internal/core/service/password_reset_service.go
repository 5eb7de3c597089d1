package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/learnhub/account-service/internal/core/domain"
	"github.com/learnhub/account-service/internal/core/ports"
)

const (
	DefaultResetTTL = time.Hour
	resetTokenBytes = 32
)

var errResetUsed = fmt.Errorf("%w: already used", domain.ErrResetExpired)

// PasswordResetService implements ports.PasswordResetService. Every call
// re-reads the request from the store; nothing is cached between calls.
type PasswordResetService struct {
	store    ports.IdentityStore
	hasher   ports.PasswordHasher
	clock    clockwork.Clock
	ttl      time.Duration
	throttle ports.IssueThrottle
	notifier ports.ResetNotifier
	log      zerolog.Logger
}

// PasswordResetOption customises a PasswordResetService.
type PasswordResetOption func(*PasswordResetService)

// WithIssueThrottle limits issuance per lookup key.
func WithIssueThrottle(t ports.IssueThrottle) PasswordResetOption {
	return func(s *PasswordResetService) { s.throttle = t }
}

// WithResetNotifier hands every issued request to n for delivery.
func WithResetNotifier(n ports.ResetNotifier) PasswordResetOption {
	return func(s *PasswordResetService) { s.notifier = n }
}

func NewPasswordResetService(
	store ports.IdentityStore,
	hasher ports.PasswordHasher,
	clock clockwork.Clock,
	ttl time.Duration,
	log zerolog.Logger,
	opts ...PasswordResetOption,
) *PasswordResetService {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &PasswordResetService{store: store, hasher: hasher, clock: clock, ttl: ttl, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates a pending request for the user registered under lookupKey.
// The user record itself is not touched.
func (s *PasswordResetService) Issue(ctx context.Context, lookupKey string) (*domain.ChangePasswordRequest, error) {
	key := strings.ToLower(strings.TrimSpace(lookupKey))
	if key == "" {
		return nil, fmt.Errorf("%w: lookup key is required", domain.ErrInvalidInput)
	}

	user, err := s.store.FindUserByEmail(ctx, key)
	if err != nil {
		return nil, err
	}

	if s.throttle != nil {
		allowed, err := s.throttle.Allow(ctx, key)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("reset throttle check failed, issuing anyway")
		case !allowed:
			return nil, domain.ErrRateLimited
		}
	}

	id, err := newResetToken()
	if err != nil {
		return nil, fmt.Errorf("issue reset: %w", err)
	}
	req := domain.NewChangePasswordRequest(id, user.ID, s.clock.Now(), s.ttl)
	if err := s.store.CreateResetRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("issue reset: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Enqueue(ports.ResetNotification{
			RequestID: req.ID,
			UserID:    user.ID,
			Name:      user.Name,
			Email:     user.Email,
			ExpiresAt: req.ExpiresAt,
		})
	}

	s.log.Info().Str("user_id", user.ID).Time("expires_at", req.ExpiresAt).Msg("password reset issued")
	return req, nil
}

// Validate is read-only and idempotent.
func (s *PasswordResetService) Validate(ctx context.Context, requestID string) (*domain.ChangePasswordRequest, error) {
	req, err := s.store.FindResetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := stateError(req.State(s.clock.Now())); err != nil {
		return nil, err
	}
	return req, nil
}

// Consume re-checks freshness against the current stored state and then
// relies on the store's compare-and-set so that only one concurrent caller
// can spend a request.
func (s *PasswordResetService) Consume(ctx context.Context, requestID, newPassword string) error {
	now := s.clock.Now()

	req, err := s.store.FindResetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if err := stateError(req.State(now)); err != nil {
		return err
	}

	hash, err := hashPassword(s.hasher, newPassword)
	if err != nil {
		return err
	}

	ok, err := s.store.CompareAndConsume(ctx, requestID, hash, now)
	if err != nil {
		if errors.Is(err, domain.ErrResetNotFound) {
			return err
		}
		return fmt.Errorf("consume reset: %w", err)
	}
	if !ok {
		s.log.Debug().Str("user_id", req.UserID).Msg("reset lost consume race")
		return errResetUsed
	}

	s.log.Info().Str("user_id", req.UserID).Msg("password reset consumed")
	return nil
}

func stateError(st domain.ResetState) error {
	switch st {
	case domain.ResetPending:
		return nil
	case domain.ResetConsumed:
		return errResetUsed
	case domain.ResetExpired:
		return domain.ErrResetExpired
	default:
		return domain.ErrResetExpired
	}
}

func newResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
