package domain

import "time"

// ResetState is the lifecycle state of a ChangePasswordRequest at a given instant.
type ResetState string

const (
	ResetPending  ResetState = "pending"
	ResetExpired  ResetState = "expired"
	ResetConsumed ResetState = "consumed"
)

// ChangePasswordRequest is a single-use, time-bounded grant to change one
// user's password.
//
//	pending ──(now >= ExpiresAt)──▶ expired
//	pending ──(consume)───────────▶ consumed
//
// Both expired and consumed are terminal.
type ChangePasswordRequest struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Consumed   bool       `json:"consumed"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

// NewChangePasswordRequest returns a pending request created at now.
func NewChangePasswordRequest(id, userID string, now time.Time, ttl time.Duration) *ChangePasswordRequest {
	now = now.UTC()
	return &ChangePasswordRequest{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// State evaluates the request against a single reading of the clock.
// Consumed takes precedence over expiry.
func (r *ChangePasswordRequest) State(now time.Time) ResetState {
	switch {
	case r.Consumed:
		return ResetConsumed
	case !now.Before(r.ExpiresAt):
		return ResetExpired
	default:
		return ResetPending
	}
}

// Fresh reports whether the request can still be used at now.
func (r *ChangePasswordRequest) Fresh(now time.Time) bool {
	return r.State(now) == ResetPending
}
