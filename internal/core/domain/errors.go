package domain

import "errors"

var (
	ErrUnauthorized  = errors.New("no self-or-other update rights")
	ErrForbidden     = errors.New("cannot modify another account")
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrResetNotFound = errors.New("password reset request not found")
	// ErrResetExpired also covers requests that were already consumed.
	ErrResetExpired = errors.New("password reset request expired")
	ErrRateLimited  = errors.New("too many password reset requests")
)
