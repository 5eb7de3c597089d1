package ports

import (
	"context"
	"time"
)

// ResetNotification is the job emitted after a reset request is issued.
type ResetNotification struct {
	RequestID string
	UserID    string
	Name      string
	Email     string
	ExpiresAt time.Time
}

// ResetNotifier accepts notifications for asynchronous delivery.
type ResetNotifier interface {
	Enqueue(n ResetNotification)
}

// ResetMailer delivers a single notification to the user.
type ResetMailer interface {
	Send(ctx context.Context, n ResetNotification) error
}

// IssueThrottle limits how often a reset can be issued per lookup key.
type IssueThrottle interface {
	// Allow reports whether a new request may be issued for key now and, if
	// so, starts a new throttle window.
	Allow(ctx context.Context, key string) (bool, error)
}
