// Package notify delivers password reset notifications to users.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/learnhub/account-service/internal/core/ports"
)

// LogMailer writes the reset link to the structured log instead of sending
// mail. It stands in for a real transport in development and tests.
type LogMailer struct {
	linkBase string
	log      zerolog.Logger
}

func NewLogMailer(linkBase string, log zerolog.Logger) *LogMailer {
	return &LogMailer{linkBase: strings.TrimRight(linkBase, "/"), log: log}
}

func (m *LogMailer) Send(ctx context.Context, n ports.ResetNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.Email == "" {
		return fmt.Errorf("reset notification %s: missing recipient", n.UserID)
	}

	m.log.Info().
		Str("user_id", n.UserID).
		Str("to", n.Email).
		Str("link", m.Link(n.RequestID)).
		Time("expires_at", n.ExpiresAt).
		Msg("password reset link")
	return nil
}

// Link renders the URL a user follows to complete the reset.
func (m *LogMailer) Link(requestID string) string {
	return m.linkBase + "/" + url.PathEscape(requestID)
}
