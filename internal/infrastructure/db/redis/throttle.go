package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultThrottleWindow = time.Minute

// IssueThrottle limits password reset issuance per lookup key.
// Key format: reset:throttle:<lookup_key>
type IssueThrottle struct {
	client *redis.Client
	window time.Duration
}

// NewIssueThrottle wraps client. A non-positive window uses one minute.
func NewIssueThrottle(client *redis.Client, window time.Duration) *IssueThrottle {
	if window <= 0 {
		window = defaultThrottleWindow
	}
	return &IssueThrottle{client: client, window: window}
}

// Allow claims the window for key with SET NX; a second claim inside the
// window is refused until the key expires.
func (t *IssueThrottle) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := t.client.SetNX(ctx, t.key(key), "1", t.window).Result()
	if err != nil {
		return false, fmt.Errorf("reset throttle: %w", err)
	}
	return ok, nil
}

func (t *IssueThrottle) key(lookupKey string) string {
	return "reset:throttle:" + lookupKey
}
