package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/learnhub/account-service/internal/core/domain"
	"github.com/learnhub/account-service/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubThrottle struct {
	allow bool
	err   error
	keys  []string
}

func (t *stubThrottle) Allow(_ context.Context, key string) (bool, error) {
	t.keys = append(t.keys, key)
	return t.allow, t.err
}

type stubNotifier struct {
	sent []ports.ResetNotification
}

func (n *stubNotifier) Enqueue(note ports.ResetNotification) {
	n.sent = append(n.sent, note)
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newResetSvc(store *stubStore, clock clockwork.Clock, opts ...PasswordResetOption) *PasswordResetService {
	return NewPasswordResetService(store, plainHasher{}, clock, time.Hour, zerolog.Nop(), opts...)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestPasswordReset_Scenario(t *testing.T) {
	store := newStubStore()
	store.seedUser("u", "u@example.com", domain.RoleStudent)
	clock := clockwork.NewFakeClockAt(epoch)
	svc := newResetSvc(store, clock)
	ctx := context.Background()

	req, err := svc.Issue(ctx, "u@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if req.ID == "" || req.UserID != "u" || req.Consumed {
		t.Fatalf("unexpected request: %+v", req)
	}
	if !req.ExpiresAt.Equal(epoch.Add(time.Hour)) {
		t.Fatalf("expected expiry %v, got %v", epoch.Add(time.Hour), req.ExpiresAt)
	}
	if store.user("u").PasswordHash != "old-hash" {
		t.Fatalf("issue must not touch the user record")
	}

	clock.Advance(10 * time.Second)
	if _, err := svc.Validate(ctx, req.ID); err != nil {
		t.Fatalf("expected fresh, got %v", err)
	}

	clock.Advance(10 * time.Second)
	if err := svc.Consume(ctx, req.ID, "newpass-123"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got := store.user("u").PasswordHash; got != "hashed:newpass-123" {
		t.Fatalf("expected credential updated, got %q", got)
	}

	clock.Advance(10 * time.Second)
	if err := svc.Consume(ctx, req.ID, "again-1234"); !errors.Is(err, domain.ErrResetExpired) {
		t.Fatalf("expected ErrResetExpired on reuse, got %v", err)
	}
	if _, err := svc.Validate(ctx, req.ID); !errors.Is(err, domain.ErrResetExpired) {
		t.Fatalf("consumed request must not validate, got %v", err)
	}
	if got := store.user("u").PasswordHash; got != "hashed:newpass-123" {
		t.Fatalf("credential changed by reused request: %q", got)
	}
}

func TestPasswordReset_Issue_UnknownUser(t *testing.T) {
	svc := newResetSvc(newStubStore(), clockwork.NewFakeClockAt(epoch))

	if _, err := svc.Issue(context.Background(), "ghost@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.Issue(context.Background(), "  "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPasswordReset_Issue_UniqueTokens(t *testing.T) {
	store := newStubStore()
	store.seedUser("u", "u@example.com", domain.RoleStudent)
	svc := newResetSvc(store, clockwork.NewFakeClockAt(epoch))

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		req, err := svc.Issue(context.Background(), "u@example.com")
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if seen[req.ID] {
			t.Fatalf("duplicate token %q", req.ID)
		}
		if len(req.ID) < 40 {
			t.Fatalf("token too short: %q", req.ID)
		}
		seen[req.ID] = true
	}
}

func TestPasswordReset_ExpiryBoundary(t *testing.T) {
	store := newStubStore()
	store.seedUser("u", "u@example.com", domain.RoleStudent)
	clock := clockwork.NewFakeClockAt(epoch)
	svc := newResetSvc(store, clock)
	ctx := context.Background()

	store.resets["past"] = &domain.ChangePasswordRequest{ID: "past", UserID: "u", CreatedAt: epoch.Add(-time.Hour), ExpiresAt: epoch.Add(-time.Second)}
	store.resets["edge"] = &domain.ChangePasswordRequest{ID: "edge", UserID: "u", CreatedAt: epoch.Add(-time.Hour), ExpiresAt: epoch}
	store.resets["future"] = &domain.ChangePasswordRequest{ID: "future", UserID: "u", CreatedAt: epoch, ExpiresAt: epoch.Add(time.Second)}

	for _, id := range []string{"past", "edge"} {
		if _, err := svc.Validate(ctx, id); !errors.Is(err, domain.ErrResetExpired) {
			t.Errorf("validate %s: expected ErrResetExpired, got %v", id, err)
		}
		if err := svc.Consume(ctx, id, "newpass-123"); !errors.Is(err, domain.ErrResetExpired) {
			t.Errorf("consume %s: expected ErrResetExpired, got %v", id, err)
		}
	}

	if _, err := svc.Validate(ctx, "future"); err != nil {
		t.Fatalf("validate future: %v", err)
	}
	if err := svc.Consume(ctx, "future", "newpass-123"); err != nil {
		t.Fatalf("consume future: %v", err)
	}
	if store.consumes != 1 {
		t.Fatalf("expected a single consume, got %d", store.consumes)
	}
}

func TestPasswordReset_ExpiresAfterTTL(t *testing.T) {
	store := newStubStore()
	store.seedUser("u", "u@example.com", domain.RoleStudent)
	clock := clockwork.NewFakeClockAt(epoch)
	svc := newResetSvc(store, clock)

	req, err := svc.Issue(context.Background(), "u@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clock.Advance(time.Hour)
	if _, err := svc.Validate(context.Background(), req.ID); !errors.Is(err, domain.ErrResetExpired) {
		t.Fatalf("expected ErrResetExpired, got %v", err)
	}
}

func TestPasswordReset_ValidateIdempotent(t *testing.T) {
	store := newStubStore()
	store.seedUser("u", "u@example.com", domain.RoleStudent)
	svc := newResetSvc(store, clockwork.NewFakeClockAt(epoch))
	ctx := context.Background()

	req, _ := svc.Issue(ctx, "u@example.com")
	first, err1 := svc.Validate(ctx, req.ID)
	second, err2 := svc.Validate(ctx, req.ID)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v %v", err1, err2)
	}
	if *first != *second {
		t.Fatalf("validate results differ: %+v vs %+v", first, second)
	}
	if stored, _ := store.FindResetRequest(ctx, req.ID); stored.Consumed {
		t.Fatalf("validate must not consume")
	}

	if _, err := svc.Validate(ctx, "missing"); !errors.Is(err, domain.ErrResetNotFound) {
		t.Fatalf("expected ErrResetNotFound, got %v", err)
	}
}

func TestPasswordReset_Consume_NotFoundAndWeakPassword(t *testing.T) {
	store := newStubStore()
	store.seedUser("u", "u@example.com", domain.RoleStudent)
	svc := newResetSvc(store, clockwork.NewFakeClockAt(epoch))
	ctx := context.Background()

	if err := svc.Consume(ctx, "missing", "newpass-123"); !errors.Is(err, domain.ErrResetNotFound) {
		t.Fatalf("expected ErrResetNotFound, got %v", err)
	}

	req, _ := svc.Issue(ctx, "u@example.com")
	if err := svc.Consume(ctx, req.ID, "short"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Validate(ctx, req.ID); err != nil {
		t.Fatalf("rejected password must leave the request fresh, got %v", err)
	}
}

func TestPasswordReset_ConcurrentConsumeSingleWinner(t *testing.T) {
	store := newStubStore()
	store.seedUser("u", "u@example.com", domain.RoleStudent)
	svc := newResetSvc(store, clockwork.NewFakeClockAt(epoch))
	ctx := context.Background()

	req, err := svc.Issue(ctx, "u@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const callers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		expired int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.Consume(ctx, req.ID, "newpass-123")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, domain.ErrResetExpired):
				expired++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if success != 1 {
		t.Fatalf("expected exactly one success, got %d", success)
	}
	if expired != callers-1 {
		t.Fatalf("expected %d expired results, got %d", callers-1, expired)
	}
	if store.consumes != 1 {
		t.Fatalf("expected a single store transition, got %d", store.consumes)
	}
}

func TestPasswordReset_Throttle(t *testing.T) {
	store := newStubStore()
	store.seedUser("u", "u@example.com", domain.RoleStudent)

	denied := &stubThrottle{allow: false}
	svc := newResetSvc(store, clockwork.NewFakeClockAt(epoch), WithIssueThrottle(denied))
	if _, err := svc.Issue(context.Background(), "U@example.com"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if len(denied.keys) != 1 || denied.keys[0] != "u@example.com" {
		t.Fatalf("expected normalised throttle key, got %v", denied.keys)
	}
	if len(store.resets) != 0 {
		t.Fatalf("throttled issue must not persist a request")
	}

	broken := &stubThrottle{err: errors.New("redis down")}
	svc = newResetSvc(store, clockwork.NewFakeClockAt(epoch), WithIssueThrottle(broken))
	if _, err := svc.Issue(context.Background(), "u@example.com"); err != nil {
		t.Fatalf("throttle failure should fail open, got %v", err)
	}
}

func TestPasswordReset_Notifies(t *testing.T) {
	store := newStubStore()
	store.seedUser("u", "u@example.com", domain.RoleStudent)
	notifier := &stubNotifier{}
	svc := newResetSvc(store, clockwork.NewFakeClockAt(epoch), WithResetNotifier(notifier))

	req, err := svc.Issue(context.Background(), "u@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.sent))
	}
	n := notifier.sent[0]
	if n.RequestID != req.ID || n.Email != "u@example.com" || !n.ExpiresAt.Equal(req.ExpiresAt) {
		t.Fatalf("unexpected notification: %+v", n)
	}
}

func TestChangePasswordRequest_State(t *testing.T) {
	req := domain.NewChangePasswordRequest("r", "u", epoch, time.Minute)

	if st := req.State(epoch); st != domain.ResetPending {
		t.Fatalf("expected pending at creation, got %s", st)
	}
	if st := req.State(epoch.Add(time.Minute - time.Nanosecond)); st != domain.ResetPending {
		t.Fatalf("expected pending just before expiry, got %s", st)
	}
	if st := req.State(epoch.Add(time.Minute)); st != domain.ResetExpired {
		t.Fatalf("expected expired at expiry, got %s", st)
	}
	req.Consumed = true
	if st := req.State(epoch); st != domain.ResetConsumed {
		t.Fatalf("expected consumed, got %s", st)
	}
	if req.Fresh(epoch) {
		t.Fatalf("consumed request must never be fresh")
	}
}
