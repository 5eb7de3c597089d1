package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/learnhub/account-service/internal/core/domain"
)

// ---------------------------------------------------------------------------
// In-memory stub identity store
// ---------------------------------------------------------------------------

type stubStore struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	resets   map[string]*domain.ChangePasswordRequest
	seq      int
	saves    int
	reads    int
	consumes int
	saveErr  error
}

func newStubStore() *stubStore {
	return &stubStore{
		users:  make(map[string]*domain.User),
		resets: make(map[string]*domain.ChangePasswordRequest),
	}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func cloneReset(r *domain.ChangePasswordRequest) *domain.ChangePasswordRequest {
	clone := *r
	return &clone
}

func (s *stubStore) seedUser(id, email string, role domain.Role) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &domain.User{ID: id, Name: "user " + id, Email: email, Role: role, PasswordHash: "old-hash"}
	s.users[id] = u
	return cloneUser(u)
}

func (s *stubStore) user(id string) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUser(s.users[id])
}

func (s *stubStore) FindUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *stubStore) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *stubStore) CreateUser(_ context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	s.seq++
	created := cloneUser(user)
	created.ID = fmt.Sprintf("u-%d", s.seq)
	s.users[created.ID] = cloneUser(created)
	return created, nil
}

func (s *stubStore) SaveUser(_ context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	if _, ok := s.users[user.ID]; !ok {
		return nil, domain.ErrUserNotFound
	}
	s.saves++
	s.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (s *stubStore) CreateResetRequest(_ context.Context, req *domain.ChangePasswordRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets[req.ID] = cloneReset(req)
	return nil
}

func (s *stubStore) FindResetRequest(_ context.Context, id string) (*domain.ChangePasswordRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resets[id]
	if !ok {
		return nil, domain.ErrResetNotFound
	}
	return cloneReset(r), nil
}

// CompareAndConsume mirrors the conditional update performed by the real stores.
func (s *stubStore) CompareAndConsume(_ context.Context, id, hash string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resets[id]
	if !ok {
		return false, domain.ErrResetNotFound
	}
	if r.Consumed || !now.Before(r.ExpiresAt) {
		return false, nil
	}
	r.Consumed = true
	at := now
	r.ConsumedAt = &at
	s.users[r.UserID].PasswordHash = hash
	s.consumes++
	return true, nil
}

// plainHasher keeps tests fast; bcrypt is covered separately.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
