package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/learnhub/account-service/internal/core/domain"
)

type userRow struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	Role         string `db:"role"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

func (r userRow) toDomain() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         domain.Role(r.Role),
		CreatedAt:    fromNanos(r.CreatedAt),
		UpdatedAt:    fromNanos(r.UpdatedAt),
	}
}

type resetRow struct {
	ID         string        `db:"id"`
	UserID     string        `db:"user_id"`
	CreatedAt  int64         `db:"created_at"`
	ExpiresAt  int64         `db:"expires_at"`
	Consumed   int           `db:"consumed"`
	ConsumedAt sql.NullInt64 `db:"consumed_at"`
}

func (r resetRow) toDomain() *domain.ChangePasswordRequest {
	req := &domain.ChangePasswordRequest{
		ID:        r.ID,
		UserID:    r.UserID,
		CreatedAt: fromNanos(r.CreatedAt),
		ExpiresAt: fromNanos(r.ExpiresAt),
		Consumed:  r.Consumed != 0,
	}
	if r.ConsumedAt.Valid {
		at := fromNanos(r.ConsumedAt.Int64)
		req.ConsumedAt = &at
	}
	return req
}

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

func (s *Store) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email))
}

func (s *Store) findUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	now := time.Now().UTC()
	created := *user
	created.ID = uuid.NewString()
	created.Email = strings.ToLower(user.Email)
	created.CreatedAt = now
	created.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (:id, :name, :email, :password_hash, :role, :created_at, :updated_at)`,
		toUserRow(&created),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &created, nil
}

func (s *Store) SaveUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	saved := *user
	saved.Email = strings.ToLower(user.Email)
	saved.UpdatedAt = time.Now().UTC()

	res, err := s.db.NamedExecContext(ctx,
		`UPDATE users
		 SET name = :name, email = :email, password_hash = :password_hash, role = :role, updated_at = :updated_at
		 WHERE id = :id`,
		toUserRow(&saved),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, domain.ErrUserNotFound
	}
	return &saved, nil
}

func (s *Store) CreateResetRequest(ctx context.Context, req *domain.ChangePasswordRequest) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO password_resets (id, user_id, created_at, expires_at, consumed)
		 VALUES (?, ?, ?, ?, 0)`),
		req.ID, req.UserID, req.CreatedAt.UnixNano(), req.ExpiresAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert reset request: %w", err)
	}
	return nil
}

func (s *Store) FindResetRequest(ctx context.Context, id string) (*domain.ChangePasswordRequest, error) {
	var row resetRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(
		`SELECT id, user_id, created_at, expires_at, consumed, consumed_at
		 FROM password_resets WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrResetNotFound
		}
		return nil, fmt.Errorf("query reset request: %w", err)
	}
	return row.toDomain(), nil
}

// CompareAndConsume flips the consumed flag with a guarded UPDATE and writes
// the new hash in the same transaction.
func (s *Store) CompareAndConsume(ctx context.Context, id, passwordHash string, now time.Time) (ok bool, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin consume: %w", err)
	}
	defer func() {
		if !ok {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, tx.Rebind(
		`UPDATE password_resets SET consumed = 1, consumed_at = ?
		 WHERE id = ? AND consumed = 0 AND expires_at > ?`),
		now.UnixNano(), id, now.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("mark reset consumed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark reset consumed: %w", err)
	}
	if n == 0 {
		return false, s.resetExists(ctx, tx, id)
	}

	res, err = tx.ExecContext(ctx, tx.Rebind(
		`UPDATE users SET password_hash = ?, updated_at = ?
		 WHERE id = (SELECT user_id FROM password_resets WHERE id = ?)`),
		passwordHash, now.UnixNano(), id,
	)
	if err != nil {
		return false, fmt.Errorf("apply reset password: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return false, domain.ErrUserNotFound
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit consume: %w", err)
	}
	return true, nil
}

// resetExists returns ErrResetNotFound when id is unknown, nil otherwise.
func (s *Store) resetExists(ctx context.Context, tx *sqlx.Tx, id string) error {
	var count int
	if err := tx.GetContext(ctx, &count, tx.Rebind(`SELECT COUNT(*) FROM password_resets WHERE id = ?`), id); err != nil {
		return fmt.Errorf("query reset request: %w", err)
	}
	if count == 0 {
		return domain.ErrResetNotFound
	}
	return nil
}

func toUserRow(u *domain.User) userRow {
	return userRow{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt.UnixNano(),
		UpdatedAt:    u.UpdatedAt.UnixNano(),
	}
}

func fromNanos(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}
