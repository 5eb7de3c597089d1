package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the kind of account a user holds.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStudent  Role = "student"
	RoleExternal Role = "external"
)

// ParseRole converts a raw role claim or payload value into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleStudent, RoleExternal:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
}

// User models an account holder.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Caller is the resolved identity of whoever issued a request.
type Caller struct {
	ID   string
	Role Role
}

// Field names a mutable user attribute.
type Field string

const (
	FieldName     Field = "name"
	FieldEmail    Field = "email"
	FieldPassword Field = "password"
	FieldRole     Field = "role"
)

// FieldSet is an unordered set of fields.
type FieldSet map[Field]struct{}

// NewFieldSet builds a set from the given fields.
func NewFieldSet(fields ...Field) FieldSet {
	s := make(FieldSet, len(fields))
	for _, f := range fields {
		s[f] = struct{}{}
	}
	return s
}

func (s FieldSet) Has(f Field) bool {
	_, ok := s[f]
	return ok
}

// Without returns a copy of s minus the given fields.
func (s FieldSet) Without(fields ...Field) FieldSet {
	out := make(FieldSet, len(s))
	for f := range s {
		out[f] = struct{}{}
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// UserChanges carries the requested attribute changes. A nil field was not
// requested.
type UserChanges struct {
	Name     *string
	Email    *string
	Password *string
	Role     *Role
}

// Fields reports which attributes the change set touches.
func (c UserChanges) Fields() FieldSet {
	s := make(FieldSet, 4)
	if c.Name != nil {
		s[FieldName] = struct{}{}
	}
	if c.Email != nil {
		s[FieldEmail] = struct{}{}
	}
	if c.Password != nil {
		s[FieldPassword] = struct{}{}
	}
	if c.Role != nil {
		s[FieldRole] = struct{}{}
	}
	return s
}

// Only drops every change whose field is not in permitted.
func (c UserChanges) Only(permitted FieldSet) UserChanges {
	var out UserChanges
	if permitted.Has(FieldName) {
		out.Name = c.Name
	}
	if permitted.Has(FieldEmail) {
		out.Email = c.Email
	}
	if permitted.Has(FieldPassword) {
		out.Password = c.Password
	}
	if permitted.Has(FieldRole) {
		out.Role = c.Role
	}
	return out
}

// Empty reports whether no change is requested.
func (c UserChanges) Empty() bool {
	return len(c.Fields()) == 0
}
