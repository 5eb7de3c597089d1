package service

import (
	"github.com/learnhub/account-service/internal/core/domain"
)

// Decide returns the subset of requested fields the caller may change on the
// target account. It has no side effects.
//
//	external → ErrUnauthorized
//	student  → own account only (ErrForbidden otherwise), never the role field
//	admin    → everything, on any account
func Decide(caller domain.Caller, targetID string, requested domain.FieldSet) (domain.FieldSet, error) {
	switch caller.Role {
	case domain.RoleAdmin:
		return requested.Without(), nil
	case domain.RoleStudent:
		if targetID != caller.ID {
			return nil, domain.ErrForbidden
		}
		return requested.Without(domain.FieldRole), nil
	case domain.RoleExternal:
		return nil, domain.ErrUnauthorized
	default:
		return nil, domain.ErrUnauthorized
	}
}

// CanView applies the same ownership rule to reads.
func CanView(caller domain.Caller, targetID string) error {
	_, err := Decide(caller, targetID, nil)
	return err
}
