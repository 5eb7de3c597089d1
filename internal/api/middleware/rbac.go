package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/learnhub/account-service/internal/core/domain"
)

// RBAC enforces role-based access control on routes that are reserved for a
// fixed set of roles. Fine-grained self-or-other checks live in the services.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, _ := c.Get(CallerKey).(domain.Caller)
			if _, ok := allowed[caller.Role]; !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
