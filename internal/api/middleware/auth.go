package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/learnhub/account-service/internal/core/domain"
)

// CallerKey is the echo context key holding the resolved domain.Caller.
const CallerKey = "caller"

// IdentityResolver turns a bearer credential into a caller. Tokens are minted
// by an external identity provider; this service only verifies them.
type IdentityResolver func(ctx context.Context, bearer string) (domain.Caller, error)

// JWTResolver verifies HS256 tokens and reads the caller from the sub and
// role claims.
func JWTResolver(secret string) IdentityResolver {
	return func(_ context.Context, bearer string) (domain.Caller, error) {
		claims := jwt.MapClaims{}
		tkn, err := jwt.ParseWithClaims(bearer, claims, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !tkn.Valid {
			return domain.Caller{}, errors.New("invalid token")
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			return domain.Caller{}, errors.New("token missing subject")
		}
		raw, _ := claims["role"].(string)
		role, err := domain.ParseRole(raw)
		if err != nil {
			return domain.Caller{}, errors.New("token carries unknown role")
		}
		return domain.Caller{ID: sub, Role: role}, nil
	}
}

// Auth resolves the caller from the Authorization header and injects it into
// the context under CallerKey.
func Auth(resolve IdentityResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			caller, err := resolve(c.Request().Context(), parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			c.Set(CallerKey, caller)
			return next(c)
		}
	}
}
