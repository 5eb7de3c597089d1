package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/learnhub/account-service/internal/api/metrics"
	"github.com/learnhub/account-service/internal/api/middleware"
	"github.com/learnhub/account-service/internal/core/domain"
)

// callerFrom extracts the caller injected by the Auth middleware. A missing
// caller means the route was mounted without Auth, which is rejected with 401
// rather than treated as anonymous.
func callerFrom(c echo.Context) (domain.Caller, error) {
	caller, ok := c.Get(middleware.CallerKey).(domain.Caller)
	if !ok || caller.ID == "" {
		return domain.Caller{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return caller, nil
}

// bindAndValidate decodes the body into req and runs struct validation.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(req)
}

// outcomeOf reduces an error to the outcome label used by the counters.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrForbidden):
		return metrics.OutcomeDenied
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrResetNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, domain.ErrResetExpired):
		return metrics.OutcomeExpired
	case errors.Is(err, domain.ErrRateLimited):
		return metrics.OutcomeThrottled
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUserExists):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}
