package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/learnhub/account-service/internal/api/metrics"
	"github.com/learnhub/account-service/internal/core/domain"
	"github.com/learnhub/account-service/internal/core/ports"
)

const (
	stageIssue    = "issue"
	stageValidate = "validate"
	stageConsume  = "consume"
)

// PasswordHandler exposes the password reset handshake. None of its routes
// require authentication: possession of the request id is the credential.
type PasswordHandler struct {
	service ports.PasswordResetService
}

func NewPasswordHandler(service ports.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{service: service}
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type forgotPasswordResponse struct {
	Status    string `json:"status"`
	ExpiresAt string `json:"expires_at"`
}

type resetStatusResponse struct {
	Status    string `json:"status"`
	ExpiresAt string `json:"expires_at"`
}

type consumeResetRequest struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Forgot handles POST /password/forgot. The request id is only ever sent to
// the account's email address, never returned to the caller.
//
// @Summary      Start a password reset
// @Tags         password
// @Accept       json
// @Produce      json
// @Param        body  body      forgotPasswordRequest  true  "Account email"
// @Success      202   {object}  forgotPasswordResponse
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /password/forgot [post]
func (h *PasswordHandler) Forgot(c echo.Context) error {
	var req forgotPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	reset, err := h.service.Issue(c.Request().Context(), req.Email)
	metrics.PasswordResetsTotal.WithLabelValues(stageIssue, outcomeOf(err)).Inc()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, forgotPasswordResponse{
		Status:    "accepted",
		ExpiresAt: reset.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Validate handles GET /password/reset/:id.
//
// @Summary      Check a password reset request
// @Tags         password
// @Produce      json
// @Param        id   path      string  true  "Reset request ID"
// @Success      200  {object}  resetStatusResponse
// @Failure      404  {object}  map[string]string
// @Failure      410  {object}  map[string]string
// @Router       /password/reset/{id} [get]
func (h *PasswordHandler) Validate(c echo.Context) error {
	reset, err := h.service.Validate(c.Request().Context(), c.Param("id"))
	metrics.PasswordResetsTotal.WithLabelValues(stageValidate, outcomeOf(err)).Inc()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resetStatusResponse{
		Status:    string(domain.ResetPending),
		ExpiresAt: reset.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Consume handles POST /password/reset/:id.
//
// @Summary      Complete a password reset
// @Tags         password
// @Accept       json
// @Param        id    path  string               true  "Reset request ID"
// @Param        body  body  consumeResetRequest  true  "New password"
// @Success      204
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      410   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /password/reset/{id} [post]
func (h *PasswordHandler) Consume(c echo.Context) error {
	var req consumeResetRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	err := h.service.Consume(c.Request().Context(), c.Param("id"), req.Password)
	metrics.PasswordResetsTotal.WithLabelValues(stageConsume, outcomeOf(err)).Inc()
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
