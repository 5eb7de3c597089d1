package handler

import (
	"context"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/learnhub/account-service/internal/api/middleware"
	"github.com/learnhub/account-service/internal/core/domain"
	"github.com/learnhub/account-service/internal/core/ports"
)

type stubUserService struct {
	registerFn  func(ctx context.Context, in ports.RegisterInput) (*domain.User, error)
	provisionFn func(ctx context.Context, caller domain.Caller, in ports.RegisterInput) (*domain.User, error)
	getFn       func(ctx context.Context, caller domain.Caller, targetID string) (*domain.User, error)
	updateFn    func(ctx context.Context, caller domain.Caller, targetID string, changes domain.UserChanges) (*domain.User, error)
}

func (s *stubUserService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	return s.registerFn(ctx, in)
}

func (s *stubUserService) Provision(ctx context.Context, caller domain.Caller, in ports.RegisterInput) (*domain.User, error) {
	return s.provisionFn(ctx, caller, in)
}

func (s *stubUserService) GetUser(ctx context.Context, caller domain.Caller, targetID string) (*domain.User, error) {
	return s.getFn(ctx, caller, targetID)
}

func (s *stubUserService) UpdateUser(ctx context.Context, caller domain.Caller, targetID string, changes domain.UserChanges) (*domain.User, error) {
	return s.updateFn(ctx, caller, targetID, changes)
}

type stubResetService struct {
	issueFn    func(ctx context.Context, lookupKey string) (*domain.ChangePasswordRequest, error)
	validateFn func(ctx context.Context, id string) (*domain.ChangePasswordRequest, error)
	consumeFn  func(ctx context.Context, id, password string) error
}

func (s *stubResetService) Issue(ctx context.Context, lookupKey string) (*domain.ChangePasswordRequest, error) {
	return s.issueFn(ctx, lookupKey)
}

func (s *stubResetService) Validate(ctx context.Context, id string) (*domain.ChangePasswordRequest, error) {
	return s.validateFn(ctx, id)
}

func (s *stubResetService) Consume(ctx context.Context, id, password string) error {
	return s.consumeFn(ctx, id, password)
}

// newContext builds an echo context with the validator installed, optional
// JSON body, path param id and caller.
func newContext(method, path, body, id string, caller *domain.Caller) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if id != "" {
		c.SetParamNames("id")
		c.SetParamValues(id)
	}
	if caller != nil {
		c.Set(middleware.CallerKey, *caller)
	}
	return c, rec
}
