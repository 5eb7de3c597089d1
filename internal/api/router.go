package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/learnhub/account-service/internal/api/docs"
	"github.com/learnhub/account-service/internal/api/handler"
	"github.com/learnhub/account-service/internal/api/middleware"
	"github.com/learnhub/account-service/internal/core/domain"
	"github.com/learnhub/account-service/internal/core/ports"
	"github.com/learnhub/account-service/internal/infrastructure/http/handlers"
)

// Dependencies is everything the HTTP layer needs from the composition root.
type Dependencies struct {
	Users    ports.UserService
	Resets   ports.PasswordResetService
	Resolver middleware.IdentityResolver
	// Readiness lists the backing services probed by /health/ready.
	Readiness []handlers.Dependency
	Log       zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddleware("account"))

	userHandler := handler.NewUserHandler(deps.Users)
	passwordHandler := handler.NewPasswordHandler(deps.Resets)
	auth := middleware.Auth(deps.Resolver)

	// --- Public routes ---
	e.POST("/auth/register", userHandler.Register)
	e.POST("/password/forgot", passwordHandler.Forgot)
	e.GET("/password/reset/:id", passwordHandler.Validate)
	e.POST("/password/reset/:id", passwordHandler.Consume)

	// --- Authenticated routes ---
	v1 := e.Group("/v1", auth)
	v1.POST("/users", userHandler.Provision, middleware.RBAC(domain.RoleAdmin))
	v1.GET("/users/:id", userHandler.Get)
	v1.PATCH("/users/:id", userHandler.Update)

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(deps.Readiness...)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Ops ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Status >= 500 {
				evt = log.Error().Err(v.Error)
			}
			evt.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
