package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/psyportal/portal-client/internal/api/handler"
	"github.com/psyportal/portal-client/internal/api/middleware"
	"github.com/psyportal/portal-client/internal/core/domain"
)

// APIPrefix is the mount point of every versioned route.
const APIPrefix = "/api/v1"

// Deps are the stores and clients the stub routes serve from.
type Deps struct {
	Accounts   handler.Accounts
	Tokens     middleware.TokenParser
	Therapists handler.Therapists
	Sessions   handler.Sessions
	// Redis is optional; when set it is included in the readiness probe.
	Redis redis.UniversalClient
	// Registry receives the HTTP metrics. A private registry is created
	// when nil so several routers can coexist in one process.
	Registry *prometheus.Registry
	Log      zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	reg := d.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "stubapi",
		Registerer: reg,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Accounts, d.Log)
	therapistHandler := handler.NewTherapistHandler(d.Therapists)
	sessionHandler := handler.NewSessionHandler(d.Sessions, d.Therapists)
	healthHandler := handler.NewHealthHandler(d.Redis)
	requireAuth := middleware.Auth(d.Tokens)

	// --- Probes and metrics (no auth required) ---
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{reg, prometheus.DefaultGatherer},
	}))

	v1 := e.Group(APIPrefix)
	v1.GET("/stats", therapistHandler.Stats)

	// --- Auth routes ---
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/reset-password", authHandler.ResetPassword)
	auth.POST("/verify-email", authHandler.VerifyEmail)
	auth.POST("/resend-verification", authHandler.ResendVerification)
	auth.GET("/profile", authHandler.Profile, requireAuth)
	auth.PUT("/profile", authHandler.UpdateProfile, requireAuth)

	// --- Catalog ---
	v1.GET("/therapists", therapistHandler.List)
	v1.GET("/therapists/:id", therapistHandler.Get)

	// --- Sessions (clients book, admins may act for support) ---
	sessions := v1.Group("/sessions", requireAuth, middleware.RBAC(domain.RoleClient, domain.RoleAdmin))
	sessions.GET("", sessionHandler.List)
	sessions.POST("", sessionHandler.Book)
	sessions.POST("/:id/cancel", sessionHandler.Cancel)
	sessions.POST("/:id/rating", sessionHandler.Rate)

	return e
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
