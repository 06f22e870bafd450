package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/psyportal/portal-client/internal/api/backend"
	"github.com/psyportal/portal-client/internal/api/handler"
)

// TokenParser verifies an access token.
type TokenParser interface {
	Parse(token string) (*backend.Claims, error)
}

// Auth validates the bearer JWT and injects its claims into the context.
func Auth(parser TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authorization required")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := parser.Parse(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(handler.CtxUserID, claims.UserID)
			c.Set(handler.CtxEmail, claims.Email)
			c.Set(handler.CtxRole, claims.Role)

			return next(c)
		}
	}
}
