package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/psyportal/portal-client/internal/core/domain"
)

// Context keys set by the Auth middleware.
const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
	CtxRole   = "role"
)

// ctxClaims extracts the identity injected by the Auth middleware. A missing
// user id means the middleware did not run on this route.
func ctxClaims(c echo.Context) (userID int64, role domain.Role, err error) {
	userID, _ = c.Get(CtxUserID).(int64)
	if userID <= 0 {
		return 0, "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	role, _ = c.Get(CtxRole).(domain.Role)
	return userID, role, nil
}
