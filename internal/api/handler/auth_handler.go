package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/psyportal/portal-client/internal/api/backend"
	"github.com/psyportal/portal-client/internal/core/domain"
	"github.com/psyportal/portal-client/internal/metrics"
)

type AuthHandler struct {
	accounts Accounts
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthHandler(accounts Accounts, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, log: log, now: time.Now}
}

// tokenPair is the wire form of a credential. The client derives the expiry
// instant itself, so only the relative lifetime is sent.
type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}

type loginResponse struct {
	User   *domain.User `json:"user"`
	Tokens tokenPair    `json:"tokens"`
}

type registerResponse struct {
	Message string       `json:"message"`
	User    *domain.User `json:"user,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *AuthHandler) wire(cred *domain.Credential) tokenPair {
	out := tokenPair{AccessToken: cred.AccessToken, RefreshToken: cred.RefreshToken, ExpiresIn: cred.ExpiresIn}
	if out.ExpiresIn == 0 && !cred.ExpiresAt.IsZero() {
		out.ExpiresIn = int64(cred.ExpiresAt.Sub(h.now()).Seconds())
	}
	return out
}

// Register creates an unverified account. The verification token is only
// logged; the stub sends no mail.
func (h *AuthHandler) Register(c echo.Context) error {
	var req domain.Registration
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(err)
	}

	user, verifyToken, err := h.accounts.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	h.log.Info().Str("email", user.Email).Str("verify_token", verifyToken).Msg("account registered")

	return ok(c, http.StatusCreated, registerResponse{
		Message: "Registration successful. Please check your email to verify your account.",
		User:    user,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req domain.LoginCredentials
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(err)
	}

	user, cred, err := h.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		metrics.StubLoginsTotal.WithLabelValues("rejected").Inc()
		return err
	}
	metrics.StubLoginsTotal.WithLabelValues("accepted").Inc()

	return ok(c, http.StatusOK, loginResponse{User: user, Tokens: h.wire(cred)})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(err)
	}

	cred, err := h.accounts.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, backend.ErrInvalidToken) || errors.Is(err, backend.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return err
	}
	return ok(c, http.StatusOK, struct {
		Tokens tokenPair `json:"tokens"`
	}{h.wire(cred)})
}

// Logout revokes the refresh token when one is sent. It always succeeds.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req logoutRequest
	_ = c.Bind(&req)
	if req.RefreshToken != "" {
		h.accounts.Logout(c.Request().Context(), req.RefreshToken)
	}
	return ok(c, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) Profile(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}
	user, err := h.accounts.User(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, user)
}

func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}
	var patch domain.ProfilePatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	user, err := h.accounts.UpdateProfile(c.Request().Context(), userID, patch)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, user)
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req domain.EmailVerification
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(err)
	}
	if err := h.accounts.VerifyEmail(c.Request().Context(), req.Email, req.Token); err != nil {
		return tokenError(err)
	}
	return ok(c, http.StatusOK, messageResponse{Message: "Email verified successfully"})
}

func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(err)
	}
	token, err := h.accounts.ResendVerification(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	if token != "" {
		h.log.Info().Str("email", req.Email).Str("verify_token", token).Msg("verification token reissued")
	}
	return ok(c, http.StatusOK, messageResponse{Message: "If the address is registered, a verification email has been sent"})
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(err)
	}
	token, err := h.accounts.ForgotPassword(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	if token != "" {
		h.log.Info().Str("email", req.Email).Str("reset_token", token).Msg("password reset requested")
	}
	return ok(c, http.StatusOK, messageResponse{Message: "If the address is registered, a reset link has been sent"})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req domain.PasswordReset
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(err)
	}
	if err := h.accounts.ResetPassword(c.Request().Context(), req); err != nil {
		return tokenError(err)
	}
	return ok(c, http.StatusOK, messageResponse{Message: "Password has been reset"})
}

// tokenError keeps a bad one-time token off 401, which clients read as a
// forced logout.
func tokenError(err error) error {
	if errors.Is(err, backend.ErrInvalidToken) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}
