package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/psyportal/portal-client/internal/core/domain"
	"github.com/psyportal/portal-client/internal/core/ports"
)

var _ ports.AuthAPI = (*Client)(nil)

// Login posts the credentials. When the answer carries tokens and a well-formed
// user they are persisted before Login returns, so the next request is already
// authorized. Any other answer leaves storage untouched.
func (c *Client) Login(ctx context.Context, creds domain.LoginCredentials) (*domain.Envelope[domain.LoginData], error) {
	if err := check(creds); err != nil {
		return nil, err
	}
	env, err := call[domain.LoginData](ctx, c, http.MethodPost, "/auth/login", creds)
	if err != nil {
		return nil, err
	}
	if !env.Success || env.Data == nil || !env.Data.Tokens.Valid() || !env.Data.User.WellFormed() {
		return env, nil
	}
	env.Data.Tokens.Stamp(c.now())
	if err := c.creds.Save(ctx, env.Data.Tokens, env.Data.User); err != nil {
		return nil, fmt.Errorf("login: persist session: %w", err)
	}
	return env, nil
}

func (c *Client) Register(ctx context.Context, data domain.Registration) (*domain.Envelope[domain.RegisterData], error) {
	if err := check(data); err != nil {
		return nil, err
	}
	return call[domain.RegisterData](ctx, c, http.MethodPost, "/auth/register", data)
}

// Logout tells the backend to revoke refreshToken. It does not touch the
// stored session; SessionStore.Logout owns clearing storage and memory
// together.
func (c *Client) Logout(ctx context.Context, refreshToken string) (*domain.Envelope[domain.MessageData], error) {
	var body any
	if refreshToken != "" {
		body = map[string]string{"refresh_token": refreshToken}
	}
	return call[domain.MessageData](ctx, c, http.MethodPost, "/auth/logout", body)
}

// Refresh exchanges a refresh token for a new credential. The returned
// credential is stamped but not persisted.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.Envelope[domain.RefreshData], error) {
	if refreshToken == "" {
		return nil, &domain.ValidationError{Fields: []string{"refresh_token is required"}}
	}
	env, err := call[domain.RefreshData](ctx, c, http.MethodPost, "/auth/refresh",
		map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}
	if env.Data != nil && env.Data.Tokens != nil {
		env.Data.Tokens.Stamp(c.now())
	}
	return env, nil
}

func (c *Client) Profile(ctx context.Context) (*domain.Envelope[domain.User], error) {
	return call[domain.User](ctx, c, http.MethodGet, "/auth/profile", nil)
}

func (c *Client) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) (*domain.Envelope[domain.User], error) {
	return call[domain.User](ctx, c, http.MethodPut, "/auth/profile", patch)
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (*domain.Envelope[domain.MessageData], error) {
	req := struct {
		Email string `json:"email" validate:"required,email"`
	}{Email: email}
	if err := check(req); err != nil {
		return nil, err
	}
	return call[domain.MessageData](ctx, c, http.MethodPost, "/auth/forgot-password", req)
}

func (c *Client) ResetPassword(ctx context.Context, data domain.PasswordReset) (*domain.Envelope[domain.MessageData], error) {
	if err := check(data); err != nil {
		return nil, err
	}
	return call[domain.MessageData](ctx, c, http.MethodPost, "/auth/reset-password", data)
}

func (c *Client) VerifyEmail(ctx context.Context, data domain.EmailVerification) (*domain.Envelope[domain.MessageData], error) {
	if err := check(data); err != nil {
		return nil, err
	}
	return call[domain.MessageData](ctx, c, http.MethodPost, "/auth/verify-email", data)
}

func (c *Client) ResendVerification(ctx context.Context, email string) (*domain.Envelope[domain.MessageData], error) {
	req := struct {
		Email string `json:"email" validate:"required,email"`
	}{Email: email}
	if err := check(req); err != nil {
		return nil, err
	}
	return call[domain.MessageData](ctx, c, http.MethodPost, "/auth/resend-verification", req)
}
