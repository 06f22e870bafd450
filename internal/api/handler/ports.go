package handler

import (
	"context"

	"github.com/psyportal/portal-client/internal/api/backend"
	"github.com/psyportal/portal-client/internal/core/domain"
)

// Accounts is the account directory the auth routes serve.
type Accounts interface {
	Register(ctx context.Context, reg domain.Registration) (*domain.User, string, error)
	Login(ctx context.Context, email, password string) (*domain.User, *domain.Credential, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Credential, error)
	Logout(ctx context.Context, refreshToken string)
	User(ctx context.Context, id int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, id int64, patch domain.ProfilePatch) (*domain.User, error)
	VerifyEmail(ctx context.Context, email, token string) error
	ResendVerification(ctx context.Context, email string) (string, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, reset domain.PasswordReset) error
}

// Therapists is the read side of the therapist catalog.
type Therapists interface {
	List(ctx context.Context, f domain.TherapistFilters) backend.TherapistList
	Get(ctx context.Context, id int64) (*backend.TherapistRecord, error)
	Stats(ctx context.Context) domain.Stats
}

// Sessions stores bookings.
type Sessions interface {
	List(ctx context.Context, clientID int64, f domain.SessionFilters) []domain.TherapySession
	Book(ctx context.Context, clientID int64, therapist *backend.TherapistRecord, req domain.Booking) domain.TherapySession
	Cancel(ctx context.Context, clientID, id int64, reason string) (domain.TherapySession, error)
	Rate(ctx context.Context, clientID, id int64, r domain.Rating) (domain.SessionRating, error)
}
