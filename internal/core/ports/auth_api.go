package ports

import (
	"context"

	"github.com/psyportal/portal-client/internal/core/domain"
)

// AuthAPI is the part of the backend contract the session store drives.
// Every method returns the backend envelope unchanged; err is non-nil only
// when no well-formed successful answer was received.
type AuthAPI interface {
	Login(ctx context.Context, creds domain.LoginCredentials) (*domain.Envelope[domain.LoginData], error)
	Register(ctx context.Context, data domain.Registration) (*domain.Envelope[domain.RegisterData], error)
	Logout(ctx context.Context, refreshToken string) (*domain.Envelope[domain.MessageData], error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Envelope[domain.RefreshData], error)
	Profile(ctx context.Context) (*domain.Envelope[domain.User], error)
	UpdateProfile(ctx context.Context, patch domain.ProfilePatch) (*domain.Envelope[domain.User], error)
	VerifyEmail(ctx context.Context, data domain.EmailVerification) (*domain.Envelope[domain.MessageData], error)
}

// TherapistAPI lists and fetches therapists.
type TherapistAPI interface {
	Therapists(ctx context.Context, filters domain.TherapistFilters) (*domain.Envelope[domain.TherapistPage], error)
}

// SessionAPI manages the caller's therapy sessions.
type SessionAPI interface {
	Sessions(ctx context.Context, filters domain.SessionFilters) (*domain.Envelope[domain.SessionList], error)
	CancelSession(ctx context.Context, id int64, reason string) (*domain.Envelope[domain.TherapySession], error)
	RateSession(ctx context.Context, id int64, rating domain.Rating) (*domain.Envelope[domain.SessionRating], error)
}
