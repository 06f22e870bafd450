package ports

import (
	"context"

	"github.com/psyportal/portal-client/internal/core/domain"
)

// KeyValue is a durable string store scoped to one backend origin.
// Get reports domain.ErrNotFound for a missing key.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Toucher is implemented by media whose keys expire. Touch restarts the
// expiry of keys without rewriting them.
type Toucher interface {
	Touch(ctx context.Context, keys ...string) error
}

// CredentialStore is the typed view of the authentication keys.
type CredentialStore interface {
	// Token returns the access token, or "" when none is stored.
	Token(ctx context.Context) (string, error)
	// Load returns the persisted pair. Either value may be nil.
	// Malformed values are removed and reported as domain.ErrStaleStorage.
	Load(ctx context.Context) (*domain.Credential, *domain.User, error)
	Save(ctx context.Context, cred *domain.Credential, user *domain.User) error
	SaveUser(ctx context.Context, user *domain.User) error
	SaveCredential(ctx context.Context, cred *domain.Credential) error
	Clear(ctx context.Context) error
}
