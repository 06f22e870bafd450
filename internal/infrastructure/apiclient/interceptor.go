package apiclient

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/psyportal/portal-client/internal/core/ports"
)

// ClearingInterceptor is the default 401 policy: drop the stored session and
// send the user to sign in.
type ClearingInterceptor struct {
	creds ports.CredentialStore
	nav   ports.Navigator
	log   zerolog.Logger
}

var _ ports.UnauthorizedInterceptor = (*ClearingInterceptor)(nil)

// NewClearingInterceptor returns the default policy. nav may be nil.
func NewClearingInterceptor(creds ports.CredentialStore, nav ports.Navigator, log zerolog.Logger) *ClearingInterceptor {
	return &ClearingInterceptor{creds: creds, nav: nav, log: log}
}

func (i *ClearingInterceptor) HandleUnauthorized(ctx context.Context) {
	if err := i.creds.Clear(ctx); err != nil {
		i.log.Error().Err(err).Msg("clear session after unauthorized response")
	}
	if i.nav != nil {
		i.nav.ToSignIn(ctx)
	}
}
