package service

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/psyportal/portal-client/internal/core/domain"
	"github.com/psyportal/portal-client/internal/core/ports"
	"github.com/psyportal/portal-client/internal/metrics"
)

const (
	msgLoginFailed        = "Login failed"
	msgRegisterFailed     = "Registration failed"
	msgRegistered         = "Registration successful. Please check your email to verify your account."
	msgProfileFailed      = "Profile update failed"
	msgVerificationFailed = "Email verification failed"
)

// SessionStore owns the authentication state of the process: the current
// user and credential, mirrored to durable storage. Consumers read it through
// Snapshot and Subscribe.
//
// Mutating operations are serialized by ops. The state lock mu is never
// held across a network call, so HandleUnauthorized can run while another
// operation is waiting on the backend.
type SessionStore struct {
	api   ports.AuthAPI
	creds ports.CredentialStore
	nav   ports.Navigator
	log   zerolog.Logger
	now   func() time.Time

	ops sync.Mutex

	mu    sync.RWMutex
	user  *domain.User
	cred  *domain.Credential
	state domain.AuthState

	subMu   sync.Mutex
	subs    map[uint64]func(domain.Snapshot)
	nextSub uint64
}

var _ ports.UnauthorizedInterceptor = (*SessionStore)(nil)

// StoreOption configures a SessionStore.
type StoreOption func(*SessionStore)

// WithNavigator sets where a forced logout sends the user.
func WithNavigator(nav ports.Navigator) StoreOption {
	return func(s *SessionStore) { s.nav = nav }
}

func WithLogger(log zerolog.Logger) StoreOption {
	return func(s *SessionStore) { s.log = log }
}

// WithClock overrides the time source used for credential expiry checks.
func WithClock(now func() time.Time) StoreOption {
	return func(s *SessionStore) { s.now = now }
}

func NewSessionStore(api ports.AuthAPI, creds ports.CredentialStore, opts ...StoreOption) *SessionStore {
	s := &SessionStore{
		api:   api,
		creds: creds,
		log:   zerolog.Nop(),
		now:   time.Now,
		state: domain.StateInitializing,
		subs:  make(map[uint64]func(domain.Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init restores the persisted session. A stored credential and user are
// trusted without a network call; a credential without a user costs one
// profile fetch. Any failure leaves the store anonymous with storage cleared.
func (s *SessionStore) Init(ctx context.Context) domain.Snapshot {
	s.ops.Lock()
	defer s.ops.Unlock()

	cred, user, err := s.creds.Load(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("discarding unreadable stored session")
		s.dropSession(ctx)
		return s.Snapshot()
	}
	if !cred.Valid() {
		if user != nil {
			s.log.Debug().Msg("stored user without credential, clearing")
			s.dropSession(ctx)
		} else {
			s.apply(nil, nil, domain.StateAnonymous)
		}
		return s.Snapshot()
	}

	if cred.Expired(s.now()) {
		if cred.RefreshToken == "" {
			s.log.Info().Msg("stored credential expired")
			s.dropSession(ctx)
			return s.Snapshot()
		}
		rotated, err := s.rotate(ctx, cred)
		if err != nil {
			s.log.Info().Err(err).Msg("refresh of expired credential failed")
			s.dropSession(ctx)
			return s.Snapshot()
		}
		cred = rotated
	}

	if user.WellFormed() {
		s.apply(user, cred, domain.StateAuthenticated)
		return s.Snapshot()
	}

	fetched, err := s.fetchProfile(ctx)
	if err != nil {
		s.log.Info().Err(err).Msg("stored credential rejected")
		s.dropSession(ctx)
		return s.Snapshot()
	}
	if err := s.creds.SaveUser(ctx, fetched); err != nil {
		s.log.Error().Err(err).Msg("persist fetched profile")
		s.dropSession(ctx)
		return s.Snapshot()
	}
	s.apply(fetched, cred, domain.StateAuthenticated)
	return s.Snapshot()
}

// Login authenticates with the backend. On failure the current state is
// left as it was.
func (s *SessionStore) Login(ctx context.Context, creds domain.LoginCredentials) domain.Result {
	s.ops.Lock()
	defer s.ops.Unlock()

	env, err := s.api.Login(ctx, creds)
	if err != nil {
		s.log.Debug().Err(err).Str("email", creds.Email).Msg("login failed")
		return domain.Result{Error: domain.Message(err)}
	}
	if !env.Success || env.Data == nil || !env.Data.User.WellFormed() || !env.Data.Tokens.Valid() {
		return domain.Result{Error: orDefault(env.Error, msgLoginFailed)}
	}

	s.apply(env.Data.User, env.Data.Tokens, domain.StateAuthenticated)
	s.log.Info().Int64("user_id", env.Data.User.ID).Msg("signed in")
	return domain.Result{Success: true}
}

// Register creates an account. It never signs the user in; the account has
// to be verified first.
func (s *SessionStore) Register(ctx context.Context, data domain.Registration) domain.Result {
	env, err := s.api.Register(ctx, data)
	if err != nil {
		return domain.Result{Error: domain.Message(err)}
	}
	if !env.Success {
		return domain.Result{Error: orDefault(env.Error, msgRegisterFailed)}
	}
	msg := msgRegistered
	if env.Data != nil && env.Data.Message != "" {
		msg = env.Data.Message
	}
	return domain.Result{Success: true, Message: msg}
}

// Logout revokes the refresh token when there is one and always ends the
// local session, whatever the backend answers.
func (s *SessionStore) Logout(ctx context.Context) {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.RLock()
	state, cred := s.state, s.cred
	s.mu.RUnlock()
	if state == domain.StateAnonymous {
		return
	}

	if cred != nil && cred.RefreshToken != "" {
		if _, err := s.api.Logout(ctx, cred.RefreshToken); err != nil {
			s.log.Debug().Err(err).Msg("backend logout failed, clearing locally")
		}
	}
	s.dropSession(ctx)
	s.log.Info().Msg("signed out")
}

// UpdateProfile applies patch to the signed-in user.
func (s *SessionStore) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) domain.Result {
	s.ops.Lock()
	defer s.ops.Unlock()

	env, err := s.api.UpdateProfile(ctx, patch)
	if err != nil {
		return domain.Result{Error: domain.Message(err)}
	}
	if !env.Success || !env.Data.WellFormed() {
		return domain.Result{Error: orDefault(env.Error, msgProfileFailed)}
	}

	s.mu.RLock()
	state, cred := s.state, s.cred
	s.mu.RUnlock()
	if state != domain.StateAuthenticated {
		return domain.Result{Error: domain.ErrUnauthorized.Error()}
	}

	if err := s.creds.SaveUser(ctx, env.Data); err != nil {
		s.log.Error().Err(err).Msg("persist updated profile")
		return domain.Result{Error: domain.Message(err)}
	}
	s.apply(env.Data, cred, domain.StateAuthenticated)
	return domain.Result{Success: true}
}

// Refresh rotates the credential using its refresh token.
func (s *SessionStore) Refresh(ctx context.Context) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.RLock()
	user, cred := s.user, s.cred
	s.mu.RUnlock()
	if user == nil || cred == nil || cred.RefreshToken == "" {
		return domain.ErrUnauthorized
	}

	rotated, err := s.rotate(ctx, cred)
	if err != nil {
		return err
	}
	s.apply(user, rotated, domain.StateAuthenticated)
	return nil
}

// VerifyEmail confirms an address. When it belongs to the signed-in user the
// cached record is marked verified.
func (s *SessionStore) VerifyEmail(ctx context.Context, token, email string) domain.Result {
	s.ops.Lock()
	defer s.ops.Unlock()

	env, err := s.api.VerifyEmail(ctx, domain.EmailVerification{Token: token, Email: email})
	if err != nil {
		return domain.Result{Error: domain.Message(err)}
	}
	if !env.Success {
		return domain.Result{Error: orDefault(env.Error, msgVerificationFailed)}
	}
	res := domain.Result{Success: true}
	if env.Data != nil {
		res.Message = env.Data.Message
	}

	s.mu.RLock()
	user, cred := s.user.Clone(), s.cred
	s.mu.RUnlock()
	if user == nil || !strings.EqualFold(user.Email, email) || user.IsEmailVerified {
		return res
	}

	user.IsEmailVerified = true
	if err := s.creds.SaveUser(ctx, user); err != nil {
		s.log.Error().Err(err).Msg("persist verified flag")
		return res
	}
	s.apply(user, cred, domain.StateAuthenticated)
	return res
}

// RequireRole reports whether the signed-in user may enter a page guarded by
// roles. No roles means any signed-in user.
func (s *SessionStore) RequireRole(roles ...domain.Role) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return domain.ErrUnauthorized
	}
	if len(roles) == 0 || slices.Contains(roles, s.user.Role) {
		return nil
	}
	return domain.ErrForbidden
}

func (s *SessionStore) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.NewSnapshot(s.user, s.state, s.state == domain.StateInitializing)
}

// Subscribe registers fn to receive every new snapshot. fn runs on the
// goroutine that changed the state, after all locks are released. The
// returned func unsubscribes.
func (s *SessionStore) Subscribe(fn func(domain.Snapshot)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// HandleUnauthorized drops the session after the backend rejected the
// credential, then sends the user to sign in.
func (s *SessionStore) HandleUnauthorized(ctx context.Context) {
	s.dropSession(ctx)
	if s.nav != nil {
		s.nav.ToSignIn(ctx)
	}
}

// Resync re-reads storage after it was changed from outside this store,
// for example by another process sharing the same session file.
func (s *SessionStore) Resync(ctx context.Context) {
	s.ops.Lock()
	defer s.ops.Unlock()

	cred, user, err := s.creds.Load(ctx)
	if err != nil || !cred.Valid() || !user.WellFormed() {
		if err != nil {
			s.log.Warn().Err(err).Msg("resync: unreadable stored session")
		}
		s.mu.RLock()
		anonymous := s.state == domain.StateAnonymous
		s.mu.RUnlock()
		if !anonymous {
			s.apply(nil, nil, domain.StateAnonymous)
		}
		return
	}

	s.mu.RLock()
	unchanged := s.state == domain.StateAuthenticated &&
		s.cred != nil && s.cred.AccessToken == cred.AccessToken &&
		reflect.DeepEqual(s.user, user)
	s.mu.RUnlock()
	if !unchanged {
		s.apply(user, cred, domain.StateAuthenticated)
	}
}

func (s *SessionStore) fetchProfile(ctx context.Context) (*domain.User, error) {
	env, err := s.api.Profile(ctx)
	if err != nil {
		return nil, err
	}
	if !env.Success || !env.Data.WellFormed() {
		return nil, errors.New(orDefault(env.Error, "profile unavailable"))
	}
	return env.Data, nil
}

// rotate exchanges cred's refresh token and persists the new credential.
func (s *SessionStore) rotate(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
	env, err := s.api.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !env.Success || env.Data == nil || !env.Data.Tokens.Valid() {
		return nil, errors.New(orDefault(env.Error, "refresh rejected"))
	}
	next := *env.Data.Tokens
	if next.RefreshToken == "" {
		next.RefreshToken = cred.RefreshToken
	}
	next.Stamp(s.now())
	if err := s.creds.SaveCredential(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// dropSession clears storage and memory. Storage errors are logged; memory is
// cleared regardless.
func (s *SessionStore) dropSession(ctx context.Context) {
	if err := s.creds.Clear(ctx); err != nil {
		s.log.Error().Err(err).Msg("clear stored session")
	}
	s.apply(nil, nil, domain.StateAnonymous)
}

// apply replaces the in-memory session and notifies subscribers.
func (s *SessionStore) apply(user *domain.User, cred *domain.Credential, state domain.AuthState) {
	if user == nil || cred == nil {
		user, cred, state = nil, nil, domain.StateAnonymous
	}

	s.mu.Lock()
	prev := s.state
	s.user = user.Clone()
	if cred != nil {
		c := *cred
		s.cred = &c
	} else {
		s.cred = nil
	}
	s.state = state
	snap := domain.NewSnapshot(s.user, s.state, false)
	s.mu.Unlock()

	if prev != state {
		metrics.SessionTransitionsTotal.WithLabelValues(string(state)).Inc()
		s.log.Debug().Str("from", string(prev)).Str("to", string(state)).Msg("session state changed")
	}
	s.notify(snap)
}

func (s *SessionStore) notify(snap domain.Snapshot) {
	s.subMu.Lock()
	fns := make([]func(domain.Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func orDefault(msg, fallback string) string {
	if strings.TrimSpace(msg) == "" {
		return fallback
	}
	return msg
}
