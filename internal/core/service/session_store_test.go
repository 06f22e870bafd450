package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/psyportal/portal-client/internal/core/domain"
	"github.com/psyportal/portal-client/internal/core/ports"
	"github.com/psyportal/portal-client/internal/infrastructure/storage"
)

// stubAuthAPI mimics the API client: a successful login is persisted before
// returning and a 401 runs the interceptor first.
type stubAuthAPI struct {
	creds       ports.CredentialStore
	interceptor ports.UnauthorizedInterceptor

	mu sync.Mutex

	loginEnv *domain.Envelope[domain.LoginData]
	loginErr error

	registerEnv *domain.Envelope[domain.RegisterData]
	registerErr error

	logoutErr   error
	logoutCalls int
	logoutToken string

	refreshEnv   *domain.Envelope[domain.RefreshData]
	refreshErr   error
	refreshCalls int

	profileEnv   *domain.Envelope[domain.User]
	profileErr   error
	profileCalls int

	updateEnv *domain.Envelope[domain.User]
	updateErr error

	verifyEnv *domain.Envelope[domain.MessageData]
	verifyErr error
}

func (s *stubAuthAPI) unauthorized(ctx context.Context, err error) error {
	if errors.Is(err, domain.ErrUnauthorized) && s.interceptor != nil {
		s.interceptor.HandleUnauthorized(ctx)
	}
	return err
}

func (s *stubAuthAPI) Login(ctx context.Context, _ domain.LoginCredentials) (*domain.Envelope[domain.LoginData], error) {
	s.mu.Lock()
	env, err := s.loginEnv, s.loginErr
	s.mu.Unlock()
	if err != nil {
		return nil, s.unauthorized(ctx, err)
	}
	if env.Success && env.Data != nil && env.Data.Tokens.Valid() && env.Data.User.WellFormed() {
		if err := s.creds.Save(ctx, env.Data.Tokens, env.Data.User); err != nil {
			return nil, err
		}
	}
	return env, nil
}

func (s *stubAuthAPI) Register(ctx context.Context, _ domain.Registration) (*domain.Envelope[domain.RegisterData], error) {
	return s.registerEnv, s.registerErr
}

func (s *stubAuthAPI) Logout(ctx context.Context, refreshToken string) (*domain.Envelope[domain.MessageData], error) {
	s.mu.Lock()
	s.logoutCalls++
	s.logoutToken = refreshToken
	s.mu.Unlock()
	if s.logoutErr != nil {
		return nil, s.logoutErr
	}
	return &domain.Envelope[domain.MessageData]{Success: true}, nil
}

func (s *stubAuthAPI) Refresh(ctx context.Context, _ string) (*domain.Envelope[domain.RefreshData], error) {
	s.mu.Lock()
	s.refreshCalls++
	s.mu.Unlock()
	if s.refreshErr != nil {
		return nil, s.unauthorized(ctx, s.refreshErr)
	}
	return s.refreshEnv, nil
}

func (s *stubAuthAPI) Profile(ctx context.Context) (*domain.Envelope[domain.User], error) {
	s.mu.Lock()
	s.profileCalls++
	s.mu.Unlock()
	if s.profileErr != nil {
		return nil, s.unauthorized(ctx, s.profileErr)
	}
	return s.profileEnv, nil
}

func (s *stubAuthAPI) UpdateProfile(ctx context.Context, _ domain.ProfilePatch) (*domain.Envelope[domain.User], error) {
	if s.updateErr != nil {
		return nil, s.unauthorized(ctx, s.updateErr)
	}
	return s.updateEnv, nil
}

func (s *stubAuthAPI) VerifyEmail(ctx context.Context, _ domain.EmailVerification) (*domain.Envelope[domain.MessageData], error) {
	return s.verifyEnv, s.verifyErr
}

type countingNavigator struct {
	mu    sync.Mutex
	calls int
}

func (n *countingNavigator) ToSignIn(context.Context) {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
}

type fixture struct {
	kv    *storage.Memory
	creds *storage.AuthStorage
	api   *stubAuthAPI
	nav   *countingNavigator
	store *SessionStore
}

var testNow = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := storage.NewMemory()
	creds := storage.NewAuthStorage(kv, zerolog.Nop())
	api := &stubAuthAPI{creds: creds}
	nav := &countingNavigator{}
	store := NewSessionStore(api, creds,
		WithNavigator(nav),
		WithClock(func() time.Time { return testNow }))
	api.interceptor = store
	return &fixture{kv: kv, creds: creds, api: api, nav: nav, store: store}
}

func testUser() *domain.User {
	return &domain.User{ID: 1, Email: "a@b.c", Name: "Ana", Role: domain.RoleClient}
}

func testCred(token string) *domain.Credential {
	return &domain.Credential{AccessToken: token, RefreshToken: "refresh-" + token}
}

func okLogin(token string) *domain.Envelope[domain.LoginData] {
	return &domain.Envelope[domain.LoginData]{
		Success: true,
		Data:    &domain.LoginData{User: testUser(), Tokens: testCred(token)},
	}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	if err := f.creds.Save(context.Background(), testCred("T1"), testUser()); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func (f *fixture) stored(t *testing.T) (*domain.Credential, *domain.User) {
	t.Helper()
	cred, user, err := f.creds.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return cred, user
}

func TestSessionStore_InitialSnapshotIsLoading(t *testing.T) {
	f := newFixture(t)
	snap := f.store.Snapshot()
	if !snap.IsLoading || snap.IsAuthenticated || snap.State != domain.StateInitializing {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}
}

func TestSessionStore_InitNothingStored(t *testing.T) {
	f := newFixture(t)
	snap := f.store.Init(context.Background())

	if snap.State != domain.StateAnonymous || snap.IsAuthenticated || snap.IsLoading {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if f.api.profileCalls != 0 {
		t.Fatalf("expected no network call, got %d profile calls", f.api.profileCalls)
	}
}

func TestSessionStore_InitOptimisticRestore(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	snap := f.store.Init(context.Background())

	if snap.State != domain.StateAuthenticated || !snap.IsAuthenticated {
		t.Fatalf("expected authenticated, got %+v", snap)
	}
	if snap.User == nil || snap.User.ID != 1 {
		t.Fatalf("unexpected user: %+v", snap.User)
	}
	if f.api.profileCalls != 0 {
		t.Fatal("restore must not call the backend")
	}
}

func TestSessionStore_InitTokenWithoutUserFetchesProfile(t *testing.T) {
	f := newFixture(t)
	_ = f.creds.SaveCredential(context.Background(), testCred("T1"))
	f.api.profileEnv = &domain.Envelope[domain.User]{Success: true, Data: testUser()}

	snap := f.store.Init(context.Background())

	if f.api.profileCalls != 1 {
		t.Fatalf("profile calls = %d, want 1", f.api.profileCalls)
	}
	if snap.State != domain.StateAuthenticated {
		t.Fatalf("state = %s", snap.State)
	}
	_, user := f.stored(t)
	if user == nil || user.ID != 1 {
		t.Fatalf("fetched user not persisted: %+v", user)
	}
}

func TestSessionStore_InitStaleTokenRejected(t *testing.T) {
	f := newFixture(t)
	_ = f.creds.SaveCredential(context.Background(), testCred("stale"))
	f.api.profileErr = domain.NewAPIError(401, "")

	snap := f.store.Init(context.Background())

	if snap.State != domain.StateAnonymous || snap.IsAuthenticated {
		t.Fatalf("expected anonymous, got %+v", snap)
	}
	cred, user := f.stored(t)
	if cred != nil || user != nil {
		t.Fatalf("storage not cleared: %+v %+v", cred, user)
	}
	if f.nav.calls != 1 {
		t.Errorf("navigator calls = %d, want 1", f.nav.calls)
	}
}

func TestSessionStore_InitMalformedStorage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.kv.Set(ctx, storage.KeyTokens, `{"access_token":"T1"}`)
	_ = f.kv.Set(ctx, storage.KeyUser, `{"id":`)

	snap := f.store.Init(ctx)

	if snap.State != domain.StateAnonymous {
		t.Fatalf("state = %s", snap.State)
	}
	if _, err := f.kv.Get(ctx, storage.KeyUser); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("malformed user key left behind: %v", err)
	}
	if _, err := f.kv.Get(ctx, storage.KeyTokens); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("token key left behind: %v", err)
	}
}

func TestSessionStore_InitUserWithoutTokenIsCleared(t *testing.T) {
	f := newFixture(t)
	_ = f.creds.SaveUser(context.Background(), testUser())

	snap := f.store.Init(context.Background())

	if snap.State != domain.StateAnonymous {
		t.Fatalf("state = %s", snap.State)
	}
	if _, user := f.stored(t); user != nil {
		t.Fatal("orphan user should be removed")
	}
}

func TestSessionStore_InitExpiredCredentialRefreshes(t *testing.T) {
	f := newFixture(t)
	expired := testCred("old")
	expired.ExpiresAt = testNow.Add(-time.Minute)
	_ = f.creds.Save(context.Background(), expired, testUser())
	f.api.refreshEnv = &domain.Envelope[domain.RefreshData]{
		Success: true,
		Data:    &domain.RefreshData{Tokens: &domain.Credential{AccessToken: "new", ExpiresIn: 3600}},
	}

	snap := f.store.Init(context.Background())

	if snap.State != domain.StateAuthenticated {
		t.Fatalf("state = %s", snap.State)
	}
	cred, _ := f.stored(t)
	if cred.AccessToken != "new" {
		t.Errorf("access token = %q, want new", cred.AccessToken)
	}
	if cred.RefreshToken != "refresh-old" {
		t.Errorf("refresh token should be kept, got %q", cred.RefreshToken)
	}
	if !cred.ExpiresAt.Equal(testNow.Add(time.Hour)) {
		t.Errorf("expires_at = %v", cred.ExpiresAt)
	}
}

func TestSessionStore_InitExpiredRefreshFails(t *testing.T) {
	f := newFixture(t)
	expired := testCred("old")
	expired.ExpiresAt = testNow.Add(-time.Minute)
	_ = f.creds.Save(context.Background(), expired, testUser())
	f.api.refreshErr = domain.ErrNoConnection

	snap := f.store.Init(context.Background())

	if snap.State != domain.StateAnonymous {
		t.Fatalf("state = %s", snap.State)
	}
	if cred, _ := f.stored(t); cred != nil {
		t.Fatal("expired credential should be cleared")
	}
}

func TestSessionStore_LoginSuccess(t *testing.T) {
	f := newFixture(t)
	f.store.Init(context.Background())
	f.api.loginEnv = okLogin("T1")

	res := f.store.Login(context.Background(), domain.LoginCredentials{Email: "a@b.c", Password: "pw"})

	if !res.Success || res.Error != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	snap := f.store.Snapshot()
	if !snap.IsAuthenticated || snap.User.Email != "a@b.c" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	cred, user := f.stored(t)
	if cred.AccessToken != "T1" || user.ID != 1 {
		t.Fatalf("storage = %+v %+v", cred, user)
	}
}

func TestSessionStore_LoginFailureLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name    string
		env     *domain.Envelope[domain.LoginData]
		err     error
		wantErr string
	}{
		{
			name:    "backend rejects",
			env:     &domain.Envelope[domain.LoginData]{Success: false, Error: "invalid credentials"},
			wantErr: "invalid credentials",
		},
		{
			name:    "no connection",
			err:     domain.ErrNoConnection,
			wantErr: "no connection to server",
		},
		{
			name:    "success without tokens",
			env:     &domain.Envelope[domain.LoginData]{Success: true, Data: &domain.LoginData{User: testUser()}},
			wantErr: msgLoginFailed,
		},
		{
			name: "user without id",
			env: &domain.Envelope[domain.LoginData]{Success: true, Data: &domain.LoginData{
				User:   &domain.User{Email: "a@b.c"},
				Tokens: testCred("T2"),
			}},
			wantErr: msgLoginFailed,
		},
		{
			name: "user without email",
			env: &domain.Envelope[domain.LoginData]{Success: true, Data: &domain.LoginData{
				User:   &domain.User{ID: 2},
				Tokens: testCred("T2"),
			}},
			wantErr: msgLoginFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.store.Init(context.Background())
			f.api.loginEnv, f.api.loginErr = tt.env, tt.err

			res := f.store.Login(context.Background(), domain.LoginCredentials{Email: "a@b.c", Password: "x"})

			if res.Success || res.Error != tt.wantErr {
				t.Fatalf("result = %+v, want error %q", res, tt.wantErr)
			}
			snap := f.store.Snapshot()
			if snap.IsAuthenticated || snap.State != domain.StateAnonymous {
				t.Fatalf("state changed: %+v", snap)
			}
			if cred, _ := f.stored(t); cred != nil {
				t.Fatal("nothing should be persisted")
			}
		})
	}
}

func TestSessionStore_MalformedLoginKeepsCurrentSession(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	f.store.Init(context.Background())
	f.api.loginEnv = &domain.Envelope[domain.LoginData]{Success: true, Data: &domain.LoginData{
		User:   &domain.User{Name: "nobody"},
		Tokens: testCred("T2"),
	}}

	res := f.store.Login(context.Background(), domain.LoginCredentials{Email: "b@b.c", Password: "x"})

	if res.Success {
		t.Fatalf("result = %+v, want failure", res)
	}
	snap := f.store.Snapshot()
	if snap.User == nil || snap.User.ID != 1 {
		t.Fatalf("snapshot user = %+v, want the previous user", snap.User)
	}
	cred, user := f.stored(t)
	if cred == nil || cred.AccessToken != "T1" || user == nil || user.ID != 1 {
		t.Fatalf("stored = %+v %+v, want the previous session", cred, user)
	}
}

func TestSessionStore_LoginWhileAuthenticatedReplacesSession(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	f.store.Init(context.Background())

	f.api.loginEnv = okLogin("T2")
	f.api.loginEnv.Data.User.ID = 2
	f.api.loginEnv.Data.User.Email = "other@b.c"

	if res := f.store.Login(context.Background(), domain.LoginCredentials{Email: "other@b.c", Password: "pw"}); !res.Success {
		t.Fatalf("login: %+v", res)
	}
	if got := f.store.Snapshot().User.ID; got != 2 {
		t.Fatalf("user id = %d, want 2", got)
	}
	cred, _ := f.stored(t)
	if cred.AccessToken != "T2" {
		t.Fatalf("token = %q, want T2", cred.AccessToken)
	}
}

func TestSessionStore_RegisterDoesNotAuthenticate(t *testing.T) {
	f := newFixture(t)
	f.store.Init(context.Background())
	f.api.registerEnv = &domain.Envelope[domain.RegisterData]{
		Success: true,
		Data:    &domain.RegisterData{Message: "check your inbox"},
	}

	res := f.store.Register(context.Background(), domain.Registration{Email: "a@b.c"})

	if !res.Success || res.Message != "check your inbox" {
		t.Fatalf("result = %+v", res)
	}
	if f.store.Snapshot().IsAuthenticated {
		t.Fatal("register must not sign in")
	}

	f.api.registerEnv = &domain.Envelope[domain.RegisterData]{Success: false, Error: "email taken"}
	if res := f.store.Register(context.Background(), domain.Registration{}); res.Success || res.Error != "email taken" {
		t.Fatalf("result = %+v", res)
	}
}

func TestSessionStore_LogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	f.store.Init(context.Background())

	f.store.Logout(context.Background())

	if f.api.logoutCalls != 1 || f.api.logoutToken != "refresh-T1" {
		t.Fatalf("logout calls = %d token = %q", f.api.logoutCalls, f.api.logoutToken)
	}
	if f.store.Snapshot().IsAuthenticated {
		t.Fatal("still authenticated")
	}
	if cred, user := f.stored(t); cred != nil || user != nil {
		t.Fatal("storage not cleared")
	}

	f.store.Logout(context.Background())
	if f.api.logoutCalls != 1 {
		t.Fatalf("second logout hit the backend: %d calls", f.api.logoutCalls)
	}
}

func TestSessionStore_LogoutClearsEvenWhenBackendFails(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	f.store.Init(context.Background())
	f.api.logoutErr = domain.ErrNoConnection

	f.store.Logout(context.Background())

	if f.store.Snapshot().State != domain.StateAnonymous {
		t.Fatal("expected anonymous")
	}
	if cred, _ := f.stored(t); cred != nil {
		t.Fatal("storage not cleared")
	}
}

func TestSessionStore_LogoutWithoutRefreshTokenSkipsBackend(t *testing.T) {
	f := newFixture(t)
	_ = f.creds.Save(context.Background(), &domain.Credential{AccessToken: "T1"}, testUser())
	f.store.Init(context.Background())

	f.store.Logout(context.Background())

	if f.api.logoutCalls != 0 {
		t.Fatalf("logout calls = %d, want 0", f.api.logoutCalls)
	}
	if cred, _ := f.stored(t); cred != nil {
		t.Fatal("storage not cleared")
	}
}

func TestSessionStore_UpdateProfile(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	f.store.Init(context.Background())

	updated := testUser()
	updated.Name = "Ana Maria"
	f.api.updateEnv = &domain.Envelope[domain.User]{Success: true, Data: updated}

	name := "Ana Maria"
	res := f.store.UpdateProfile(context.Background(), domain.ProfilePatch{Name: &name})

	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if got := f.store.Snapshot().User.Name; got != "Ana Maria" {
		t.Fatalf("name = %q", got)
	}
	if _, user := f.stored(t); user.Name != "Ana Maria" {
		t.Fatalf("stored name = %q", user.Name)
	}

	f.api.updateEnv = &domain.Envelope[domain.User]{Success: false, Error: "phone invalid"}
	res = f.store.UpdateProfile(context.Background(), domain.ProfilePatch{})
	if res.Success || res.Error != "phone invalid" {
		t.Fatalf("result = %+v", res)
	}
	if got := f.store.Snapshot().User.Name; got != "Ana Maria" {
		t.Fatalf("failed update changed the user: %q", got)
	}
}

func TestSessionStore_UnauthorizedForcesLogout(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	f.store.Init(context.Background())

	var got []domain.Snapshot
	cancel := f.store.Subscribe(func(s domain.Snapshot) { got = append(got, s) })
	defer cancel()

	f.api.updateErr = domain.NewAPIError(401, "")
	res := f.store.UpdateProfile(context.Background(), domain.ProfilePatch{})

	if res.Success || res.Error != "Unauthorized" {
		t.Fatalf("result = %+v", res)
	}
	if f.store.Snapshot().IsAuthenticated {
		t.Fatal("session survived a 401")
	}
	if cred, _ := f.stored(t); cred != nil {
		t.Fatal("storage survived a 401")
	}
	if f.nav.calls != 1 {
		t.Fatalf("navigator calls = %d", f.nav.calls)
	}
	if len(got) == 0 || got[len(got)-1].IsAuthenticated {
		t.Fatalf("subscriber not told about logout: %+v", got)
	}
}

func TestSessionStore_VerifyEmailMarksCachedUser(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	f.store.Init(context.Background())
	f.api.verifyEnv = &domain.Envelope[domain.MessageData]{Success: true, Data: &domain.MessageData{Message: "verified"}}

	res := f.store.VerifyEmail(context.Background(), "tok", "A@B.C")

	if !res.Success || res.Message != "verified" {
		t.Fatalf("result = %+v", res)
	}
	if !f.store.Snapshot().User.IsEmailVerified {
		t.Fatal("cached user not marked verified")
	}
	if _, user := f.stored(t); !user.IsEmailVerified {
		t.Fatal("stored user not marked verified")
	}
}

func TestSessionStore_RequireRole(t *testing.T) {
	f := newFixture(t)
	f.store.Init(context.Background())

	if err := f.store.RequireRole(); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("anonymous: %v", err)
	}

	f.seed(t)
	f.store.Resync(context.Background())

	if err := f.store.RequireRole(); err != nil {
		t.Fatalf("any role: %v", err)
	}
	if err := f.store.RequireRole(domain.RoleClient, domain.RoleAdmin); err != nil {
		t.Fatalf("client allowed: %v", err)
	}
	if err := f.store.RequireRole(domain.RoleTherapist); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("therapist only: %v", err)
	}
}

func TestSessionStore_SubscribeCancel(t *testing.T) {
	f := newFixture(t)
	calls := 0
	cancel := f.store.Subscribe(func(domain.Snapshot) { calls++ })

	f.store.Init(context.Background())
	cancel()
	cancel()
	f.api.loginEnv = okLogin("T1")
	f.store.Login(context.Background(), domain.LoginCredentials{})

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestSessionStore_ResyncFollowsStorage(t *testing.T) {
	f := newFixture(t)
	f.store.Init(context.Background())

	notified := 0
	f.store.Subscribe(func(domain.Snapshot) { notified++ })

	f.seed(t)
	f.store.Resync(context.Background())
	if !f.store.Snapshot().IsAuthenticated {
		t.Fatal("external login not picked up")
	}

	f.store.Resync(context.Background())
	if notified != 1 {
		t.Fatalf("unchanged storage notified again: %d", notified)
	}

	_ = f.creds.Clear(context.Background())
	f.store.Resync(context.Background())
	if f.store.Snapshot().IsAuthenticated {
		t.Fatal("external logout not picked up")
	}
}

func TestSessionStore_RestoreAfterRestart(t *testing.T) {
	f := newFixture(t)
	f.store.Init(context.Background())
	f.api.loginEnv = okLogin("T1")
	f.store.Login(context.Background(), domain.LoginCredentials{})

	// A new process over the same storage.
	api := &stubAuthAPI{creds: f.creds}
	restarted := NewSessionStore(api, f.creds)
	snap := restarted.Init(context.Background())

	if !snap.IsAuthenticated || snap.User.ID != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if api.profileCalls != 0 {
		t.Fatal("restore must not call the backend")
	}
}

func TestSessionStore_ConcurrentLoginLogout(t *testing.T) {
	f := newFixture(t)
	f.store.Init(context.Background())
	f.api.loginEnv = okLogin("T1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.store.Login(context.Background(), domain.LoginCredentials{})
		}()
		go func() {
			defer wg.Done()
			f.store.Logout(context.Background())
		}()
	}
	wg.Wait()

	snap := f.store.Snapshot()
	cred, user := f.stored(t)
	if snap.IsAuthenticated != (cred != nil) || (cred != nil) != (user != nil) {
		t.Fatalf("memory and storage disagree: snap=%+v cred=%+v user=%+v", snap, cred, user)
	}
}
