package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/psyportal/portal-client/internal/core/domain"
)

type failingSet struct {
	*Memory
	failKey string
}

func (f *failingSet) Set(ctx context.Context, key, value string) error {
	if key == f.failKey {
		return errors.New("disk full")
	}
	return f.Memory.Set(ctx, key, value)
}

type touchingMemory struct {
	*Memory
	touched []string
}

func (m *touchingMemory) Touch(_ context.Context, keys ...string) error {
	m.touched = append(m.touched, keys...)
	return nil
}

func sampleSession() (*domain.Credential, *domain.User) {
	return &domain.Credential{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60},
		&domain.User{ID: 7, Email: "u@example.com", Name: "U", Role: domain.RoleTherapist}
}

func TestAuthStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewAuthStorage(NewMemory(), zerolog.Nop())

	cred, user := sampleSession()
	if err := s.Save(ctx, cred, user); err != nil {
		t.Fatalf("Save: %v", err)
	}

	gotCred, gotUser, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if gotCred == nil || gotCred.AccessToken != "a" || gotCred.RefreshToken != "r" {
		t.Errorf("credential = %+v", gotCred)
	}
	if gotUser == nil || gotUser.ID != 7 || gotUser.Role != domain.RoleTherapist {
		t.Errorf("user = %+v", gotUser)
	}

	token, err := s.Token(ctx)
	if err != nil || token != "a" {
		t.Errorf("Token = %q, %v", token, err)
	}
}

func TestAuthStorage_Empty(t *testing.T) {
	s := NewAuthStorage(NewMemory(), zerolog.Nop())

	cred, user, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cred != nil || user != nil {
		t.Errorf("expected nothing stored, got %+v %+v", cred, user)
	}
}

func TestAuthStorage_MalformedValueIsRemoved(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	s := NewAuthStorage(mem, zerolog.Nop())

	_ = mem.Set(ctx, KeyTokens, `{"access_token":"a"}`)
	_ = mem.Set(ctx, KeyUser, `{not json`)

	_, _, err := s.Load(ctx)
	if !errors.Is(err, domain.ErrStaleStorage) {
		t.Fatalf("expected ErrStaleStorage, got %v", err)
	}
	if _, err := mem.Get(ctx, KeyUser); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("malformed user key should be removed, got %v", err)
	}

	token, err := s.Token(ctx)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "a" {
		t.Errorf("well-formed token key should survive, got %q", token)
	}
}

func TestAuthStorage_MalformedTokenReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	_ = mem.Set(ctx, KeyTokens, `garbage`)

	token, err := NewAuthStorage(mem, zerolog.Nop()).Token(ctx)
	if err != nil || token != "" {
		t.Errorf("Token = %q, %v; want empty, nil", token, err)
	}
}

func TestAuthStorage_SaveRollsBackOnUserWriteFailure(t *testing.T) {
	ctx := context.Background()
	kv := &failingSet{Memory: NewMemory(), failKey: KeyUser}
	s := NewAuthStorage(kv, zerolog.Nop())

	cred, user := sampleSession()
	if err := s.Save(ctx, cred, user); err == nil {
		t.Fatal("expected Save to fail")
	}
	if _, err := kv.Get(ctx, KeyTokens); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("token key should be rolled back, got %v", err)
	}
}

func TestAuthStorage_SaveRequiresBoth(t *testing.T) {
	s := NewAuthStorage(NewMemory(), zerolog.Nop())
	cred, _ := sampleSession()

	if err := s.Save(context.Background(), cred, nil); err == nil {
		t.Error("expected error for missing user")
	}
	if err := s.Save(context.Background(), &domain.Credential{}, &domain.User{ID: 1}); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestAuthStorage_PartialWritesTouchSibling(t *testing.T) {
	ctx := context.Background()
	kv := &touchingMemory{Memory: NewMemory()}
	s := NewAuthStorage(kv, zerolog.Nop())
	cred, user := sampleSession()

	if err := s.SaveUser(ctx, user); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	if err := s.SaveCredential(ctx, cred); err != nil {
		t.Fatalf("SaveCredential: %v", err)
	}
	if len(kv.touched) != 2 || kv.touched[0] != KeyTokens || kv.touched[1] != KeyUser {
		t.Fatalf("touched = %v", kv.touched)
	}
}

func TestAuthStorage_RejectsIncompleteUser(t *testing.T) {
	ctx := context.Background()
	s := NewAuthStorage(NewMemory(), zerolog.Nop())
	cred, _ := sampleSession()

	for _, u := range []*domain.User{nil, {Email: "u@example.com"}, {ID: 7}} {
		if err := s.Save(ctx, cred, u); err == nil {
			t.Errorf("Save(%+v): expected error", u)
		}
		if err := s.SaveUser(ctx, u); err == nil {
			t.Errorf("SaveUser(%+v): expected error", u)
		}
	}
	if token, _ := s.Token(ctx); token != "" {
		t.Fatalf("token = %q, want nothing stored", token)
	}
}

func TestAuthStorage_Clear(t *testing.T) {
	ctx := context.Background()
	s := NewAuthStorage(NewMemory(), zerolog.Nop())
	cred, user := sampleSession()
	_ = s.Save(ctx, cred, user)

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	gotCred, gotUser, err := s.Load(ctx)
	if err != nil || gotCred != nil || gotUser != nil {
		t.Errorf("after Clear: %+v %+v %v", gotCred, gotUser, err)
	}
	// Clearing twice is harmless.
	if err := s.Clear(ctx); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}
