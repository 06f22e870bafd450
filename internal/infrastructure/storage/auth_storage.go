// Package storage holds the durable key-value media and the typed wrapper
// the session layer persists its credential and user record through.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/psyportal/portal-client/internal/core/domain"
	"github.com/psyportal/portal-client/internal/core/ports"
)

const (
	KeyTokens = "auth_tokens"
	KeyUser   = "auth_user"
)

// AuthStorage persists the credential/user pair as JSON values.
type AuthStorage struct {
	kv  ports.KeyValue
	log zerolog.Logger
}

var _ ports.CredentialStore = (*AuthStorage)(nil)

func NewAuthStorage(kv ports.KeyValue, log zerolog.Logger) *AuthStorage {
	return &AuthStorage{kv: kv, log: log}
}

// Token returns the stored access token. A missing or unreadable credential
// yields "" so a request simply goes out unauthenticated.
func (s *AuthStorage) Token(ctx context.Context) (string, error) {
	var cred domain.Credential
	ok, err := s.read(ctx, KeyTokens, &cred)
	if err != nil {
		if errors.Is(err, domain.ErrStaleStorage) {
			return "", nil
		}
		return "", err
	}
	if !ok {
		return "", nil
	}
	return cred.AccessToken, nil
}

func (s *AuthStorage) Load(ctx context.Context) (*domain.Credential, *domain.User, error) {
	var (
		cred  domain.Credential
		user  domain.User
		stale []string
	)

	hasCred, err := s.read(ctx, KeyTokens, &cred)
	if errors.Is(err, domain.ErrStaleStorage) {
		stale = append(stale, KeyTokens)
	} else if err != nil {
		return nil, nil, err
	}

	hasUser, err := s.read(ctx, KeyUser, &user)
	if errors.Is(err, domain.ErrStaleStorage) {
		stale = append(stale, KeyUser)
	} else if err != nil {
		return nil, nil, err
	}

	if len(stale) > 0 {
		s.log.Warn().Strs("keys", stale).Msg("removing malformed session keys")
		if delErr := s.kv.Delete(ctx, stale...); delErr != nil {
			s.log.Error().Err(delErr).Msg("remove malformed session keys")
		}
		return nil, nil, fmt.Errorf("load session: %w", domain.ErrStaleStorage)
	}

	var (
		outCred *domain.Credential
		outUser *domain.User
	)
	if hasCred && cred.Valid() {
		outCred = &cred
	}
	if hasUser {
		outUser = &user
	}
	return outCred, outUser, nil
}

// Save writes the credential and then the user. If the user write fails the
// credential is removed again so storage never holds half a session.
func (s *AuthStorage) Save(ctx context.Context, cred *domain.Credential, user *domain.User) error {
	if !cred.Valid() || !user.WellFormed() {
		return fmt.Errorf("save session: credential and user are both required")
	}
	if err := s.write(ctx, KeyTokens, cred); err != nil {
		return err
	}
	if err := s.write(ctx, KeyUser, user); err != nil {
		if delErr := s.kv.Delete(ctx, KeyTokens); delErr != nil {
			s.log.Error().Err(delErr).Msg("roll back credential after failed user write")
		}
		return err
	}
	return nil
}

func (s *AuthStorage) SaveUser(ctx context.Context, user *domain.User) error {
	if !user.WellFormed() {
		return fmt.Errorf("save user: user needs an id and an email")
	}
	if err := s.write(ctx, KeyUser, user); err != nil {
		return err
	}
	s.touch(ctx, KeyTokens)
	return nil
}

func (s *AuthStorage) SaveCredential(ctx context.Context, cred *domain.Credential) error {
	if !cred.Valid() {
		return fmt.Errorf("save credential: empty access token")
	}
	if err := s.write(ctx, KeyTokens, cred); err != nil {
		return err
	}
	s.touch(ctx, KeyUser)
	return nil
}

func (s *AuthStorage) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyTokens, KeyUser); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// touch keeps the sibling key alive as long as the one just written, so an
// expiring medium never holds half a session.
func (s *AuthStorage) touch(ctx context.Context, keys ...string) {
	t, ok := s.kv.(ports.Toucher)
	if !ok {
		return
	}
	if err := t.Touch(ctx, keys...); err != nil {
		s.log.Warn().Err(err).Strs("keys", keys).Msg("refresh session key expiry")
	}
}

func (s *AuthStorage) read(ctx context.Context, key string, into any) (bool, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		return false, fmt.Errorf("read %s: %w", key, domain.ErrStaleStorage)
	}
	return true, nil
}

func (s *AuthStorage) write(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
