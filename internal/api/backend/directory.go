// Package backend is the in-memory state of the development stub server:
// accounts, the therapist catalog and booked sessions.
package backend

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/psyportal/portal-client/internal/core/domain"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims are carried by every access token the stub issues.
type Claims struct {
	UserID int64       `json:"user_id"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type account struct {
	user         domain.User
	passwordHash string
	verifyToken  string
	resetToken   string
}

type refreshGrant struct {
	userID    int64
	expiresAt time.Time
}

// Directory holds accounts and issues tokens.
type Directory struct {
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	cost       int
	now        func() time.Time

	mu      sync.RWMutex
	nextID  int64
	users   map[int64]*account
	byEmail map[string]int64
	refresh map[string]refreshGrant
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithBcryptCost lowers the hashing cost, for tests.
func WithBcryptCost(cost int) DirectoryOption {
	return func(d *Directory) { d.cost = cost }
}

func WithRefreshTTL(ttl time.Duration) DirectoryOption {
	return func(d *Directory) { d.refreshTTL = ttl }
}

func WithDirectoryClock(now func() time.Time) DirectoryOption {
	return func(d *Directory) { d.now = now }
}

func NewDirectory(jwtSecret string, accessTTL time.Duration, opts ...DirectoryOption) *Directory {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	d := &Directory{
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: defaultRefreshTTL,
		cost:       bcrypt.DefaultCost,
		now:        time.Now,
		users:      make(map[int64]*account),
		byEmail:    make(map[string]int64),
		refresh:    make(map[string]refreshGrant),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register creates an unverified account and returns it together with the
// email verification token.
func (d *Directory) Register(_ context.Context, reg domain.Registration) (*domain.User, string, error) {
	email := normalizeEmail(reg.Email)
	if email == "" || reg.Password == "" {
		return nil, "", ErrInvalidCredentials
	}
	role := reg.Role
	if role == "" {
		role = domain.RoleClient
	}
	if role != domain.RoleClient && role != domain.RoleTherapist {
		return nil, "", fmt.Errorf("role %q cannot self-register", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), d.cost)
	if err != nil {
		return nil, "", err
	}
	verify, err := randomToken()
	if err != nil {
		return nil, "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byEmail[email]; exists {
		return nil, "", ErrUserExists
	}

	now := d.now().UTC()
	d.nextID++
	acc := &account{
		user: domain.User{
			ID:        d.nextID,
			Email:     email,
			Name:      strings.TrimSpace(reg.Name),
			Phone:     reg.Phone,
			Role:      role,
			CreatedAt: now,
			UpdatedAt: now,
		},
		passwordHash: string(hash),
		verifyToken:  verify,
	}
	d.users[acc.user.ID] = acc
	d.byEmail[email] = acc.user.ID

	u := acc.user
	return &u, verify, nil
}

// Login checks the password and issues a token pair.
func (d *Directory) Login(_ context.Context, email, password string) (*domain.User, *domain.Credential, error) {
	if email == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, nil, ErrInvalidCredentials
	}
	acc := d.users[id]
	if bcrypt.CompareHashAndPassword([]byte(acc.passwordHash), []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}

	cred, err := d.issue(&acc.user)
	if err != nil {
		return nil, nil, err
	}
	now := d.now().UTC()
	acc.user.LastLoginAt = &now

	u := acc.user
	return &u, cred, nil
}

// Refresh rotates a refresh token. The old one stops working.
func (d *Directory) Refresh(_ context.Context, refreshToken string) (*domain.Credential, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	grant, ok := d.refresh[refreshToken]
	if !ok || !d.now().Before(grant.expiresAt) {
		delete(d.refresh, refreshToken)
		return nil, ErrInvalidToken
	}
	delete(d.refresh, refreshToken)

	acc, ok := d.users[grant.userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return d.issue(&acc.user)
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (d *Directory) Logout(_ context.Context, refreshToken string) {
	d.mu.Lock()
	delete(d.refresh, refreshToken)
	d.mu.Unlock()
}

func (d *Directory) User(_ context.Context, id int64) (*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acc, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := acc.user
	return &u, nil
}

func (d *Directory) UpdateProfile(_ context.Context, id int64, patch domain.ProfilePatch) (*domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	acc, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	if patch.Name != nil {
		acc.user.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Phone != nil {
		acc.user.Phone = *patch.Phone
	}
	if patch.Avatar != nil {
		acc.user.Avatar = *patch.Avatar
	}
	acc.user.UpdatedAt = d.now().UTC()
	u := acc.user
	return &u, nil
}

func (d *Directory) VerifyEmail(_ context.Context, email, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	acc := d.lookup(email)
	if acc == nil || acc.verifyToken == "" || acc.verifyToken != token {
		return ErrInvalidToken
	}
	acc.user.IsEmailVerified = true
	acc.verifyToken = ""
	return nil
}

// ResendVerification issues a new verification token. Verified or unknown
// addresses yield "" so callers cannot probe for accounts.
func (d *Directory) ResendVerification(_ context.Context, email string) (string, error) {
	return d.newToken(email, func(acc *account) *string {
		if acc.user.IsEmailVerified {
			return nil
		}
		return &acc.verifyToken
	})
}

// ForgotPassword issues a password reset token, or "" for unknown addresses.
func (d *Directory) ForgotPassword(_ context.Context, email string) (string, error) {
	return d.newToken(email, func(acc *account) *string { return &acc.resetToken })
}

func (d *Directory) ResetPassword(_ context.Context, reset domain.PasswordReset) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(reset.Password), d.cost)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	acc := d.lookup(reset.Email)
	if acc == nil || acc.resetToken == "" || acc.resetToken != reset.Token {
		return ErrInvalidToken
	}
	acc.passwordHash = string(hash)
	acc.resetToken = ""
	for tok, grant := range d.refresh {
		if grant.userID == acc.user.ID {
			delete(d.refresh, tok)
		}
	}
	return nil
}

// Parse verifies an access token.
func (d *Directory) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return d.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(d.now))
	if err != nil || !tkn.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SeedUser adds a verified account, used for the demo therapists.
func (d *Directory) SeedUser(user domain.User, password string) (*domain.User, error) {
	created, _, err := d.Register(context.Background(), domain.Registration{
		Name:     user.Name,
		Email:    user.Email,
		Password: password,
		Role:     domain.RoleClient,
		Phone:    user.Phone,
	})
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	acc := d.users[created.ID]
	if user.Role != "" {
		acc.user.Role = user.Role
	}
	acc.user.IsEmailVerified = true
	acc.verifyToken = ""
	u := acc.user
	return &u, nil
}

func (d *Directory) newToken(email string, slot func(*account) *string) (string, error) {
	tok, err := randomToken()
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	acc := d.lookup(email)
	if acc == nil {
		return "", nil
	}
	p := slot(acc)
	if p == nil {
		return "", nil
	}
	*p = tok
	return tok, nil
}

func (d *Directory) lookup(email string) *account {
	id, ok := d.byEmail[normalizeEmail(email)]
	if !ok {
		return nil
	}
	return d.users[id]
}

// issue signs an access token and records a new refresh grant. Callers hold mu.
func (d *Directory) issue(user *domain.User) (*domain.Credential, error) {
	now := d.now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d.accessTTL)),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(d.jwtSecret)
	if err != nil {
		return nil, err
	}
	refresh, err := randomToken()
	if err != nil {
		return nil, err
	}
	d.refresh[refresh] = refreshGrant{userID: user.ID, expiresAt: now.Add(d.refreshTTL)}

	return &domain.Credential{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(d.accessTTL / time.Second),
	}, nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
