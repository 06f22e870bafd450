package domain

import "time"

// Role is the account type reported by the backend.
type Role string

const (
	RoleClient    Role = "client"
	RoleTherapist Role = "therapist"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleTherapist, RoleAdmin:
		return true
	}
	return false
}

// User models the identity of the signed-in account.
type User struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	Phone           string     `json:"phone,omitempty"`
	Avatar          string     `json:"avatar,omitempty"`
	Role            Role       `json:"role"`
	IsEmailVerified bool       `json:"is_email_verified"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at,omitempty"`
}

// Clone returns a deep copy so callers never share the cached record.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

// WellFormed reports whether a decoded user record is usable as a cached
// identity. A record without an id or email is treated as absent.
func (u *User) WellFormed() bool {
	return u != nil && u.ID > 0 && u.Email != ""
}

// LoginCredentials is the payload of POST /auth/login.
type LoginCredentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember,omitempty"`
}

// Registration is the payload of POST /auth/register.
type Registration struct {
	Name                 string `json:"name" validate:"required,min=2"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
	Role                 Role   `json:"role,omitempty" validate:"omitempty,oneof=client therapist"`
	Phone                string `json:"phone,omitempty"`
}

// PasswordReset is the payload of POST /auth/reset-password.
type PasswordReset struct {
	Token                string `json:"token" validate:"required"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// EmailVerification is the payload of POST /auth/verify-email.
type EmailVerification struct {
	Token string `json:"token" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// ProfilePatch carries the fields a user may change on their own profile.
// Nil fields are left out of the request.
type ProfilePatch struct {
	Name   *string `json:"name,omitempty"`
	Phone  *string `json:"phone,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

// LoginData is the data member of a successful login envelope.
type LoginData struct {
	User   *User       `json:"user"`
	Tokens *Credential `json:"tokens"`
}

// RegisterData is the data member of a successful registration envelope.
type RegisterData struct {
	Message string `json:"message"`
	User    *User  `json:"user,omitempty"`
}

// MessageData is returned by endpoints that only confirm an action.
type MessageData struct {
	Message string `json:"message"`
}

// RefreshData is the data member of POST /auth/refresh.
type RefreshData struct {
	Tokens *Credential `json:"tokens"`
}
