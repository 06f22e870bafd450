package backend

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("a user with this email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTherapistNotFound  = errors.New("therapist not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionState       = errors.New("session cannot change from its current status")
)
