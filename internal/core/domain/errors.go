package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrUnauthorized = errors.New("Unauthorized")
var ErrNoConnection = errors.New("no connection to server")
var ErrDecode = errors.New("malformed response from server")
var ErrStaleStorage = errors.New("stored session is malformed")
var ErrForbidden = errors.New("access forbidden")
var ErrSuperseded = errors.New("superseded by a newer request")
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, ErrUnauthorized) match a 401 answer.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// NewAPIError builds the error for a failed status. An empty message falls
// back to the generic "API Error: <status>" text.
func NewAPIError(status int, message string) *APIError {
	if strings.TrimSpace(message) == "" {
		if status == http.StatusUnauthorized {
			message = ErrUnauthorized.Error()
		} else {
			message = fmt.Sprintf("API Error: %d", status)
		}
	}
	return &APIError{Status: status, Message: message}
}

// ValidationError lists the payload fields rejected before a request is sent.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Fields, "; ")
}

// Message returns the text a form should show for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Error()
	}
	switch {
	case errors.Is(err, ErrNoConnection):
		return ErrNoConnection.Error()
	case errors.Is(err, ErrDecode):
		return ErrDecode.Error()
	}
	return err.Error()
}
