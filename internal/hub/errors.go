package hub

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the backend answers 404.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the backend answers 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoSession is returned by operations that need a signed-in user.
	ErrNoSession = errors.New("not signed in")
	// ErrReadOnly is returned by mutations on a list without a mutator.
	ErrReadOnly = errors.New("list is read-only")
	// ErrClosed is returned when a list controller is used after Close.
	ErrClosed = errors.New("list controller closed")
)

// DefaultAuthMessage is shown when the backend rejects a login without a message.
const DefaultAuthMessage = "invalid credentials"

// MalformedResponseMessage is shown when a login reply cannot be used.
const MalformedResponseMessage = "malformed server response"

// AuthError reports a rejected login or a malformed login response.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// NetworkError reports a transport failure: the request never got an HTTP answer.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError reports a missing or invalid field before anything is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s is required", e.Field)
}

// StorageError reports a local persistence failure. It is logged, never surfaced.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// APIError is a non-2xx backend answer.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api status %d", e.Status)
}

// Is lets callers match status classes with errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == 404
	case ErrUnauthorized:
		return e.Status == 401
	}
	return false
}
