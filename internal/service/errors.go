// Package service provides the gateway's business logic over storage.
package service

import "errors"

// Error kinds. Handlers map these to HTTP status codes.
var (
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
)

// Error is a client-facing failure. Message is safe to return to the caller.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func validationError(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func conflictError(msg string) error {
	return &Error{Kind: ErrConflict, Message: msg}
}

func notFoundError(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

// invalidCredentials is shared by every login failure so responses cannot be
// told apart.
var invalidCredentials = &Error{Kind: ErrInvalidCredentials, Message: "Invalid credentials"}
