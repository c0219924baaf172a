// Package services holds the business rules of the blog: accounts and tokens,
// posts and comments, and notifications. Services talk to storage only through
// the repository interfaces so they can be exercised with in-memory fakes.
package services

import "errors"

var (
	ErrUnauthenticated  = errors.New("not authenticated")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrDuplicateSlug    = errors.New("a blog with this title already exists")
	ErrDuplicateEmail   = errors.New("user with this email already registered")
	ErrBadCredentials   = errors.New("password is not correct")
)

// notFound wraps ErrNotFound with the name of the missing entity, e.g. "Blog not found".
func notFound(entity string) error {
	return &entityError{msg: entity + " not found", kind: ErrNotFound}
}

func invalid(msg string) error {
	return &entityError{msg: msg, kind: ErrValidation}
}

type entityError struct {
	msg  string
	kind error
}

func (e *entityError) Error() string { return e.msg }

func (e *entityError) Unwrap() error { return e.kind }
