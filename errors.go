package members

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeUserNotFound    = "USER_NOT_FOUND"
	textCodeInvalidPassword = "INVALID_PASSWORD"
	textCodeDuplicateEmail  = "DUPLICATE_EMAIL"
	textCodeUnauthenticated = "UNAUTHENTICATED"
	textCodeForbidden       = "FORBIDDEN"
)

// ErrUserNotFound is returned when a login email has no matching record.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryAuth).
	WithTextCode(textCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrMismatchedHashAndPassword is returned when a password does not match
// the stored hash.
var ErrMismatchedHashAndPassword = goerrors.New("invalid password", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidPassword).
	WithCode(goerrors.CodeUnauthorized)

// ErrDuplicateEmail is returned when registration hits the unique email
// constraint.
var ErrDuplicateEmail = goerrors.New("email already registered", goerrors.CategoryConflict).
	WithTextCode(textCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrUnauthenticated is returned by guards when no live logged-in session
// backs the request.
var ErrUnauthenticated = goerrors.New("not logged in", goerrors.CategoryAuth).
	WithTextCode(textCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned by guards when the session is live but its
// cached role does not allow the operation.
var ErrForbidden = goerrors.New("not authorized", goerrors.CategoryAuth).
	WithTextCode(textCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrNoEmptyString is the error for empty password input
var ErrNoEmptyString = errors.New("password can't be an empty string")

// ErrSessionNotFound is the store-level miss for a session token; callers
// treat it as an anonymous request, never as a failure.
var ErrSessionNotFound = errors.New("session not found")

// IsAuthFailure will check for the two login failure modes. Route
// handlers render both with the same generic message.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrMismatchedHashAndPassword)
}

// IsUniqueViolation will check for driver level unique constraint errors.
// sqlite and postgres spell these differently and neither driver exposes
// a stable error value, so we match the message.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
