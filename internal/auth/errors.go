package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a typed auth failure with a stable client-facing message.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string { return e.Message }

// HTTPStatus reports the status code the error maps to at the HTTP boundary.
func (e *Error) HTTPStatus() int { return e.Status }

var (
	// ErrUnauthenticated covers missing, invalid, expired and revoked tokens alike.
	ErrUnauthenticated = &Error{Code: "unauthenticated", Message: "unauthorized", Status: http.StatusUnauthorized}
	// ErrForbidden is returned when a valid principal lacks authority.
	ErrForbidden = &Error{Code: "forbidden", Message: "forbidden", Status: http.StatusForbidden}
	// ErrInvalidCredentials is the single login failure for unknown email and wrong password.
	ErrInvalidCredentials = &Error{Code: "invalid_credentials", Message: "invalid credentials", Status: http.StatusUnauthorized}
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = &Error{Code: "duplicate_email", Message: "email already registered", Status: http.StatusConflict}
	// ErrNotFound indicates the target resource does not exist.
	ErrNotFound = &Error{Code: "not_found", Message: "not found", Status: http.StatusNotFound}
	// ErrInvalidInput indicates required fields are missing.
	ErrInvalidInput = &Error{Code: "invalid_input", Message: "name, email, and password are required", Status: http.StatusBadRequest}
	// ErrPasswordTooLong rejects passwords bcrypt cannot hash.
	ErrPasswordTooLong = &Error{Code: "password_too_long", Message: "password must be at most 72 bytes", Status: http.StatusBadRequest}
	// ErrStoreUnavailable wraps credential store I/O failures.
	ErrStoreUnavailable = &Error{Code: "store_unavailable", Message: "service unavailable", Status: http.StatusServiceUnavailable}
)

// Token verification failures. Callers outside the codec only ever see
// ErrUnauthenticated.
var (
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrInvalidToken)
	ErrTokenExpired   = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrTokenSignature = fmt.Errorf("%w: bad signature", ErrInvalidToken)
)

// storeUnavailable tags a store failure so it maps to 503 while keeping the cause for logs.
func storeUnavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
