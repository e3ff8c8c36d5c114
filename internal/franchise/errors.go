package franchise

import (
	"net/http"

	"github.com/jwt-pizza/pizza-service/internal/auth"
)

var (
	// ErrUnknownAdmin is returned when an admin email does not match a user.
	ErrUnknownAdmin = &auth.Error{Code: "unknown_admin", Message: "unknown user for franchise admin provided", Status: http.StatusNotFound}
	// ErrDuplicateName is returned when a franchise name is taken.
	ErrDuplicateName = &auth.Error{Code: "duplicate_franchise", Message: "franchise name already exists", Status: http.StatusConflict}
	// ErrCreateDenied is returned when a non-admin tries to create a franchise.
	ErrCreateDenied = &auth.Error{Code: "forbidden", Message: "unable to create a franchise", Status: http.StatusForbidden}
)
