package order

import (
	"net/http"

	"github.com/jwt-pizza/pizza-service/internal/auth"
)

var (
	// ErrMenuDenied is returned when a non-admin edits the menu.
	ErrMenuDenied = &auth.Error{Code: "forbidden", Message: "unable to add menu item", Status: http.StatusForbidden}
	// ErrInvalidOrder covers unknown stores and menu items.
	ErrInvalidOrder = &auth.Error{Code: "invalid_order", Message: "invalid order", Status: http.StatusBadRequest}
	// ErrChaos is the injected failure while chaos mode is on.
	ErrChaos = &auth.Error{Code: "chaos", Message: "Chaos monkey", Status: http.StatusInternalServerError}
	// ErrDuplicateRequest is returned when an idempotency key is reused.
	ErrDuplicateRequest = &auth.Error{Code: "duplicate_request", Message: "order already submitted", Status: http.StatusConflict}
)

// FactoryError wraps a failure to reach the factory after the order was stored.
type FactoryError struct {
	Err error
}

func (e *FactoryError) Error() string { return e.Err.Error() }

func (e *FactoryError) Unwrap() error { return e.Err }
