package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwt-pizza/pizza-service/internal/platform/httpx"
)

// Resolver turns a bearer token into a principal.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*Principal, error)
}

// Authenticator gates protected routes on a resolvable bearer token.
type Authenticator struct {
	Resolver Resolver
	Logger   *slog.Logger
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// Authenticate resolves the request's bearer credential. A missing or
// malformed header is ErrUnauthenticated, never an anonymous principal.
func (a Authenticator) Authenticate(r *http.Request) (*Principal, error) {
	token, ok := BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, ErrUnauthenticated
	}
	return a.Resolver.Resolve(r.Context(), token)
}

// RequireAuth rejects the request before next runs unless it carries a valid
// session token, and attaches the principal otherwise.
func (a Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.Authenticate(r)
		if err != nil {
			if !errors.Is(err, ErrUnauthenticated) && a.Logger != nil {
				a.Logger.Error("authenticate request", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

// Optional attaches a principal when the request carries an Authorization
// header and lets anonymous requests through. A header that does not resolve
// is rejected like on a protected route.
func (a Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}
		a.RequireAuth(next).ServeHTTP(w, r)
	})
}

// Require allows the request only when check passes for the attached
// principal. It must run after RequireAuth.
func (a Authenticator) Require(check Check) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := Authorize(PrincipalFromContext(r.Context()), check); err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
