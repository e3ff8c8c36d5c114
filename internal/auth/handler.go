package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/jwt-pizza/pizza-service/internal/platform/httpx"
)

// loginAttemptsPerMinute bounds credential guessing per client IP.
const loginAttemptsPerMinute = 20

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	auth      Authenticator
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authenticator Authenticator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		auth:      authenticator,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleRegister)
	r.With(httprate.LimitByIP(loginAttemptsPerMinute, time.Minute)).Put("/", h.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAuth)
		r.Delete("/", h.handleLogout)
		r.Get("/me", h.handleMe)
		r.Put("/{userID}", h.handleUpdate)
	})
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type updateRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Password *string `json:"password" validate:"omitempty,min=1,max=72"`
}

type authResponse struct {
	User  *Principal `json:"user"`
	Token string     `json:"token"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	principal, token, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.respondError(w, "register", err)
		return
	}
	httpx.JSON(w, http.StatusOK, authResponse{User: principal, Token: token})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	principal, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, "login", err)
		return
	}
	httpx.JSON(w, http.StatusOK, authResponse{User: principal, Token: token})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := BearerToken(r.Header.Get("Authorization"))
	if err := h.service.Logout(r.Context(), token); err != nil {
		h.respondError(w, "logout", err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Message{Message: "logout successful"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	current, err := h.service.CurrentUser(r.Context(), PrincipalFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "current user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, current)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	targetID, err := httpx.URLParamInt64(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := h.service.UpdateUser(r.Context(), PrincipalFromContext(r.Context()), targetID, UserChanges{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.Bind(r, h.validator, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrStoreUnavailable) || !isAuthError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func isAuthError(err error) bool {
	var authErr *Error
	return errors.As(err, &authErr)
}
