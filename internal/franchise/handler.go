package franchise

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jwt-pizza/pizza-service/internal/auth"
	"github.com/jwt-pizza/pizza-service/internal/platform/httpx"
)

// Handler exposes franchise endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	auth      auth.Authenticator
	validator *validator.Validate
}

// NewHandler constructs a franchise handler.
func NewHandler(logger *slog.Logger, service *Service, authenticator auth.Authenticator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, auth: authenticator, validator: validator.New()}
}

// MountRoutes registers franchise routes. The {id} segment is a user id on
// GET and a franchise id elsewhere.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.auth.Optional).Get("/", h.handleList)
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAuth)
		r.Get("/{id}", h.handleListForUser)
		r.Post("/", h.handleCreate)
		r.With(h.auth.Require(auth.AdminOnly())).Delete("/{id}", h.handleDelete)
		r.Post("/{id}/store", h.handleCreateStore)
		r.Delete("/{id}/store/{storeID}", h.handleDeleteStore)
	})
}

type adminRef struct {
	Email string `json:"email" validate:"required,email"`
}

type createFranchiseRequest struct {
	Name   string     `json:"name" validate:"required,max=255"`
	Admins []adminRef `json:"admins" validate:"dive"`
}

type createStoreRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))
	franchises, more, err := h.service.List(r.Context(), auth.PrincipalFromContext(r.Context()), ListFilter{Page: page, Limit: limit, Name: query.Get("name")})
	if err != nil {
		h.respondError(w, "list franchises", err)
		return
	}
	w.Header().Set("X-More", strconv.FormatBool(more))
	httpx.JSON(w, http.StatusOK, franchises)
}

func (h *Handler) handleListForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	franchises, err := h.service.ListForUser(r.Context(), auth.PrincipalFromContext(r.Context()), userID)
	if err != nil {
		h.respondError(w, "list user franchises", err)
		return
	}
	httpx.JSON(w, http.StatusOK, franchises)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createFranchiseRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	emails := make([]string, 0, len(req.Admins))
	for _, admin := range req.Admins {
		emails = append(emails, admin.Email)
	}
	f, err := h.service.Create(r.Context(), auth.PrincipalFromContext(r.Context()), req.Name, emails)
	if err != nil {
		h.respondError(w, "create franchise", err)
		return
	}
	httpx.JSON(w, http.StatusOK, f)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	franchiseID, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), auth.PrincipalFromContext(r.Context()), franchiseID); err != nil {
		h.respondError(w, "delete franchise", err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Message{Message: "franchise deleted"})
}

func (h *Handler) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	franchiseID, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createStoreRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	store, err := h.service.CreateStore(r.Context(), auth.PrincipalFromContext(r.Context()), franchiseID, req.Name)
	if err != nil {
		h.respondError(w, "create store", err)
		return
	}
	httpx.JSON(w, http.StatusOK, store)
}

func (h *Handler) handleDeleteStore(w http.ResponseWriter, r *http.Request) {
	franchiseID, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	storeID, err := httpx.URLParamInt64(r, "storeID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteStore(r.Context(), auth.PrincipalFromContext(r.Context()), franchiseID, storeID); err != nil {
		h.respondError(w, "delete store", err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Message{Message: "store deleted"})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var domainErr *auth.Error
	if !errors.As(err, &domainErr) || errors.Is(err, auth.ErrStoreUnavailable) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
