package order

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

// Handler exposes menu and order endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	auth      auth.Authenticator
	validator *validator.Validate
}

// NewHandler constructs an order handler.
func NewHandler(logger *slog.Logger, service *Service, authenticator auth.Authenticator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, auth: authenticator, validator: validator.New()}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/menu", h.handleMenu)
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAuth)
		r.Put("/menu", h.handleAddMenuItem)
		r.Get("/", h.handleOrders)
		r.Post("/", h.handlePlace)
		r.Put("/chaos/{state}", h.handleChaos)
	})
}

type menuItemRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description string  `json:"description" validate:"max=1024"`
	Image       string  `json:"image" validate:"max=255"`
	Price       float64 `json:"price" validate:"gte=0"`
}

type orderItemRequest struct {
	MenuID      int64   `json:"menuId" validate:"required,gt=0"`
	Description string  `json:"description" validate:"max=255"`
	Price       float64 `json:"price"`
}

type orderRequest struct {
	FranchiseID int64              `json:"franchiseId" validate:"required,gt=0"`
	StoreID     int64              `json:"storeId" validate:"required,gt=0"`
	Items       []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type placedResponse struct {
	Order     Order  `json:"order"`
	ReportURL string `json:"reportSlowPizzaToFactoryUrl"`
	JWT       string `json:"jwt"`
}

type factoryRejectedResponse struct {
	Message   string `json:"message"`
	ReportURL string `json:"reportPizzaCreationErrorToPizzaFactoryUrl"`
}

type factoryErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (h *Handler) handleMenu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.service.Menu(r.Context())
	if err != nil {
		h.respondError(w, "get menu", err)
		return
	}
	httpx.JSON(w, http.StatusOK, menu)
}

func (h *Handler) handleAddMenuItem(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	menu, err := h.service.AddMenuItem(r.Context(), auth.PrincipalFromContext(r.Context()), MenuItem{
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Price:       req.Price,
	})
	if err != nil {
		h.respondError(w, "add menu item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, menu)
}

func (h *Handler) handleOrders(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	history, err := h.service.Orders(r.Context(), auth.PrincipalFromContext(r.Context()), page)
	if err != nil {
		h.respondError(w, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, history)
}

func (h *Handler) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	no := NewOrder{FranchiseID: req.FranchiseID, StoreID: req.StoreID, Items: make([]Item, 0, len(req.Items))}
	for _, item := range req.Items {
		no.Items = append(no.Items, Item{MenuID: item.MenuID, Description: item.Description})
	}

	placement, err := h.service.Place(r.Context(), auth.PrincipalFromContext(r.Context()), r.Header.Get("Idempotency-Key"), no)
	var factoryErr *FactoryError
	switch {
	case errors.As(err, &factoryErr):
		h.logger.Error("send order to factory", slog.Int64("order_id", placement.Order.ID), slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, factoryErrorResponse{
			Message: "Error communicating with factory service",
			Error:   factoryErr.Error(),
		})
	case err != nil:
		h.respondError(w, "place order", err)
	case !placement.Factory.OK:
		httpx.JSON(w, http.StatusInternalServerError, factoryRejectedResponse{
			Message:   "Failed to fulfill order at factory",
			ReportURL: placement.Factory.ReportURL,
		})
	default:
		httpx.JSON(w, http.StatusOK, placedResponse{
			Order:     placement.Order,
			ReportURL: placement.Factory.ReportURL,
			JWT:       placement.Factory.JWT,
		})
	}
}

func (h *Handler) handleChaos(w http.ResponseWriter, r *http.Request) {
	enabled := h.service.SetChaos(auth.PrincipalFromContext(r.Context()), chi.URLParam(r, "state") == "true")
	httpx.JSON(w, http.StatusOK, map[string]bool{"chaos": enabled})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var domainErr *auth.Error
	if !errors.As(err, &domainErr) || errors.Is(err, auth.ErrStoreUnavailable) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
