package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jwt-pizza/pizza-service/internal/auth"
	"github.com/jwt-pizza/pizza-service/internal/franchise"
	"github.com/jwt-pizza/pizza-service/internal/observability"
	"github.com/jwt-pizza/pizza-service/internal/order"
	"github.com/jwt-pizza/pizza-service/internal/platform/httpx"
	"github.com/jwt-pizza/pizza-service/jobs"
)

// Version is reported by the root endpoint.
const Version = "20240605.0"

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthHandler      *auth.Handler
	FranchiseHandler *franchise.Handler
	OrderHandler     *order.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"message": "welcome to JWT Pizza", "version": Version})
	})

	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.FranchiseHandler != nil {
			r.Route("/franchise", params.FranchiseHandler.MountRoutes)
		}
		if params.OrderHandler != nil {
			r.Route("/order", params.OrderHandler.MountRoutes)
		}
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusNotFound, httpx.Message{Message: "unknown endpoint"})
	})

	return r
}
