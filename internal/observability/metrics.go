package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	authAttempts     *prometheus.CounterVec
	activeSessions   prometheus.Gauge
	pizzasSold       prometheus.Counter
	revenue          prometheus.Counter
	creationFailures prometheus.Counter
	factoryLatency   prometheus.Histogram
	chaosFailures    prometheus.Counter
}

// NewMetrics initialises the registry with HTTP and domain collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pizza_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pizza_http_request_duration_seconds",
			Help:    "HTTP request duration per route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pizza_auth_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pizza_active_sessions",
			Help: "Sessions opened minus sessions closed by this process.",
		}),
		pizzasSold: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pizza_pizzas_sold_total",
			Help: "Pizzas accepted by the factory.",
		}),
		revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pizza_revenue_total",
			Help: "Revenue of orders accepted by the factory.",
		}),
		creationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pizza_creation_failures_total",
			Help: "Orders the factory refused or could not be reached for.",
		}),
		factoryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pizza_factory_latency_seconds",
			Help:    "Round trip time of factory order calls.",
			Buckets: prometheus.DefBuckets,
		}),
		chaosFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pizza_chaos_failures_total",
			Help: "Orders failed on purpose while chaos mode is on.",
		}),
	}
	registry.MustRegister(
		m.requestsTotal, m.requestDuration, m.authAttempts, m.activeSessions,
		m.pizzasSold, m.revenue, m.creationFailures, m.factoryLatency, m.chaosFailures,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// AuthAttempt counts a login by outcome.
func (m *Metrics) AuthAttempt(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.authAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionOpened() { m.activeSessions.Inc() }

func (m *Metrics) SessionClosed() { m.activeSessions.Dec() }

// PizzasSold counts pizzas and revenue of an accepted order.
func (m *Metrics) PizzasSold(count int, revenue float64) {
	m.pizzasSold.Add(float64(count))
	if revenue > 0 {
		m.revenue.Add(revenue)
	}
}

func (m *Metrics) PizzaCreationFailed() { m.creationFailures.Inc() }

func (m *Metrics) FactoryLatency(d time.Duration) { m.factoryLatency.Observe(d.Seconds()) }

func (m *Metrics) ChaosFailure() { m.chaosFailures.Inc() }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
