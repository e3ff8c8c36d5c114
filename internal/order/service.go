package order

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jwt-pizza/pizza-service/internal/auth"
	"github.com/jwt-pizza/pizza-service/internal/factory"
	"github.com/jwt-pizza/pizza-service/internal/shared"
)

const idempotencyModule = "order"

// Factory bakes stored orders.
type Factory interface {
	SendOrder(ctx context.Context, diner factory.Diner, order any) (*factory.Result, error)
}

// Idempotency guards order submission against client retries.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Recorder receives order outcomes for metrics.
type Recorder interface {
	PizzasSold(count int, revenue float64)
	PizzaCreationFailed()
	FactoryLatency(d time.Duration)
	ChaosFailure()
}

type nopRecorder struct{}

func (nopRecorder) PizzasSold(int, float64)      {}
func (nopRecorder) PizzaCreationFailed()         {}
func (nopRecorder) FactoryLatency(time.Duration) {}
func (nopRecorder) ChaosFailure()                {}

// Config wires the service dependencies. Random defaults to math/rand.
type Config struct {
	Repo        Repository
	Factory     Factory
	Idempotency Idempotency
	Metrics     Recorder
	Logger      *slog.Logger
	Random      func() float64
}

// Service implements menu and order flows.
type Service struct {
	repo        Repository
	factory     Factory
	idempotency Idempotency
	metrics     Recorder
	logger      *slog.Logger
	random      func() float64
	chaos       atomic.Bool
	menuGroup   singleflight.Group
}

// NewService constructs the order service.
func NewService(cfg Config) *Service {
	s := &Service{
		repo:        cfg.Repo,
		factory:     cfg.Factory,
		idempotency: cfg.Idempotency,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		random:      cfg.Random,
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.random == nil {
		s.random = rand.Float64
	}
	return s
}

// Menu returns the current menu. Concurrent readers share one query, which
// outlives any single caller's cancellation.
func (s *Service) Menu(ctx context.Context) ([]MenuItem, error) {
	queryCtx := context.WithoutCancel(ctx)
	resultChan := s.menuGroup.DoChan("menu", func() (interface{}, error) {
		return s.repo.Menu(queryCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]MenuItem), nil
	}
}

// AddMenuItem adds an item and returns the updated menu. Admin only.
func (s *Service) AddMenuItem(ctx context.Context, p *auth.Principal, item MenuItem) ([]MenuItem, error) {
	if err := auth.Authorize(p, auth.AdminOnly()); err != nil {
		if errors.Is(err, auth.ErrForbidden) {
			return nil, ErrMenuDenied
		}
		return nil, err
	}
	if _, err := s.repo.AddMenuItem(ctx, item); err != nil {
		return nil, err
	}
	s.menuGroup.Forget("menu")
	return s.Menu(ctx)
}

// Orders returns one page of the principal's order history.
func (s *Service) Orders(ctx context.Context, p *auth.Principal, page int) (History, error) {
	if p == nil {
		return History{}, auth.ErrUnauthenticated
	}
	if page < 1 {
		page = 1
	}
	orders, err := s.repo.Orders(ctx, p.ID, page)
	if err != nil {
		return History{}, err
	}
	if orders == nil {
		orders = []Order{}
	}
	return History{DinerID: p.ID, Orders: orders, Page: page}, nil
}

// SetChaos toggles chaos mode when p is an admin and returns the current state.
func (s *Service) SetChaos(p *auth.Principal, enabled bool) bool {
	if auth.IsAdmin(p) {
		s.chaos.Store(enabled)
		s.logger.Warn("chaos mode changed", slog.Bool("enabled", enabled), slog.Int64("by", p.ID))
	}
	return s.chaos.Load()
}

// Chaos reports whether chaos mode is on.
func (s *Service) Chaos() bool {
	return s.chaos.Load()
}

// Placement is a stored order and the factory's answer to it.
type Placement struct {
	Order   Order
	Factory *factory.Result
}

// Place stores the order and forwards it to the factory. A factory that
// answers but refuses yields a Placement with Factory.OK false; a factory
// that cannot be reached yields a *FactoryError.
func (s *Service) Place(ctx context.Context, p *auth.Principal, idempotencyKey string, no NewOrder) (Placement, error) {
	if p == nil {
		return Placement{}, auth.ErrUnauthenticated
	}
	if s.chaos.Load() && s.random() < 0.5 {
		s.metrics.ChaosFailure()
		return Placement{}, ErrChaos
	}
	if len(no.Items) == 0 {
		return Placement{}, ErrInvalidOrder
	}
	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Placement{}, ErrDuplicateRequest
			}
			return Placement{}, err
		}
	}

	stored, err := s.repo.Create(ctx, p.ID, no)
	if err != nil {
		if idempotencyKey != "" && s.idempotency != nil {
			if delErr := s.idempotency.Delete(ctx, idempotencyKey, idempotencyModule); delErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		return Placement{}, err
	}

	start := time.Now()
	result, err := s.factory.SendOrder(ctx, factory.Diner{ID: p.ID, Name: p.Name, Email: p.Email}, stored)
	s.metrics.FactoryLatency(time.Since(start))
	if err != nil {
		s.metrics.PizzaCreationFailed()
		return Placement{Order: stored}, &FactoryError{Err: err}
	}
	if !result.OK {
		s.metrics.PizzaCreationFailed()
		return Placement{Order: stored, Factory: result}, nil
	}
	s.metrics.PizzasSold(len(stored.Items), stored.Total())
	return Placement{Order: stored, Factory: result}, nil
}
