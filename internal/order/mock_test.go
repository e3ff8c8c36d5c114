package order

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jwt-pizza/pizza-service/internal/auth"
	"github.com/jwt-pizza/pizza-service/internal/factory"
	"github.com/jwt-pizza/pizza-service/internal/shared"
)

type memRepo struct {
	mu        sync.Mutex
	menu      []MenuItem
	stores    map[int64]int64
	orders    map[int64][]Order
	nextID    int64
	menuReads int
	err       error

	// menuGate holds Menu until closed; menuEntered is signalled on entry.
	menuGate    chan struct{}
	menuEntered chan struct{}
	menuCtxErrs []error
}

func newMemRepo() *memRepo {
	return &memRepo{
		menu: []MenuItem{
			{ID: 1, Title: "Veggie", Image: "pizza1.png", Price: 0.0038, Description: "A garden of delight"},
			{ID: 2, Title: "Pepperoni", Image: "pizza2.png", Price: 0.0042, Description: "Spicy treat"},
		},
		stores: map[int64]int64{1: 1},
		orders: map[int64][]Order{},
	}
}

func (m *memRepo) Menu(ctx context.Context) ([]MenuItem, error) {
	if m.menuGate != nil {
		select {
		case m.menuEntered <- struct{}{}:
		default:
		}
		<-m.menuGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.menuReads++
	m.menuCtxErrs = append(m.menuCtxErrs, ctx.Err())
	if m.err != nil {
		return nil, m.err
	}
	return append([]MenuItem(nil), m.menu...), nil
}

func (m *memRepo) AddMenuItem(_ context.Context, item MenuItem) (MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = int64(len(m.menu) + 1)
	m.menu = append(m.menu, item)
	return item, nil
}

func (m *memRepo) Orders(_ context.Context, dinerID int64, page int) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.orders[dinerID]
	start := min((page-1)*PageSize, len(all))
	end := min(start+PageSize, len(all))
	return all[start:end], nil
}

func (m *memRepo) Create(_ context.Context, dinerID int64, no NewOrder) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Order{}, m.err
	}
	if m.stores[no.StoreID] != no.FranchiseID {
		return Order{}, ErrInvalidOrder
	}
	m.nextID++
	o := Order{ID: m.nextID, FranchiseID: no.FranchiseID, StoreID: no.StoreID, Date: time.Date(2024, 6, 5, 5, 14, 40, 0, time.UTC)}
	for i, item := range no.Items {
		var found *MenuItem
		for j := range m.menu {
			if m.menu[j].ID == item.MenuID {
				found = &m.menu[j]
			}
		}
		if found == nil {
			return Order{}, ErrInvalidOrder
		}
		desc := item.Description
		if desc == "" {
			desc = found.Title
		}
		o.Items = append(o.Items, Item{ID: int64(i + 1), MenuID: found.ID, Description: desc, Price: found.Price})
	}
	m.orders[dinerID] = append(m.orders[dinerID], o)
	return o, nil
}

type stubFactory struct {
	mu     sync.Mutex
	result *factory.Result
	err    error
	diners []factory.Diner
}

func (f *stubFactory) SendOrder(_ context.Context, diner factory.Diner, _ any) (*factory.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.diners = append(f.diners, diner)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[module+":"+key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[module+":"+key] = true
	return nil
}

func (m *memIdempotency) Delete(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, module+":"+key)
	return nil
}

type countingRecorder struct {
	mu       sync.Mutex
	sold     int
	revenue  float64
	failures int
	chaos    int
	latency  int
}

func (c *countingRecorder) PizzasSold(count int, revenue float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sold += count
	c.revenue += revenue
}

func (c *countingRecorder) PizzaCreationFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
}

func (c *countingRecorder) FactoryLatency(time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latency++
}

func (c *countingRecorder) ChaosFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chaos++
}

var errDown = errors.New("connection refused")

var (
	admin = &auth.Principal{ID: 1, Name: "admin", Email: "a@jwt.com", Roles: []auth.RoleAssignment{{Role: auth.RoleAdmin}}}
	diner = &auth.Principal{ID: 5, Name: "dana", Email: "d@jwt.com", Roles: []auth.RoleAssignment{{Role: auth.RoleDiner}}}
)

type testEnv struct {
	service *Service
	repo    *memRepo
	factory *stubFactory
	keys    *memIdempotency
	metrics *countingRecorder
	roll    float64
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:    newMemRepo(),
		factory: &stubFactory{result: &factory.Result{OK: true, Status: 200, ReportURL: "http://factory/report/1", JWT: "fac.tory.jwt"}},
		keys:    &memIdempotency{},
		metrics: &countingRecorder{},
		roll:    0.9,
	}
	env.service = NewService(Config{
		Repo:        env.repo,
		Factory:     env.factory,
		Idempotency: env.keys,
		Metrics:     env.metrics,
		Random:      func() float64 { return env.roll },
	})
	return env
}

func veggieOrder() NewOrder {
	return NewOrder{FranchiseID: 1, StoreID: 1, Items: []Item{{MenuID: 1, Description: "Veggie"}}}
}
