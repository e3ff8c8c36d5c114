package auth

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-test-secret-test-secret"

type memUserStore struct {
	mu      sync.Mutex
	users   map[int64]User
	byEmail map[string]int64
	nextID  int64
	err     error
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: map[int64]User{}, byEmail: map[string]int64{}, nextID: 1}
}

func (m *memUserStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	u := m.users[id]
	return &u, nil
}

func (m *memUserStore) FindUserByID(ctx context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *memUserStore) InsertUser(ctx context.Context, nu NewUser) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if _, exists := m.byEmail[nu.Email]; exists {
		return nil, ErrDuplicateEmail
	}
	u := User{
		ID:           m.nextID,
		Name:         nu.Name,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Roles:        nu.Roles,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.nextID++
	m.users[u.ID] = u
	m.byEmail[u.Email] = u.ID
	return &u, nil
}

func (m *memUserStore) UpdateUser(ctx context.Context, id int64, update UserUpdate) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Email != nil && *update.Email != u.Email {
		if _, taken := m.byEmail[*update.Email]; taken {
			return nil, ErrDuplicateEmail
		}
		delete(m.byEmail, u.Email)
		u.Email = *update.Email
		m.byEmail[u.Email] = u.ID
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.PasswordHash != nil {
		u.PasswordHash = *update.PasswordHash
	}
	m.users[id] = u
	return &u, nil
}

// addUser seeds an account directly, bypassing registration.
func (m *memUserStore) addUser(t *testing.T, name, email, password string, roles ...RoleAssignment) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := m.InsertUser(context.Background(), NewUser{Name: name, Email: email, PasswordHash: string(hash), Roles: roles})
	require.NoError(t, err)
	return u
}

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	err      error
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: map[string]Session{}}
}

func (m *memSessionStore) CreateSession(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *memSessionStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok, nil
}

func (m *memSessionStore) SessionExists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.sessions[id]
	return ok, nil
}

func (m *memSessionStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type countingRecorder struct {
	successes, failures, opened, closed atomic.Int64
}

func (c *countingRecorder) AuthAttempt(success bool) {
	if success {
		c.successes.Add(1)
		return
	}
	c.failures.Add(1)
}
func (c *countingRecorder) SessionOpened() { c.opened.Add(1) }
func (c *countingRecorder) SessionClosed() { c.closed.Add(1) }

type testEnv struct {
	service  *Service
	users    *memUserStore
	sessions *memSessionStore
	codec    *TokenCodec
	metrics  *countingRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	codec, err := NewTokenCodec(TokenConfig{Secret: testSecret, Issuer: "pizza-test"})
	require.NoError(t, err)
	env := &testEnv{
		users:    newMemUserStore(),
		sessions: newMemSessionStore(),
		codec:    codec,
		metrics:  &countingRecorder{},
	}
	env.service, err = NewService(ServiceConfig{
		Users:    env.users,
		Sessions: env.sessions,
		Codec:    codec,
		Hasher:   NewBcryptHasher(bcrypt.MinCost),
		Metrics:  env.metrics,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return env
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(v string) *string { return &v }
