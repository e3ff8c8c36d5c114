package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
)

// Recorder receives authentication metrics.
type Recorder interface {
	AuthAttempt(success bool)
	SessionOpened()
	SessionClosed()
}

type nopRecorder struct{}

func (nopRecorder) AuthAttempt(bool) {}
func (nopRecorder) SessionOpened()   {}
func (nopRecorder) SessionClosed()   {}

// ServiceConfig collects the collaborators of Service.
type ServiceConfig struct {
	Users    UserStore
	Sessions SessionStore
	Codec    *TokenCodec
	Hasher   PasswordHasher
	Metrics  Recorder
	Logger   *slog.Logger
}

// Service owns registration, login, logout, token resolution and account updates.
type Service struct {
	users     UserStore
	sessions  SessionStore
	codec     *TokenCodec
	hasher    PasswordHasher
	metrics   Recorder
	logger    *slog.Logger
	dummyHash string
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Users == nil || cfg.Sessions == nil || cfg.Codec == nil {
		return nil, errors.New("auth: users, sessions and codec are required")
	}
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	// Compared against on unknown emails so both login failures cost one hash.
	dummy, err := hasher.Hash("pizza-service:no-such-user")
	if err != nil {
		return nil, err
	}
	return &Service{
		users:     cfg.Users,
		sessions:  cfg.Sessions,
		codec:     cfg.Codec,
		hasher:    hasher,
		metrics:   metrics,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

// CanonicalEmail trims and case-folds an email address.
func CanonicalEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// Register creates a diner account and opens its first session.
func (s *Service) Register(ctx context.Context, name, email, password string) (*Principal, string, error) {
	name = strings.TrimSpace(name)
	email = CanonicalEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, "", ErrInvalidInput
	}
	if len(password) > MaxPasswordBytes {
		return nil, "", ErrPasswordTooLong
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, "", err
	}
	user, err := s.users.InsertUser(ctx, NewUser{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Roles:        []RoleAssignment{{Role: RoleDiner}},
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, "", ErrDuplicateEmail
		}
		return nil, "", storeUnavailable("insert user", err)
	}
	principal := user.Principal()
	token, err := s.openSession(ctx, principal)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user registered", slog.Int64("user_id", principal.ID))
	return principal, token, nil
}

// Login verifies credentials and opens a new, independent session.
func (s *Service) Login(ctx context.Context, email, password string) (*Principal, string, error) {
	user, err := s.users.FindUserByEmail(ctx, CanonicalEmail(email))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, "", storeUnavailable("find user", err)
		}
		_ = s.hasher.Compare(s.dummyHash, password)
		s.metrics.AuthAttempt(false)
		return nil, "", ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.metrics.AuthAttempt(false)
		return nil, "", ErrInvalidCredentials
	}
	principal := user.Principal()
	token, err := s.openSession(ctx, principal)
	if err != nil {
		return nil, "", err
	}
	s.metrics.AuthAttempt(true)
	return principal, token, nil
}

// Logout revokes the session behind token. A token that no longer resolves,
// including one already logged out, fails with ErrUnauthenticated.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.resolveClaims(ctx, token)
	if err != nil {
		return err
	}
	removed, err := s.sessions.DeleteSession(ctx, claims.ID)
	if err != nil {
		return storeUnavailable("delete session", err)
	}
	if !removed {
		return ErrUnauthenticated
	}
	s.metrics.SessionClosed()
	return nil
}

// Resolve returns the principal for a token that verifies and still has an
// active-session record. Failures are uniformly ErrUnauthenticated, except
// store outages which surface as ErrStoreUnavailable.
func (s *Service) Resolve(ctx context.Context, token string) (*Principal, error) {
	claims, err := s.resolveClaims(ctx, token)
	if err != nil {
		return nil, err
	}
	return claims.Principal(), nil
}

// UpdateUser applies changes to target on behalf of acting. Existing sessions
// of the target stay valid.
func (s *Service) UpdateUser(ctx context.Context, acting *Principal, targetID int64, changes UserChanges) (*Principal, error) {
	if err := Authorize(acting, ActOnSelf(targetID)); err != nil {
		return nil, err
	}
	var update UserUpdate
	if changes.Name != nil {
		name := strings.TrimSpace(*changes.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		update.Name = &name
	}
	if changes.Email != nil {
		email := CanonicalEmail(*changes.Email)
		if email == "" {
			return nil, ErrInvalidInput
		}
		update.Email = &email
	}
	if changes.Password != nil {
		if *changes.Password == "" {
			return nil, ErrInvalidInput
		}
		if len(*changes.Password) > MaxPasswordBytes {
			return nil, ErrPasswordTooLong
		}
		hash, err := s.hasher.Hash(*changes.Password)
		if err != nil {
			return nil, err
		}
		update.PasswordHash = &hash
	}
	user, err := s.users.UpdateUser(ctx, targetID, update)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, ErrDuplicateEmail):
			return nil, ErrDuplicateEmail
		}
		return nil, storeUnavailable("update user", err)
	}
	return user.Principal(), nil
}

// CurrentUser reloads the principal's account so renamed users and changed
// roles show up without a new login.
func (s *Service) CurrentUser(ctx context.Context, p *Principal) (*Principal, error) {
	if p == nil {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.FindUserByID(ctx, p.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, storeUnavailable("find user", err)
	}
	return user.Principal(), nil
}

func (s *Service) resolveClaims(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := s.codec.Verify(token)
	if err != nil {
		s.logger.Debug("token rejected", slog.Any("error", err))
		return nil, ErrUnauthenticated
	}
	ok, err := s.sessions.SessionExists(ctx, claims.ID)
	if err != nil {
		return nil, storeUnavailable("session exists", err)
	}
	if !ok {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

func (s *Service) openSession(ctx context.Context, p *Principal) (string, error) {
	claims := s.codec.NewClaims(p)
	token, err := s.codec.Issue(claims)
	if err != nil {
		return "", err
	}
	if err := s.sessions.CreateSession(ctx, Session{
		ID:        claims.ID,
		UserID:    p.ID,
		CreatedAt: claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}); err != nil {
		return "", storeUnavailable("create session", err)
	}
	s.metrics.SessionOpened()
	return token, nil
}
