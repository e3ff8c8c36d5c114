package franchise

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/jwt-pizza/pizza-service/internal/auth"
	"github.com/jwt-pizza/pizza-service/internal/shared"
)

// AuditRecorder persists audit entries for administrative changes.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates franchise and store management.
type Service struct {
	repo   Repository
	policy *auth.Policy
	audit  AuditRecorder
	logger *slog.Logger
}

// NewService constructs a Service. Ownership checks read from repo.
func NewService(repo Repository, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, policy: auth.NewPolicy(repo), audit: audit, logger: logger}
}

// List returns a page of franchises. p may be nil; only admins see who
// administers each franchise.
func (s *Service) List(ctx context.Context, p *auth.Principal, filter ListFilter) ([]Franchise, bool, error) {
	filter.WithAdmins = auth.IsAdmin(p)
	franchises, more, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	if !filter.WithAdmins {
		for i := range franchises {
			franchises[i].Admins = nil
		}
	}
	return franchises, more, nil
}

// ListForUser returns the franchises userID administers. Callers other than
// the user and admins get an empty list.
func (s *Service) ListForUser(ctx context.Context, p *auth.Principal, userID int64) ([]Franchise, error) {
	if p == nil {
		return nil, auth.ErrUnauthenticated
	}
	if !auth.CanActOnSelf(p, userID) {
		return []Franchise{}, nil
	}
	return s.repo.ListByAdmin(ctx, userID)
}

// Create registers a franchise administered by the given emails. Admin only.
func (s *Service) Create(ctx context.Context, p *auth.Principal, name string, adminEmails []string) (Franchise, error) {
	if err := auth.Authorize(p, auth.AdminOnly()); err != nil {
		if errors.Is(err, auth.ErrForbidden) {
			return Franchise{}, ErrCreateDenied
		}
		return Franchise{}, err
	}
	emails := make([]string, 0, len(adminEmails))
	for _, email := range adminEmails {
		email = auth.CanonicalEmail(email)
		if !slices.Contains(emails, email) {
			emails = append(emails, email)
		}
	}
	f, err := s.repo.Create(ctx, strings.TrimSpace(name), emails)
	if err != nil {
		return Franchise{}, err
	}
	s.record(ctx, p, "franchise.create", "franchise", f.ID, map[string]any{"name": f.Name, "admins": len(f.Admins)})
	return f, nil
}

// Delete removes a franchise and its stores. Admin only.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, franchiseID int64) error {
	if err := auth.Authorize(p, auth.AdminOnly()); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, franchiseID); err != nil {
		return err
	}
	s.record(ctx, p, "franchise.delete", "franchise", franchiseID, nil)
	return nil
}

// CreateStore opens a store under a franchise the principal manages.
func (s *Service) CreateStore(ctx context.Context, p *auth.Principal, franchiseID int64, name string) (Store, error) {
	if _, err := s.policy.AuthorizeFranchise(ctx, p, franchiseID); err != nil {
		return Store{}, err
	}
	store, err := s.repo.CreateStore(ctx, franchiseID, strings.TrimSpace(name))
	if err != nil {
		return Store{}, err
	}
	s.record(ctx, p, "store.create", "store", store.ID, map[string]any{"franchise_id": franchiseID, "name": store.Name})
	return store, nil
}

// DeleteStore closes a store the principal manages through its franchise.
func (s *Service) DeleteStore(ctx context.Context, p *auth.Principal, franchiseID, storeID int64) error {
	if _, err := s.policy.AuthorizeStore(ctx, p, franchiseID, storeID); err != nil {
		return err
	}
	if err := s.repo.DeleteStore(ctx, franchiseID, storeID); err != nil {
		return err
	}
	s.record(ctx, p, "store.delete", "store", storeID, map[string]any{"franchise_id": franchiseID})
	return nil
}

func (s *Service) record(ctx context.Context, p *auth.Principal, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  p.ID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
