package franchise

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwt-pizza/pizza-service/internal/auth"
)

func newTestService(t *testing.T) (*Service, *memRepo, *memAudit) {
	t.Helper()
	repo := newMemRepo()
	audit := &memAudit{}
	return NewService(repo, audit, slog.New(slog.NewTextHandler(io.Discard, nil))), repo, audit
}

func TestCreateRequiresAdmin(t *testing.T) {
	svc, _, audit := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, franchisee, "pizzaPocket", nil)
	assert.Same(t, ErrCreateDenied, err)

	_, err = svc.Create(ctx, nil, "pizzaPocket", nil)
	assert.Same(t, auth.ErrUnauthenticated, err)

	f, err := svc.Create(ctx, admin, " pizzaPocket ", []string{"Frank@JWT.com"})
	require.NoError(t, err)
	assert.Equal(t, "pizzaPocket", f.Name)
	require.Len(t, f.Admins, 1)
	assert.Equal(t, int64(4), f.Admins[0].ID)
	assert.Equal(t, []string{"franchise.create"}, audit.actions())
}

func TestCreateUnknownAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), admin, "pizzaPocket", []string{"ghost@jwt.com"})
	assert.Same(t, ErrUnknownAdmin, err)
}

func TestListHidesAdmins(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.seed("a", []int64{4})
	repo.seed("b", nil)

	for _, p := range []*auth.Principal{nil, diner, franchisee} {
		franchises, more, err := svc.List(context.Background(), p, ListFilter{Limit: 1})
		require.NoError(t, err)
		assert.True(t, more)
		require.Len(t, franchises, 1)
		assert.Nil(t, franchises[0].Admins)
	}
}

func TestListShowsAdminsToAdmin(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.seed("pizzaPocket", []int64{4})

	franchises, _, err := svc.List(context.Background(), admin, ListFilter{})
	require.NoError(t, err)
	require.Len(t, franchises, 1)
	require.Len(t, franchises[0].Admins, 1)
	assert.Equal(t, int64(4), franchises[0].Admins[0].ID)
	assert.True(t, repo.lastFilter.WithAdmins)
}

func TestCreateCollapsesRepeatedAdmins(t *testing.T) {
	svc, repo, _ := newTestService(t)

	f, err := svc.Create(context.Background(), admin, "pizzaPocket", []string{"frank@jwt.com", " FRANK@jwt.com", "dana@jwt.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"frank@jwt.com", "dana@jwt.com"}, repo.lastAdminEmails)
	assert.Len(t, f.Admins, 2)
}

func TestListForUser(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.seed("pizzaPocket", []int64{4})
	ctx := context.Background()

	own, err := svc.ListForUser(ctx, franchisee, 4)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	other, err := svc.ListForUser(ctx, diner, 4)
	require.NoError(t, err)
	assert.Empty(t, other)
	assert.NotNil(t, other)

	byAdmin, err := svc.ListForUser(ctx, admin, 4)
	require.NoError(t, err)
	assert.Len(t, byAdmin, 1)

	_, err = svc.ListForUser(ctx, nil, 4)
	assert.Same(t, auth.ErrUnauthenticated, err)
}

func TestStoreManagementFollowsFranchiseAuthority(t *testing.T) {
	svc, repo, audit := newTestService(t)
	f := repo.seed("pizzaPocket", []int64{4})
	other := repo.seed("other", []int64{9})
	ctx := context.Background()

	store, err := svc.CreateStore(ctx, franchisee, f.ID, "SLC")
	require.NoError(t, err)
	assert.Equal(t, f.ID, store.FranchiseID)

	_, err = svc.CreateStore(ctx, diner, f.ID, "SLC")
	assert.Same(t, auth.ErrForbidden, err)

	_, err = svc.CreateStore(ctx, franchisee, other.ID, "SLC")
	assert.Same(t, auth.ErrForbidden, err)

	assert.Same(t, auth.ErrForbidden, svc.DeleteStore(ctx, diner, f.ID, store.ID))
	assert.Same(t, auth.ErrForbidden, svc.DeleteStore(ctx, franchisee, other.ID, store.ID), "store addressed through the wrong franchise")
	require.NoError(t, svc.DeleteStore(ctx, franchisee, f.ID, store.ID))

	assert.Equal(t, []string{"store.create", "store.delete"}, audit.actions())
}

func TestUnknownFranchiseDistinguishesAdmins(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateStore(ctx, admin, 42, "SLC")
	assert.Same(t, auth.ErrNotFound, err)

	_, err = svc.CreateStore(ctx, franchisee, 42, "SLC")
	assert.Same(t, auth.ErrForbidden, err)
}

func TestDeleteFranchise(t *testing.T) {
	svc, repo, _ := newTestService(t)
	f := repo.seed("pizzaPocket", []int64{4})
	ctx := context.Background()

	assert.Same(t, auth.ErrForbidden, svc.Delete(ctx, franchisee, f.ID))
	require.NoError(t, svc.Delete(ctx, admin, f.ID))
	assert.Same(t, auth.ErrNotFound, svc.Delete(ctx, admin, f.ID))
}

func TestAuditFailureDoesNotFailOperation(t *testing.T) {
	svc, repo, audit := newTestService(t)
	f := repo.seed("pizzaPocket", []int64{4})
	audit.err = errDown

	_, err := svc.CreateStore(context.Background(), admin, f.ID, "SLC")
	assert.NoError(t, err)
}

func TestOwnershipOutageIsUnavailable(t *testing.T) {
	svc, repo, _ := newTestService(t)
	f := repo.seed("pizzaPocket", []int64{4})
	repo.err = errDown

	_, err := svc.CreateStore(context.Background(), franchisee, f.ID, "SLC")
	assert.ErrorIs(t, err, auth.ErrStoreUnavailable)
}
