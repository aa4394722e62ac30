package network_test

import (
	"context"
	"testing"

	infrarepo "github.com/amirasaad/mlmcore/infra/repository"
	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/amirasaad/mlmcore/pkg/domain"
	"github.com/amirasaad/mlmcore/pkg/domain/network"
	networksvc "github.com/amirasaad/mlmcore/pkg/service/network"
	"github.com/amirasaad/mlmcore/pkg/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*networksvc.Service, *gorm.DB) {
	t.Helper()
	db := testutils.NewSQLiteDB(t)
	svc := networksvc.New(config.Deps{
		Uow:    infrarepo.NewUoW(db),
		Logger: testutils.DiscardLogger(),
		Config: &config.App{Network: &config.Network{DefaultDepth: 16, HardDepthCap: 64, RequireActive: true}},
	})
	return svc, db
}

func mustAttach(t *testing.T, svc *networksvc.Service, parent, child uuid.UUID) *network.Edge {
	t.Helper()
	e, err := svc.AttachChildToParent(context.Background(), parent, child)
	require.NoError(t, err)
	return e
}

func parentOf(t *testing.T, svc *networksvc.Service, child uuid.UUID) uuid.UUID {
	t.Helper()
	e, err := svc.GetParent(context.Background(), child)
	require.NoError(t, err)
	return e.ParentID
}

func TestAttachChildToParent(t *testing.T) {
	svc, db := newService(t)
	users := testutils.SeedUsers(t, db, 2)

	edge := mustAttach(t, svc, users[0], users[1])
	assert.NotZero(t, edge.ID)
	assert.Equal(t, users[0], edge.ParentID)
	assert.Equal(t, users[0], parentOf(t, svc, users[1]))
}

func TestAttachChildToParent_SameParentIsNoop(t *testing.T) {
	svc, db := newService(t)
	users := testutils.SeedUsers(t, db, 2)

	first := mustAttach(t, svc, users[0], users[1])
	second := mustAttach(t, svc, users[0], users[1])
	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, testutils.CountRows(t, db, &infrarepo.NetworkEdge{}))
}

func TestAttachChildToParent_Reparent(t *testing.T) {
	svc, db := newService(t)
	users := testutils.SeedUsers(t, db, 4)
	mustAttach(t, svc, users[0], users[1])
	mustAttach(t, svc, users[1], users[2])

	moved := mustAttach(t, svc, users[3], users[1])
	assert.Equal(t, users[3], moved.ParentID)
	assert.Equal(t, users[3], parentOf(t, svc, users[1]))
	// The subtree travels with the child.
	assert.Equal(t, users[1], parentOf(t, svc, users[2]))
	assert.EqualValues(t, 2, testutils.CountRows(t, db, &infrarepo.NetworkEdge{}))
}

func TestAttachChildToParent_Rejections(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	active := testutils.SeedUsers(t, db, 2)
	inactive := testutils.SeedUser(t, db, testutils.Inactive())
	locked := testutils.SeedUser(t, db, testutils.ReferrerLocked())

	cases := []struct {
		name     string
		parent   uuid.UUID
		child    uuid.UUID
		target   error
		category error
	}{
		{"self loop", active[0], active[0], network.ErrSelfLoop, domain.ErrValidation},
		{"missing parent", uuid.New(), active[1], domain.ErrNotFound, domain.ErrNotFound},
		{"missing child", active[0], uuid.New(), domain.ErrNotFound, domain.ErrNotFound},
		{"inactive child", active[0], inactive, network.ErrInactiveUser, domain.ErrValidation},
		{"inactive parent", inactive, active[1], network.ErrInactiveUser, domain.ErrValidation},
		{"locked child", active[0], locked, network.ErrReferrerLocked, domain.ErrIntegrity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AttachChildToParent(ctx, tc.parent, tc.child)
			require.ErrorIs(t, err, tc.target)
			require.ErrorIs(t, err, tc.category)
		})
	}
	assert.EqualValues(t, 0, testutils.CountRows(t, db, &infrarepo.NetworkEdge{}))
}

func TestAttachChildToParent_LockedChildSameParentIsNoop(t *testing.T) {
	svc, db := newService(t)
	parent := testutils.SeedUser(t, db)
	child := testutils.SeedUser(t, db, testutils.ReferrerLocked())
	testutils.SeedEdge(t, db, parent, child)

	_, err := svc.AttachChildToParent(context.Background(), parent, child)
	require.NoError(t, err)
}

func TestAttachChildToParent_RejectsCycle(t *testing.T) {
	svc, db := newService(t)
	users := testutils.SeedUsers(t, db, 3)
	a, b, c := users[0], users[1], users[2]
	mustAttach(t, svc, a, b)
	mustAttach(t, svc, b, c)

	_, err := svc.AttachChildToParent(context.Background(), c, a)
	require.ErrorIs(t, err, network.ErrCycle)
	require.ErrorIs(t, err, domain.ErrIntegrity)

	_, err = svc.GetParent(context.Background(), a)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAttachChildToParent_UnderOwnDescendantLeavesEdgeUnchanged(t *testing.T) {
	svc, db := newService(t)
	users := testutils.SeedUsers(t, db, 4)
	root, b, c, d := users[0], users[1], users[2], users[3]
	mustAttach(t, svc, root, b)
	mustAttach(t, svc, b, c)
	mustAttach(t, svc, c, d)
	before, err := svc.GetParent(context.Background(), b)
	require.NoError(t, err)

	_, err = svc.AttachChildToParent(context.Background(), d, b)
	require.ErrorIs(t, err, network.ErrCycle)

	after, err := svc.GetParent(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, root, after.ParentID)
}

func TestDetachChild(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	users := testutils.SeedUsers(t, db, 2)
	mustAttach(t, svc, users[0], users[1])

	require.NoError(t, svc.DetachChild(ctx, users[1]))
	_, err := svc.GetParent(ctx, users[1])
	require.ErrorIs(t, err, domain.ErrNotFound)

	err = svc.DetachChild(ctx, users[1])
	require.ErrorIs(t, err, domain.ErrNotFound)

	locked := testutils.SeedUser(t, db, testutils.ReferrerLocked())
	testutils.SeedEdge(t, db, users[0], locked)
	err = svc.DetachChild(ctx, locked)
	require.ErrorIs(t, err, network.ErrReferrerLocked)
}

func TestGetUpline(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	chain := testutils.SeedChain(t, db, 5)
	leaf := chain[4]

	up, err := svc.GetUpline(ctx, leaf, 3)
	require.NoError(t, err)
	assert.Equal(t, []network.UplineNode{
		{Level: 1, UserID: chain[3]},
		{Level: 2, UserID: chain[2]},
		{Level: 3, UserID: chain[1]},
	}, up)

	up, err = svc.GetUpline(ctx, leaf, 0)
	require.NoError(t, err)
	assert.Len(t, up, 4)
	assert.Equal(t, chain[0], up[3].UserID)

	up, err = svc.GetUpline(ctx, chain[0], 5)
	require.NoError(t, err)
	assert.Empty(t, up)
}

// buildTree creates root with two children, each with two children, down to depth levels.
func buildTree(t *testing.T, db *gorm.DB, depth int) (uuid.UUID, map[int][]uuid.UUID) {
	t.Helper()
	root := testutils.SeedUser(t, db)
	byLevel := map[int][]uuid.UUID{0: {root}}
	for level := 1; level <= depth; level++ {
		for _, parent := range byLevel[level-1] {
			for range 2 {
				child := testutils.SeedUser(t, db)
				testutils.SeedEdge(t, db, parent, child)
				byLevel[level] = append(byLevel[level], child)
			}
		}
	}
	return root, byLevel
}

func TestGetDownline_Depth4Complete(t *testing.T) {
	svc, db := newService(t)
	root, byLevel := buildTree(t, db, 4)

	down, err := svc.GetDownline(context.Background(), root, 4)
	require.NoError(t, err)
	require.Len(t, down, 2+4+8+16)

	got := map[int][]uuid.UUID{}
	for _, n := range down {
		got[n.Level] = append(got[n.Level], n.UserID)
	}
	for level := 1; level <= 4; level++ {
		assert.Equal(t, byLevel[level], got[level], "level %d in attach order", level)
	}

	down, err = svc.GetDownline(context.Background(), root, 2)
	require.NoError(t, err)
	assert.Len(t, down, 6)
}

func TestGetDownline_AbsurdDepthTerminates(t *testing.T) {
	svc, db := newService(t)
	chain := testutils.SeedChain(t, db, 70)

	down, err := svc.GetDownline(context.Background(), chain[0], 1_000_000)
	require.NoError(t, err)
	assert.Len(t, down, network.HardMaxDepth)
	assert.Equal(t, network.HardMaxDepth, down[len(down)-1].Level)

	down, err = svc.GetDownline(context.Background(), chain[0], -1)
	require.NoError(t, err)
	assert.Len(t, down, network.DefaultMaxDepth)
}

func TestGetDownline_SurvivesCorruptCycle(t *testing.T) {
	svc, db := newService(t)
	users := testutils.SeedUsers(t, db, 3)
	testutils.SeedEdge(t, db, users[0], users[1])
	testutils.SeedEdge(t, db, users[1], users[2])
	// Bypass validation to simulate a cycle left by a bad import.
	testutils.SeedEdge(t, db, users[2], users[0])

	down, err := svc.GetDownline(context.Background(), users[0], 64)
	require.NoError(t, err)
	assert.Len(t, down, 2)

	up, err := svc.GetUpline(context.Background(), users[0], 64)
	require.NoError(t, err)
	assert.Len(t, up, 2)
}

func TestListFirstLine_OldestFirst(t *testing.T) {
	svc, db := newService(t)
	parent := testutils.SeedUser(t, db)
	kids := testutils.SeedUsers(t, db, 3)
	for _, k := range kids {
		mustAttach(t, svc, parent, k)
	}
	grandchild := testutils.SeedUser(t, db)
	mustAttach(t, svc, kids[0], grandchild)

	edges, err := svc.ListFirstLine(context.Background(), parent)
	require.NoError(t, err)
	require.Len(t, edges, 3)
	for i, e := range edges {
		assert.Equal(t, kids[i], e.ChildID)
	}
}
