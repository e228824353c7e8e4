package permissions

import (
	"context"
	"testing"

	"github.com/abricot-app/abricot/internal/models"
	"github.com/abricot-app/abricot/internal/testutil"
	"github.com/abricot-app/abricot/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	checker     *Checker
	project     models.Project
	owner       models.User
	admin       models.User
	contributor models.User
	stranger    models.User
}

func newFixture(t *testing.T) fixture {
	conn := testutil.NewTestDB(t)

	owner := testutil.CreateUser(t, conn, "owner")
	admin := testutil.CreateUser(t, conn, "admin")
	contributor := testutil.CreateUser(t, conn, "contributor")
	stranger := testutil.CreateUser(t, conn, "stranger")

	project := testutil.CreateProject(t, conn, owner, "Abricot")
	testutil.AddMember(t, conn, project, admin, types.RoleAdmin)
	testutil.AddMember(t, conn, project, contributor, types.RoleContributor)

	return fixture{
		checker:     NewChecker(conn),
		project:     project,
		owner:       owner,
		admin:       admin,
		contributor: contributor,
		stranger:    stranger,
	}
}

func TestResolveRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, types.RoleOwner, f.checker.ResolveRole(ctx, f.owner.ID, f.project.ID))
	assert.Equal(t, types.RoleAdmin, f.checker.ResolveRole(ctx, f.admin.ID, f.project.ID))
	assert.Equal(t, types.RoleContributor, f.checker.ResolveRole(ctx, f.contributor.ID, f.project.ID))
	assert.Equal(t, types.RoleNone, f.checker.ResolveRole(ctx, f.stranger.ID, f.project.ID))
	assert.Equal(t, types.RoleNone, f.checker.ResolveRole(ctx, f.owner.ID, f.project.ID+999))
	assert.Equal(t, types.RoleNone, f.checker.ResolveRole(ctx, 0, f.project.ID))
}

func TestResolveRole_OwnershipWinsOverMembership(t *testing.T) {
	conn := testutil.NewTestDB(t)
	owner := testutil.CreateUser(t, conn, "owner")
	project := testutil.CreateProject(t, conn, owner, "Abricot")
	// A stale row must never downgrade the owner.
	testutil.AddMember(t, conn, project, owner, types.RoleContributor)

	checker := NewChecker(conn)
	ctx := context.Background()

	assert.Equal(t, types.RoleOwner, checker.ResolveRole(ctx, owner.ID, project.ID))
	assert.True(t, checker.CanModifyProject(ctx, owner.ID, project.ID))
	assert.True(t, checker.CanDeleteProject(ctx, owner.ID, project.ID))
}

func TestGateMatrix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name          string
		user          models.User
		access        bool
		createTasks   bool
		modifyTasks   bool
		modifyProject bool
		deleteProject bool
	}{
		{"owner", f.owner, true, true, true, true, true},
		{"admin", f.admin, true, true, false, true, false},
		{"contributor", f.contributor, true, true, true, false, false},
		{"stranger", f.stranger, false, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pid := f.project.ID
			assert.Equal(t, tt.access, f.checker.HasAccess(ctx, tt.user.ID, pid), "HasAccess")
			assert.Equal(t, tt.createTasks, f.checker.CanCreateTasks(ctx, tt.user.ID, pid), "CanCreateTasks")
			assert.Equal(t, tt.modifyTasks, f.checker.CanModifyTasks(ctx, tt.user.ID, pid), "CanModifyTasks")
			assert.Equal(t, tt.modifyProject, f.checker.CanModifyProject(ctx, tt.user.ID, pid), "CanModifyProject")
			assert.Equal(t, tt.deleteProject, f.checker.CanDeleteProject(ctx, tt.user.ID, pid), "CanDeleteProject")
		})
	}
}

func TestCanModifyTasks_ExcludesAdmin(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, types.RoleAdmin, f.checker.ResolveRole(context.Background(), f.admin.ID, f.project.ID))
	assert.False(t, f.checker.CanModifyTasks(context.Background(), f.admin.ID, f.project.ID))
}

func TestCanDeleteProject_MissingProject(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.checker.CanDeleteProject(context.Background(), f.owner.ID, f.project.ID+1))
	assert.False(t, f.checker.CanDeleteProject(context.Background(), 0, f.project.ID))
}
