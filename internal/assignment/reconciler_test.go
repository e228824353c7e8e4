package assignment

import (
	"context"
	"sync"
	"testing"

	"github.com/abricot-app/abricot/internal/apperr"
	"github.com/abricot-app/abricot/internal/models"
	"github.com/abricot-app/abricot/internal/testutil"
	"github.com/abricot-app/abricot/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type scene struct {
	db      *gorm.DB
	owner   models.User
	alice   models.User
	bob     models.User
	project models.Project
	task    models.Task
}

func newScene(t *testing.T) scene {
	conn := testutil.NewTestDB(t)
	owner := testutil.CreateUser(t, conn, "owner")
	project := testutil.CreateProject(t, conn, owner, "Abricot")

	return scene{
		db:      conn,
		owner:   owner,
		alice:   testutil.CreateUser(t, conn, "alice"),
		bob:     testutil.CreateUser(t, conn, "bob"),
		project: project,
		task:    testutil.CreateTask(t, conn, project, owner, "Write docs"),
	}
}

func memberIDs(t *testing.T, conn *gorm.DB, projectID uint) []uint {
	t.Helper()
	var ids []uint
	require.NoError(t, conn.Model(&models.ProjectMembership{}).
		Where("project_id = ?", projectID).Order("user_id").Pluck("user_id", &ids).Error)
	return ids
}

func TestReconcile_RoundTrip(t *testing.T) {
	s := newScene(t)
	r := NewReconciler(s.db, nil, RemovalKeep)

	sets := [][]uint{
		{s.alice.ID},
		{s.alice.ID, s.bob.ID, s.owner.ID},
		{s.bob.ID, s.bob.ID, s.alice.ID}, // duplicates collapse
		{},
	}

	for _, desired := range sets {
		_, err := r.Reconcile(context.Background(), s.task.ID, s.project.ID, desired)
		require.NoError(t, err)

		want := normalize(desired)
		got := testutil.AssigneeIDs(t, s.db, s.task.ID)
		if len(want) == 0 {
			assert.Empty(t, got)
		} else {
			assert.Equal(t, want, got)
		}
	}
}

func TestReconcile_EnrollsNewAssigneesAsContributors(t *testing.T) {
	s := newScene(t)
	r := NewReconciler(s.db, nil, RemovalPruneIdle)

	out, err := r.Reconcile(context.Background(), s.task.ID, s.project.ID, []uint{s.alice.ID, s.owner.ID})
	require.NoError(t, err)

	assert.Equal(t, []uint{s.alice.ID}, out.Enrolled, "owner is never enrolled")
	assert.Equal(t, types.RoleContributor, testutil.MembershipRole(t, s.db, s.project.ID, s.alice.ID))
	assert.Equal(t, types.RoleNone, testutil.MembershipRole(t, s.db, s.project.ID, s.owner.ID))
}

func TestReconcile_KeepsExistingRole(t *testing.T) {
	s := newScene(t)
	testutil.AddMember(t, s.db, s.project, s.alice, types.RoleAdmin)
	r := NewReconciler(s.db, nil, RemovalPruneIdle)

	out, err := r.Reconcile(context.Background(), s.task.ID, s.project.ID, []uint{s.alice.ID})
	require.NoError(t, err)

	assert.Empty(t, out.Enrolled)
	assert.Equal(t, types.RoleAdmin, testutil.MembershipRole(t, s.db, s.project.ID, s.alice.ID))
}

func TestReconcile_Idempotent(t *testing.T) {
	s := newScene(t)
	r := NewReconciler(s.db, nil, RemovalPrune)
	desired := []uint{s.alice.ID, s.bob.ID}

	_, err := r.Reconcile(context.Background(), s.task.ID, s.project.ID, desired)
	require.NoError(t, err)
	assigneesBefore := testutil.AssigneeIDs(t, s.db, s.task.ID)
	membersBefore := memberIDs(t, s.db, s.project.ID)

	out, err := r.Reconcile(context.Background(), s.task.ID, s.project.ID, desired)
	require.NoError(t, err)

	assert.Empty(t, out.Added)
	assert.Empty(t, out.Removed)
	assert.Empty(t, out.Enrolled)
	assert.Empty(t, out.Pruned)
	assert.Equal(t, assigneesBefore, testutil.AssigneeIDs(t, s.db, s.task.ID))
	assert.Equal(t, membersBefore, memberIDs(t, s.db, s.project.ID))
}

func TestReconcile_RemovalPolicies(t *testing.T) {
	tests := []struct {
		name         string
		policy       RemovalPolicy
		otherTask    bool // alice also holds another task in the project
		wantMember   bool
		wantPrunedID bool
	}{
		{"keep", RemovalKeep, false, true, false},
		{"prune removes membership", RemovalPrune, false, false, true},
		{"prune strands a user holding other tasks", RemovalPrune, true, false, true},
		{"prune_idle removes idle contributor", RemovalPruneIdle, false, false, true},
		{"prune_idle keeps busy contributor", RemovalPruneIdle, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScene(t)
			r := NewReconciler(s.db, nil, tt.policy)
			ctx := context.Background()

			_, err := r.Reconcile(ctx, s.task.ID, s.project.ID, []uint{s.alice.ID})
			require.NoError(t, err)

			if tt.otherTask {
				other := testutil.CreateTask(t, s.db, s.project, s.owner, "Other")
				_, err := r.Reconcile(ctx, other.ID, s.project.ID, []uint{s.alice.ID})
				require.NoError(t, err)
			}

			out, err := r.Reconcile(ctx, s.task.ID, s.project.ID, nil)
			require.NoError(t, err)

			assert.Equal(t, []uint{s.alice.ID}, out.Removed)
			assert.Empty(t, testutil.AssigneeIDs(t, s.db, s.task.ID))
			assert.Equal(t, tt.wantPrunedID, len(out.Pruned) == 1)

			role := testutil.MembershipRole(t, s.db, s.project.ID, s.alice.ID)
			if tt.wantMember {
				assert.Equal(t, types.RoleContributor, role)
			} else {
				assert.Equal(t, types.RoleNone, role)
			}
		})
	}
}

func TestReconcile_PruneIdleSparesAdmins(t *testing.T) {
	s := newScene(t)
	testutil.AddMember(t, s.db, s.project, s.alice, types.RoleAdmin)
	r := NewReconciler(s.db, nil, RemovalPruneIdle)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, s.task.ID, s.project.ID, []uint{s.alice.ID})
	require.NoError(t, err)
	out, err := r.Reconcile(ctx, s.task.ID, s.project.ID, nil)
	require.NoError(t, err)

	assert.Empty(t, out.Pruned)
	assert.Equal(t, types.RoleAdmin, testutil.MembershipRole(t, s.db, s.project.ID, s.alice.ID))
}

func TestReconcile_NeverPrunesOwner(t *testing.T) {
	s := newScene(t)
	r := NewReconciler(s.db, nil, RemovalPrune)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, s.task.ID, s.project.ID, []uint{s.owner.ID})
	require.NoError(t, err)
	out, err := r.Reconcile(ctx, s.task.ID, s.project.ID, nil)
	require.NoError(t, err)

	assert.Empty(t, out.Pruned)
}

func TestReconcile_RejectsUnknownUsers(t *testing.T) {
	s := newScene(t)
	r := NewReconciler(s.db, nil, RemovalKeep)

	_, err := r.Reconcile(context.Background(), s.task.ID, s.project.ID, []uint{s.alice.ID, 9999})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	assert.Empty(t, testutil.AssigneeIDs(t, s.db, s.task.ID), "nothing written on failure")
	assert.Equal(t, types.RoleNone, testutil.MembershipRole(t, s.db, s.project.ID, s.alice.ID))
}

func TestReconcile_RejectsSystemIdentity(t *testing.T) {
	s := newScene(t)
	system := models.User{Name: types.SystemUserName, Email: types.SystemUserEmail, PasswordHash: "!"}
	require.NoError(t, s.db.Create(&system).Error)
	r := NewReconciler(s.db, nil, RemovalKeep)

	_, err := r.Reconcile(context.Background(), s.task.ID, s.project.ID, []uint{system.ID})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, types.RoleNone, testutil.MembershipRole(t, s.db, s.project.ID, system.ID))
}

func TestReconcile_TaskFromAnotherProject(t *testing.T) {
	s := newScene(t)
	other := testutil.CreateProject(t, s.db, s.owner, "Other")
	r := NewReconciler(s.db, nil, RemovalKeep)

	_, err := r.Reconcile(context.Background(), s.task.ID, other.ID, []uint{s.alice.ID})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestReconcile_ConcurrentCallsDoNotInterleave(t *testing.T) {
	s := newScene(t)
	carol := testutil.CreateUser(t, s.db, "carol")
	r := NewReconciler(s.db, NewLocalLocker(), RemovalKeep)

	setA := normalize([]uint{s.alice.ID, s.bob.ID})
	setB := normalize([]uint{carol.ID})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		desired := setA
		if i%2 == 1 {
			desired = setB
		}
		wg.Add(1)
		go func(desired []uint) {
			defer wg.Done()
			_, err := r.Reconcile(context.Background(), s.task.ID, s.project.ID, desired)
			assert.NoError(t, err)
		}(desired)
	}
	wg.Wait()

	got := testutil.AssigneeIDs(t, s.db, s.task.ID)
	assert.True(t, assert.ObjectsAreEqual(setA, got) || assert.ObjectsAreEqual(setB, got),
		"final set %v must be exactly one caller's intent", got)
}

// Membership rows are shared by the tasks of a project: unassigning alice
// from one task must never prune her while another task is assigning her.
func TestReconcile_ConcurrentTasksKeepAssigneesParticipating(t *testing.T) {
	s := newScene(t)
	other := testutil.CreateTask(t, s.db, s.project, s.owner, "Review docs")
	r := NewReconciler(s.db, NewLocalLocker(), RemovalPruneIdle)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		taskID := s.task.ID
		if i%2 == 1 {
			taskID = other.ID
		}
		var desired []uint
		if i%4 < 2 {
			desired = []uint{s.alice.ID}
		}

		wg.Add(1)
		go func(taskID uint, desired []uint) {
			defer wg.Done()
			_, err := r.Reconcile(context.Background(), taskID, s.project.ID, desired)
			assert.NoError(t, err)
		}(taskID, desired)
	}
	wg.Wait()

	for _, taskID := range []uint{s.task.ID, other.ID} {
		for _, userID := range testutil.AssigneeIDs(t, s.db, taskID) {
			assert.NotEqual(t, types.RoleNone, testutil.MembershipRole(t, s.db, s.project.ID, userID),
				"assignee %d of task %d must be a participant", userID, taskID)
		}
	}
}

func TestParseRemovalPolicy(t *testing.T) {
	p, err := ParseRemovalPolicy("")
	require.NoError(t, err)
	assert.Equal(t, RemovalPruneIdle, p)

	p, err = ParseRemovalPolicy("prune")
	require.NoError(t, err)
	assert.Equal(t, RemovalPrune, p)

	_, err = ParseRemovalPolicy("sometimes")
	assert.Error(t, err)
}
