package services

import (
	"testing"
	"time"

	"github.com/abricot-app/abricot/internal/ai"
	"github.com/abricot-app/abricot/internal/apperr"
	"github.com/abricot-app/abricot/internal/assignment"
	"github.com/abricot-app/abricot/internal/auth"
	"github.com/abricot-app/abricot/internal/permissions"
	"github.com/abricot-app/abricot/internal/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type env struct {
	db         *gorm.DB
	users      *UserService
	projects   *ProjectService
	tasks      *TaskService
	comments   *CommentService
	generator  *TaskGenerator
	identity   *SystemIdentity
	reconciler *assignment.Reconciler
}

func newEnv(t *testing.T, completer ai.Completer) env {
	t.Helper()

	conn := testutil.NewTestDB(t)
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	perms := permissions.NewChecker(conn)
	reconciler := assignment.NewReconciler(conn, nil, assignment.RemovalPruneIdle)
	identity := NewSystemIdentity(conn)

	var gen *ai.Generator
	if completer != nil {
		gen = ai.NewGenerator(completer, ai.Options{
			Models:   []string{"small", "medium", "large", "alt"},
			Attempts: 3,
			Backoff:  0,
			Timeout:  time.Second,
		})
	}

	return env{
		db:         conn,
		users:      NewUserService(conn, issuer),
		projects:   NewProjectService(conn, perms),
		tasks:      NewTaskService(conn, perms, reconciler),
		comments:   NewCommentService(conn, perms),
		generator:  NewTaskGenerator(conn, perms, gen, identity, reconciler),
		identity:   identity,
		reconciler: reconciler,
	}
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, apperr.Is(err, kind), "expected %s, got %v", kind, err)
}

func ptr[T any](v T) *T {
	return &v
}
