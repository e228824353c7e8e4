// Package testutil provides a migrated in-memory database and fixtures for tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/abricot-app/abricot/db"
	"github.com/abricot-app/abricot/internal/models"
	"github.com/abricot-app/abricot/internal/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewTestDB opens a private in-memory sqlite database with the full schema.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := db.ConnectDatabase(db.DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, db.MigrateDatabase(conn))

	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return conn
}

func CreateUser(t *testing.T, conn *gorm.DB, name string) models.User {
	t.Helper()

	user := models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		PasswordHash: "not-a-real-hash",
	}
	require.NoError(t, conn.Create(&user).Error)
	return user
}

func CreateProject(t *testing.T, conn *gorm.DB, owner models.User, name string) models.Project {
	t.Helper()

	project := models.Project{Name: name, OwnerID: owner.ID}
	require.NoError(t, conn.Create(&project).Error)
	return project
}

func AddMember(t *testing.T, conn *gorm.DB, project models.Project, user models.User, role types.Role) models.ProjectMembership {
	t.Helper()

	membership := models.ProjectMembership{ProjectID: project.ID, UserID: user.ID, Role: role}
	require.NoError(t, conn.Create(&membership).Error)
	return membership
}

func CreateTask(t *testing.T, conn *gorm.DB, project models.Project, creator models.User, title string) models.Task {
	t.Helper()

	task := models.Task{
		ProjectID: project.ID,
		CreatorID: creator.ID,
		Title:     title,
		Status:    types.StatusTodo,
		Priority:  types.PriorityMedium,
	}
	require.NoError(t, conn.Create(&task).Error)
	return task
}

func Assign(t *testing.T, conn *gorm.DB, task models.Task, users ...models.User) {
	t.Helper()

	for _, u := range users {
		require.NoError(t, conn.Create(&models.TaskAssignee{TaskID: task.ID, UserID: u.ID}).Error)
	}
}

// AssigneeIDs reads back the assignment set of a task, sorted by user id.
func AssigneeIDs(t *testing.T, conn *gorm.DB, taskID uint) []uint {
	t.Helper()

	var ids []uint
	require.NoError(t, conn.Model(&models.TaskAssignee{}).
		Where("task_id = ?", taskID).Order("user_id").Pluck("user_id", &ids).Error)
	return ids
}

// MembershipRole returns the stored role for (user, project), or RoleNone.
func MembershipRole(t *testing.T, conn *gorm.DB, projectID, userID uint) types.Role {
	t.Helper()

	var memberships []models.ProjectMembership
	require.NoError(t, conn.Where("project_id = ? AND user_id = ?", projectID, userID).Find(&memberships).Error)
	if len(memberships) == 0 {
		return types.RoleNone
	}
	return memberships[0].Role
}
