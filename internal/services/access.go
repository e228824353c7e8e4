// Package services holds the mutators behind every HTTP endpoint. Storage is
// touched only after the caller passes the project gate and input validation.
package services

import (
	"context"
	"errors"

	"github.com/abricot-app/abricot/internal/apperr"
	"github.com/abricot-app/abricot/internal/models"
	"github.com/abricot-app/abricot/internal/permissions"
	"gorm.io/gorm"
)

type gate func(ctx context.Context, userID, projectID uint) bool

// access bundles the lookups shared by the project-scoped services.
type access struct {
	db    *gorm.DB
	perms *permissions.Checker
}

// project loads the project and enforces hasAccess followed by the finer gate.
// A missing project is NotFound; a denied gate is Forbidden.
func (a access) project(ctx context.Context, userID, projectID uint, allowed gate, denied string) (*models.Project, error) {
	if userID == 0 {
		return nil, apperr.Unauthenticated("")
	}

	var project models.Project
	if err := a.db.WithContext(ctx).First(&project, projectID).Error; err != nil {
		return nil, notFoundOr(err, "Project not found")
	}

	if !a.perms.HasAccess(ctx, userID, projectID) {
		return nil, apperr.Forbidden("You do not have access to this project")
	}

	if allowed != nil && !allowed(ctx, userID, projectID) {
		return nil, apperr.Forbidden(denied)
	}

	return &project, nil
}

// task loads a task only if it belongs to projectID.
func (a access) task(ctx context.Context, projectID, taskID uint) (*models.Task, error) {
	var task models.Task
	err := a.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", taskID, projectID).
		First(&task).Error
	if err != nil {
		return nil, notFoundOr(err, "Task not found")
	}
	return &task, nil
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(message)
	}
	return apperr.Internal(err)
}
