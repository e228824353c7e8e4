package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/abricot-app/abricot/internal/ai"
	"github.com/abricot-app/abricot/internal/apperr"
	"github.com/abricot-app/abricot/internal/assignment"
	"github.com/abricot-app/abricot/internal/logger"
	"github.com/abricot-app/abricot/internal/models"
	"github.com/abricot-app/abricot/internal/permissions"
	"github.com/abricot-app/abricot/internal/types"
	"github.com/abricot-app/abricot/internal/validation"
	"gorm.io/gorm"
)

type GenerateTaskInput struct {
	Prompt      string `json:"prompt" validate:"notblank,max=2000"`
	AssigneeIDs []uint `json:"assignee_ids"`
}

// TaskGenerator creates tasks from a free-text request through the completion
// provider. Generated tasks are credited to the system identity.
type TaskGenerator struct {
	access
	generator  *ai.Generator
	identity   *SystemIdentity
	reconciler *assignment.Reconciler
	logger     *slog.Logger
}

// NewTaskGenerator accepts a nil generator, in which case every call reports
// an upstream failure.
func NewTaskGenerator(db *gorm.DB, perms *permissions.Checker, generator *ai.Generator, identity *SystemIdentity, reconciler *assignment.Reconciler) *TaskGenerator {
	return &TaskGenerator{
		access:     access{db: db, perms: perms},
		generator:  generator,
		identity:   identity,
		reconciler: reconciler,
		logger:     logger.Component("task-generator"),
	}
}

func (g *TaskGenerator) Generate(ctx context.Context, userID, projectID uint, input GenerateTaskInput) (*types.TaskResponse, error) {
	project, err := g.project(ctx, userID, projectID, g.perms.CanCreateTasks, "You cannot create tasks in this project")
	if err != nil {
		return nil, err
	}
	input.Prompt = strings.TrimSpace(input.Prompt)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if g.generator == nil {
		return nil, apperr.Upstream("Task generation is not configured", nil)
	}

	systemID, err := g.identity.EnsureID(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	assignees, err := g.existingUsers(ctx, input.AssigneeIDs)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	prompt := ai.BuildPrompt(ai.ProjectContext{Name: project.Name, Description: project.Description}, input.Prompt)
	completion, err := g.generator.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.Upstream("Task generation was interrupted", err)
		}
		return nil, apperr.Upstream("Task generation failed, please try again", err)
	}

	title, description, err := ai.ParseCompletion(completion.Text)
	if err != nil {
		return nil, apperr.Upstream("Task generation returned an unusable answer", err)
	}

	task := models.Task{
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		Status:      types.StatusTodo,
		Priority:    types.PriorityMedium,
		CreatorID:   systemID,
	}
	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		_, err := g.reconciler.ReconcileTx(tx, task.ID, projectID, assignees)
		return err
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	g.logger.InfoContext(ctx, "Task generated",
		"task_id", task.ID,
		"project_id", projectID,
		"user_id", userID,
		"model", completion.Model,
		"attempts", completion.Attempts,
	)
	return loadTask(ctx, g.db, task.ID)
}

// existingUsers keeps the ids that resolve to real accounts, excluding the
// system identity. Unknown ids are dropped silently.
func (g *TaskGenerator) existingUsers(ctx context.Context, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var found []uint
	err := g.db.WithContext(ctx).Model(&models.User{}).
		Where("id IN ? AND email <> ?", ids, types.SystemUserEmail).
		Pluck("id", &found).Error
	return found, err
}
