package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/abricot-app/abricot/internal/apperr"
	"github.com/abricot-app/abricot/internal/assignment"
	"github.com/abricot-app/abricot/internal/logger"
	"github.com/abricot-app/abricot/internal/models"
	"github.com/abricot-app/abricot/internal/permissions"
	"github.com/abricot-app/abricot/internal/types"
	"github.com/abricot-app/abricot/internal/validation"
	"gorm.io/gorm"
)

// taskOrder lists URGENT first, then the nearest due date, then the oldest task.
const taskOrder = types.PriorityOrderSQL +
	", CASE WHEN tasks.due_date IS NULL THEN 1 ELSE 0 END, tasks.due_date ASC, tasks.created_at ASC, tasks.id ASC"

type CreateTaskInput struct {
	Title       string             `json:"title" validate:"notblank,max=200"`
	Description string             `json:"description" validate:"max=5000"`
	Status      types.TaskStatus   `json:"status" validate:"omitempty,task_status"`
	Priority    types.TaskPriority `json:"priority" validate:"omitempty,task_priority"`
	DueDate     *string            `json:"due_date" validate:"omitempty,date"`
	AssigneeIDs []uint             `json:"assignee_ids" validate:"omitempty,dive,gt=0"`
}

// UpdateTaskInput is a partial update. A nil field is left untouched; an
// empty due_date clears it and a present assignee_ids replaces the set.
type UpdateTaskInput struct {
	Title       *string             `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string             `json:"description" validate:"omitempty,max=5000"`
	Status      *types.TaskStatus   `json:"status" validate:"omitempty,task_status"`
	Priority    *types.TaskPriority `json:"priority" validate:"omitempty,task_priority"`
	DueDate     *string             `json:"due_date" validate:"omitempty,date"`
	AssigneeIDs *[]uint             `json:"assignee_ids" validate:"omitempty,dive,gt=0"`
}

type TaskFilter struct {
	Status     types.TaskStatus
	Priority   types.TaskPriority
	AssigneeID uint
	Search     string
}

type TaskService struct {
	access
	reconciler *assignment.Reconciler
	logger     *slog.Logger
}

func NewTaskService(db *gorm.DB, perms *permissions.Checker, reconciler *assignment.Reconciler) *TaskService {
	return &TaskService{
		access:     access{db: db, perms: perms},
		reconciler: reconciler,
		logger:     logger.Component("tasks"),
	}
}

func (s *TaskService) List(ctx context.Context, userID, projectID uint, filter TaskFilter) ([]types.TaskResponse, error) {
	if _, err := s.project(ctx, userID, projectID, nil, ""); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.InvalidField("status", "must be one of TODO, IN_PROGRESS, DONE, CANCELLED")
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, apperr.InvalidField("priority", "must be one of LOW, MEDIUM, HIGH, URGENT")
	}

	q := s.db.WithContext(ctx).Where("tasks.project_id = ?", projectID)
	if filter.Status != "" {
		q = q.Where("tasks.status = ?", filter.Status)
	}
	if filter.Priority != "" {
		q = q.Where("tasks.priority = ?", filter.Priority)
	}
	if filter.AssigneeID != 0 {
		q = q.Where("tasks.id IN (?)", s.db.Model(&models.TaskAssignee{}).Select("task_id").Where("user_id = ?", filter.AssigneeID))
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		q = q.Where("(LOWER(tasks.title) LIKE ? ESCAPE '\\' OR LOWER(tasks.description) LIKE ? ESCAPE '\\')", pattern, pattern)
	}

	return s.find(ctx, q)
}

// ListMine returns the tasks assigned to the caller across all projects.
func (s *TaskService) ListMine(ctx context.Context, userID uint) ([]types.TaskResponse, error) {
	if userID == 0 {
		return nil, apperr.Unauthenticated("")
	}

	q := s.db.WithContext(ctx).
		Where("tasks.id IN (?)", s.db.Model(&models.TaskAssignee{}).Select("task_id").Where("user_id = ?", userID))
	return s.find(ctx, q)
}

func (s *TaskService) Get(ctx context.Context, userID, projectID, taskID uint) (*types.TaskResponse, error) {
	if _, err := s.project(ctx, userID, projectID, nil, ""); err != nil {
		return nil, err
	}
	if _, err := s.task(ctx, projectID, taskID); err != nil {
		return nil, err
	}
	return s.load(ctx, taskID)
}

func (s *TaskService) Create(ctx context.Context, userID, projectID uint, input CreateTaskInput) (*types.TaskResponse, error) {
	if _, err := s.project(ctx, userID, projectID, s.perms.CanCreateTasks, "You cannot create tasks in this project"); err != nil {
		return nil, err
	}
	input.Title = strings.TrimSpace(input.Title)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	task := models.Task{
		ProjectID:   projectID,
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		CreatorID:   userID,
	}
	if task.Status == "" {
		task.Status = types.StatusTodo
	}
	if task.Priority == "" {
		task.Priority = types.PriorityMedium
	}
	if input.DueDate != nil && *input.DueDate != "" {
		due, _ := validation.ParseDate(*input.DueDate)
		task.DueDate = &due
	}

	// The task id is unknown until the insert, so nobody else can race on it.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		_, err := s.reconciler.ReconcileTx(tx, task.ID, projectID, input.AssigneeIDs)
		return err
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	s.logger.InfoContext(ctx, "Task created", "task_id", task.ID, "project_id", projectID, "user_id", userID)
	return s.load(ctx, task.ID)
}

func (s *TaskService) Update(ctx context.Context, userID, projectID, taskID uint, input UpdateTaskInput) (*types.TaskResponse, error) {
	if _, err := s.project(ctx, userID, projectID, s.perms.CanModifyTasks, "You cannot modify tasks in this project"); err != nil {
		return nil, err
	}
	if _, err := s.task(ctx, projectID, taskID); err != nil {
		return nil, err
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		input.Title = &title
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Title != nil {
		updates["title"] = *input.Title
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Status != nil {
		updates["status"] = *input.Status
	}
	if input.Priority != nil {
		updates["priority"] = *input.Priority
	}
	if input.DueDate != nil {
		if *input.DueDate == "" {
			updates["due_date"] = nil
		} else {
			due, _ := validation.ParseDate(*input.DueDate)
			updates["due_date"] = due
		}
	}

	if input.AssigneeIDs != nil {
		release, err := s.reconciler.LockTask(ctx, taskID)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		defer release()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			updates["updated_at"] = time.Now()
			if err := tx.Model(&models.Task{}).Where("id = ?", taskID).Updates(updates).Error; err != nil {
				return err
			}
		}
		if input.AssigneeIDs == nil {
			return nil
		}
		_, err := s.reconciler.ReconcileTx(tx, taskID, projectID, *input.AssigneeIDs)
		return err
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	return s.load(ctx, taskID)
}

func (s *TaskService) Delete(ctx context.Context, userID, projectID, taskID uint) error {
	if _, err := s.project(ctx, userID, projectID, s.perms.CanModifyTasks, "You cannot delete tasks in this project"); err != nil {
		return err
	}
	task, err := s.task(ctx, projectID, taskID)
	if err != nil {
		return err
	}

	release, err := s.reconciler.LockTask(ctx, taskID)
	if err != nil {
		return apperr.Internal(err)
	}
	defer release()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", task.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", task.ID).Delete(&models.TaskAssignee{}).Error; err != nil {
			return err
		}
		return tx.Delete(task).Error
	})
	if err != nil {
		return apperr.Internal(err)
	}

	s.logger.InfoContext(ctx, "Task deleted", "task_id", taskID, "project_id", projectID, "user_id", userID)
	return nil
}

func (s *TaskService) find(ctx context.Context, q *gorm.DB) ([]types.TaskResponse, error) {
	var tasks []models.Task
	if err := withTaskRelations(q).Order(taskOrder).Find(&tasks).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	ids := make([]uint, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	counts, err := commentCounts(ctx, s.db, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	out := make([]types.TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskResponse(t, counts[t.ID]))
	}
	return out, nil
}

func (s *TaskService) load(ctx context.Context, taskID uint) (*types.TaskResponse, error) {
	return loadTask(ctx, s.db, taskID)
}

func loadTask(ctx context.Context, db *gorm.DB, taskID uint) (*types.TaskResponse, error) {
	var task models.Task
	if err := withTaskRelations(db.WithContext(ctx)).First(&task, taskID).Error; err != nil {
		return nil, notFoundOr(err, "Task not found")
	}

	counts, err := commentCounts(ctx, db, []uint{taskID})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	resp := taskResponse(task, counts[taskID])
	return &resp, nil
}
