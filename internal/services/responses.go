package services

import (
	"context"

	"github.com/abricot-app/abricot/internal/models"
	"github.com/abricot-app/abricot/internal/types"
	"gorm.io/gorm"
)

func userResponse(u models.User) types.UserResponse {
	return types.UserResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}

func taskResponse(t models.Task, comments int64) types.TaskResponse {
	assignees := make([]types.UserResponse, 0, len(t.Assignees))
	for _, a := range t.Assignees {
		assignees = append(assignees, userResponse(a.User))
	}

	return types.TaskResponse{
		ID:           t.ID,
		ProjectID:    t.ProjectID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       t.Status,
		Priority:     t.Priority,
		DueDate:      t.DueDate,
		Creator:      userResponse(t.Creator),
		Assignees:    assignees,
		CommentCount: comments,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func commentResponse(c models.Comment) types.CommentResponse {
	return types.CommentResponse{
		ID:        c.ID,
		TaskID:    c.TaskID,
		Content:   c.Content,
		Author:    userResponse(c.Author),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// withTaskRelations preloads what taskResponse reads.
func withTaskRelations(q *gorm.DB) *gorm.DB {
	return q.Preload("Creator").
		Preload("Assignees", func(db *gorm.DB) *gorm.DB { return db.Order("task_assignees.user_id") }).
		Preload("Assignees.User")
}

// commentCounts returns the number of comments per task id.
func commentCounts(ctx context.Context, db *gorm.DB, taskIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(taskIDs))
	if len(taskIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		TaskID uint
		Count  int64
	}
	err := db.WithContext(ctx).Model(&models.Comment{}).
		Select("task_id, COUNT(*) AS count").
		Where("task_id IN ?", taskIDs).
		Group("task_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		counts[r.TaskID] = r.Count
	}
	return counts, nil
}

// progressByProject counts non-cancelled and done tasks per project.
func progressByProject(ctx context.Context, db *gorm.DB, projectIDs []uint) (map[uint]types.Progress, error) {
	progress := make(map[uint]types.Progress, len(projectIDs))
	if len(projectIDs) == 0 {
		return progress, nil
	}

	var rows []struct {
		ProjectID uint
		Total     int64
		Done      int64
	}
	err := db.WithContext(ctx).Model(&models.Task{}).
		Select("project_id, COUNT(*) AS total, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS done", types.StatusDone).
		Where("project_id IN ? AND status <> ?", projectIDs, types.StatusCancelled).
		Group("project_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		progress[r.ProjectID] = types.NewProgress(r.Total, r.Done)
	}
	return progress, nil
}
