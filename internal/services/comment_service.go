package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/abricot-app/abricot/internal/apperr"
	"github.com/abricot-app/abricot/internal/logger"
	"github.com/abricot-app/abricot/internal/models"
	"github.com/abricot-app/abricot/internal/permissions"
	"github.com/abricot-app/abricot/internal/types"
	"github.com/abricot-app/abricot/internal/validation"
	"gorm.io/gorm"
)

type CommentInput struct {
	Content string `json:"content" validate:"notblank,max=2000"`
}

type CommentService struct {
	access
	logger *slog.Logger
}

func NewCommentService(db *gorm.DB, perms *permissions.Checker) *CommentService {
	return &CommentService{
		access: access{db: db, perms: perms},
		logger: logger.Component("comments"),
	}
}

// List returns the task's comments, oldest first.
func (s *CommentService) List(ctx context.Context, userID, projectID, taskID uint) ([]types.CommentResponse, error) {
	if _, err := s.project(ctx, userID, projectID, nil, ""); err != nil {
		return nil, err
	}
	if _, err := s.task(ctx, projectID, taskID); err != nil {
		return nil, err
	}

	var comments []models.Comment
	err := s.db.WithContext(ctx).Preload("Author").
		Where("task_id = ?", taskID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}

	out := make([]types.CommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, commentResponse(c))
	}
	return out, nil
}

func (s *CommentService) Create(ctx context.Context, userID, projectID, taskID uint, input CommentInput) (*types.CommentResponse, error) {
	if _, err := s.project(ctx, userID, projectID, nil, ""); err != nil {
		return nil, err
	}
	if _, err := s.task(ctx, projectID, taskID); err != nil {
		return nil, err
	}
	input.Content = strings.TrimSpace(input.Content)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	comment := models.Comment{TaskID: taskID, AuthorID: userID, Content: input.Content}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	return s.load(ctx, comment.ID)
}

// Update edits a comment. Only its author may do so.
func (s *CommentService) Update(ctx context.Context, userID, projectID, taskID, commentID uint, input CommentInput) (*types.CommentResponse, error) {
	comment, err := s.comment(ctx, userID, projectID, taskID, commentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != userID {
		return nil, apperr.Forbidden("Only the author can edit this comment")
	}
	input.Content = strings.TrimSpace(input.Content)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(comment).Update("content", input.Content).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	return s.load(ctx, comment.ID)
}

// Delete removes a comment. Authors may delete their own; the owner and
// contributors may moderate any comment.
func (s *CommentService) Delete(ctx context.Context, userID, projectID, taskID, commentID uint) error {
	comment, err := s.comment(ctx, userID, projectID, taskID, commentID)
	if err != nil {
		return err
	}
	if comment.AuthorID != userID && !s.perms.CanModifyTasks(ctx, userID, projectID) {
		return apperr.Forbidden("You cannot delete this comment")
	}

	if err := s.db.WithContext(ctx).Delete(comment).Error; err != nil {
		return apperr.Internal(err)
	}

	s.logger.InfoContext(ctx, "Comment deleted", "comment_id", commentID, "task_id", taskID, "user_id", userID)
	return nil
}

func (s *CommentService) comment(ctx context.Context, userID, projectID, taskID, commentID uint) (*models.Comment, error) {
	if _, err := s.project(ctx, userID, projectID, nil, ""); err != nil {
		return nil, err
	}
	if _, err := s.task(ctx, projectID, taskID); err != nil {
		return nil, err
	}

	var comment models.Comment
	err := s.db.WithContext(ctx).Where("id = ? AND task_id = ?", commentID, taskID).First(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Comment not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &comment, nil
}

func (s *CommentService) load(ctx context.Context, commentID uint) (*types.CommentResponse, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("Author").First(&comment, commentID).Error; err != nil {
		return nil, notFoundOr(err, "Comment not found")
	}
	resp := commentResponse(comment)
	return &resp, nil
}
