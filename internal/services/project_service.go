package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/abricot-app/abricot/internal/apperr"
	"github.com/abricot-app/abricot/internal/assignment"
	"github.com/abricot-app/abricot/internal/logger"
	"github.com/abricot-app/abricot/internal/models"
	"github.com/abricot-app/abricot/internal/permissions"
	"github.com/abricot-app/abricot/internal/types"
	"github.com/abricot-app/abricot/internal/validation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreateProjectInput struct {
	Name        string `json:"name" validate:"notblank,max=100"`
	Description string `json:"description" validate:"max=2000"`
}

type UpdateProjectInput struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type AddMemberInput struct {
	Email string     `json:"email" validate:"required,email"`
	Role  types.Role `json:"role" validate:"omitempty,member_role"`
}

type UpdateMemberInput struct {
	Role types.Role `json:"role" validate:"required,member_role"`
}

type ProjectService struct {
	access
	logger *slog.Logger
}

func NewProjectService(db *gorm.DB, perms *permissions.Checker) *ProjectService {
	return &ProjectService{
		access: access{db: db, perms: perms},
		logger: logger.Component("projects"),
	}
}

func (s *ProjectService) Create(ctx context.Context, userID uint, input CreateProjectInput) (*types.ProjectResponse, error) {
	if userID == 0 {
		return nil, apperr.Unauthenticated("")
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	project := models.Project{Name: input.Name, Description: input.Description, OwnerID: userID}
	if err := s.db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	s.logger.InfoContext(ctx, "Project created", "project_id", project.ID, "owner_id", userID)
	return s.Get(ctx, userID, project.ID)
}

// List returns every project the caller owns or belongs to, newest first.
func (s *ProjectService) List(ctx context.Context, userID uint) ([]types.ProjectResponse, error) {
	if userID == 0 {
		return nil, apperr.Unauthenticated("")
	}

	var memberships []models.ProjectMembership
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	roles := make(map[uint]types.Role, len(memberships))
	memberOf := make([]uint, 0, len(memberships))
	for _, m := range memberships {
		roles[m.ProjectID] = m.Role
		memberOf = append(memberOf, m.ProjectID)
	}

	q := s.db.WithContext(ctx).Preload("Owner").Where("owner_id = ?", userID)
	if len(memberOf) > 0 {
		q = q.Or("id IN ?", memberOf)
	}
	var projects []models.Project
	if err := q.Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	ids := make([]uint, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	progress, err := progressByProject(ctx, s.db, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	out := make([]types.ProjectResponse, 0, len(projects))
	for _, p := range projects {
		role := roles[p.ID]
		if p.OwnerID == userID {
			role = types.RoleOwner
		}
		out = append(out, projectResponse(p, role, progress[p.ID]))
	}
	return out, nil
}

// Get returns the project with its owner, members and progress.
func (s *ProjectService) Get(ctx context.Context, userID, projectID uint) (*types.ProjectResponse, error) {
	if _, err := s.project(ctx, userID, projectID, nil, ""); err != nil {
		return nil, err
	}

	var project models.Project
	err := s.db.WithContext(ctx).
		Preload("Owner").
		Preload("ProjectMemberships", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("ProjectMemberships.User").
		First(&project, projectID).Error
	if err != nil {
		return nil, notFoundOr(err, "Project not found")
	}

	progress, err := progressByProject(ctx, s.db, []uint{projectID})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	resp := projectResponse(project, s.perms.ResolveRole(ctx, userID, projectID), progress[projectID])
	resp.Members = make([]types.MemberResponse, 0, len(project.ProjectMemberships)+1)
	resp.Members = append(resp.Members, types.MemberResponse{
		User:     userResponse(project.Owner),
		Role:     types.RoleOwner,
		JoinedAt: project.CreatedAt,
	})
	for _, m := range project.ProjectMemberships {
		resp.Members = append(resp.Members, memberResponse(m))
	}
	return &resp, nil
}

func (s *ProjectService) Update(ctx context.Context, userID, projectID uint, input UpdateProjectInput) (*types.ProjectResponse, error) {
	project, err := s.project(ctx, userID, projectID, s.perms.CanModifyProject, "Only the owner or an admin can edit this project")
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		input.Name = &name
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(project).Updates(updates).Error; err != nil {
			return nil, apperr.Internal(err)
		}
	}

	return s.Get(ctx, userID, projectID)
}

// Delete removes the project and everything hanging off it. Owner only.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID uint) error {
	project, err := s.project(ctx, userID, projectID, s.perms.CanDeleteProject, "Only the owner can delete this project")
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasks := tx.Model(&models.Task{}).Select("id").Where("project_id = ?", project.ID)
		if err := tx.Where("task_id IN (?)", tasks).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id IN (?)", tasks).Delete(&models.TaskAssignee{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.ProjectMembership{}).Error; err != nil {
			return err
		}
		return tx.Delete(project).Error
	})
	if err != nil {
		return apperr.Internal(err)
	}

	s.logger.InfoContext(ctx, "Project deleted", "project_id", projectID, "user_id", userID)
	return nil
}

// AddMember enrolls a registered user by email. Role defaults to CONTRIBUTOR.
func (s *ProjectService) AddMember(ctx context.Context, userID, projectID uint, input AddMemberInput) (*types.MemberResponse, error) {
	project, err := s.project(ctx, userID, projectID, s.perms.CanModifyProject, "Only the owner or an admin can manage members")
	if err != nil {
		return nil, err
	}
	input.Email = normalizeEmail(input.Email)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if input.Role == types.RoleNone {
		input.Role = types.RoleContributor
	}

	var user models.User
	err = s.db.WithContext(ctx).
		Where("email = ? AND email <> ?", input.Email, types.SystemUserEmail).
		First(&user).Error
	if err != nil {
		return nil, notFoundOr(err, "No user with this email")
	}
	if user.ID == project.OwnerID {
		return nil, apperr.InvalidField("email", "the owner is already part of the project")
	}

	membership := models.ProjectMembership{UserID: user.ID, ProjectID: projectID, Role: input.Role}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&membership)
	if res.Error != nil {
		return nil, apperr.Internal(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Conflict("User is already a member of this project")
	}

	membership.User = user
	s.logger.InfoContext(ctx, "Member added", "project_id", projectID, "member_id", user.ID, "role", input.Role)
	resp := memberResponse(membership)
	return &resp, nil
}

func (s *ProjectService) UpdateMemberRole(ctx context.Context, userID, projectID, memberID uint, input UpdateMemberInput) (*types.MemberResponse, error) {
	project, err := s.project(ctx, userID, projectID, s.perms.CanModifyProject, "Only the owner or an admin can manage members")
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if memberID == project.OwnerID {
		return nil, apperr.InvalidField("user_id", "the owner's role cannot be changed")
	}

	membership, err := s.membership(ctx, projectID, memberID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(membership).Update("role", input.Role).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	membership.Role = input.Role

	resp := memberResponse(*membership)
	return &resp, nil
}

// RemoveMember drops a membership along with the member's assignments in the
// project. Members may always remove themselves.
func (s *ProjectService) RemoveMember(ctx context.Context, userID, projectID, memberID uint) error {
	allowed := s.perms.CanModifyProject
	if userID == memberID {
		allowed = nil
	}
	project, err := s.project(ctx, userID, projectID, allowed, "Only the owner or an admin can manage members")
	if err != nil {
		return err
	}
	if memberID == project.OwnerID {
		return apperr.InvalidField("user_id", "the owner cannot be removed from the project")
	}

	membership, err := s.membership(ctx, projectID, memberID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := assignment.LockProjectTx(tx, projectID); err != nil {
			return err
		}
		tasks := tx.Model(&models.Task{}).Select("id").Where("project_id = ?", projectID)
		if err := tx.Where("user_id = ? AND task_id IN (?)", memberID, tasks).Delete(&models.TaskAssignee{}).Error; err != nil {
			return err
		}
		return tx.Delete(membership).Error
	})
	if err != nil {
		return apperr.Internal(err)
	}

	s.logger.InfoContext(ctx, "Member removed", "project_id", projectID, "member_id", memberID)
	return nil
}

func (s *ProjectService) membership(ctx context.Context, projectID, memberID uint) (*models.ProjectMembership, error) {
	var membership models.ProjectMembership
	err := s.db.WithContext(ctx).Preload("User").
		Where("project_id = ? AND user_id = ?", projectID, memberID).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Member not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &membership, nil
}

func projectResponse(p models.Project, role types.Role, progress types.Progress) types.ProjectResponse {
	resp := types.ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		OwnerID:     p.OwnerID,
		Role:        role,
		Progress:    progress,
		CreatedAt:   p.CreatedAt,
	}
	if p.Owner.ID != 0 {
		owner := userResponse(p.Owner)
		resp.Owner = &owner
	}
	return resp
}

func memberResponse(m models.ProjectMembership) types.MemberResponse {
	return types.MemberResponse{User: userResponse(m.User), Role: m.Role, JoinedAt: m.CreatedAt}
}
