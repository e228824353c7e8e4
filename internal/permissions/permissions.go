// Package permissions resolves a user's role on a project and answers the
// boolean access questions every mutation is gated on.
//
// Nothing here returns an error: missing projects, missing memberships and
// storage failures all collapse to RoleNone / false, leaving the 403-vs-404
// decision to the caller.
package permissions

import (
	"context"
	"errors"
	"log/slog"

	"github.com/abricot-app/abricot/internal/logger"
	"github.com/abricot-app/abricot/internal/models"
	"github.com/abricot-app/abricot/internal/types"
	"gorm.io/gorm"
)

var (
	readRoles          = roleSet(types.RoleOwner, types.RoleAdmin, types.RoleContributor)
	createTaskRoles    = roleSet(types.RoleOwner, types.RoleAdmin, types.RoleContributor)
	modifyTaskRoles    = roleSet(types.RoleOwner, types.RoleContributor)
	modifyProjectRoles = roleSet(types.RoleOwner, types.RoleAdmin)
)

func roleSet(roles ...types.Role) map[types.Role]bool {
	set := make(map[types.Role]bool, len(roles))
	for _, r := range roles {
		set[r] = true
	}
	return set
}

type Checker struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewChecker(db *gorm.DB) *Checker {
	return &Checker{db: db, logger: logger.Component("permissions")}
}

// ResolveRole checks ownership first, then membership. Ownership always wins,
// even over a conflicting membership row for the same pair.
func (c *Checker) ResolveRole(ctx context.Context, userID, projectID uint) types.Role {
	if userID == 0 || projectID == 0 {
		return types.RoleNone
	}

	var project models.Project
	err := c.db.WithContext(ctx).Select("id", "owner_id").First(&project, projectID).Error
	if err != nil {
		c.logLookupError(ctx, "project", err, userID, projectID)
		return types.RoleNone
	}

	if project.OwnerID == userID {
		return types.RoleOwner
	}

	var membership models.ProjectMembership
	err = c.db.WithContext(ctx).
		Where("user_id = ? AND project_id = ?", userID, projectID).
		First(&membership).Error
	if err != nil {
		c.logLookupError(ctx, "membership", err, userID, projectID)
		return types.RoleNone
	}

	if !membership.Role.IsMemberRole() {
		return types.RoleNone
	}
	return membership.Role
}

func (c *Checker) logLookupError(ctx context.Context, what string, err error, userID, projectID uint) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}
	c.logger.WarnContext(ctx, "Role lookup failed",
		"lookup", what, "user_id", userID, "project_id", projectID, "error", err)
}

func (c *Checker) HasAccess(ctx context.Context, userID, projectID uint) bool {
	return readRoles[c.ResolveRole(ctx, userID, projectID)]
}

func (c *Checker) CanCreateTasks(ctx context.Context, userID, projectID uint) bool {
	return createTaskRoles[c.ResolveRole(ctx, userID, projectID)]
}

// CanModifyTasks covers editing and deleting tasks and moderating comments.
// ADMIN is deliberately excluded.
func (c *Checker) CanModifyTasks(ctx context.Context, userID, projectID uint) bool {
	return modifyTaskRoles[c.ResolveRole(ctx, userID, projectID)]
}

func (c *Checker) CanModifyProject(ctx context.Context, userID, projectID uint) bool {
	return modifyProjectRoles[c.ResolveRole(ctx, userID, projectID)]
}

// CanDeleteProject compares against the stored owner directly; no membership
// role, ADMIN included, satisfies it.
func (c *Checker) CanDeleteProject(ctx context.Context, userID, projectID uint) bool {
	if userID == 0 {
		return false
	}

	var count int64
	err := c.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ? AND owner_id = ?", projectID, userID).
		Count(&count).Error
	if err != nil {
		c.logger.WarnContext(ctx, "Owner lookup failed", "user_id", userID, "project_id", projectID, "error", err)
		return false
	}
	return count > 0
}
