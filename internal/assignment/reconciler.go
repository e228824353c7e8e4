// Package assignment keeps a task's assignee set and the project's membership
// table in agreement.
//
// Reconciliation loads the current assignees and participants, enrolls new
// assignees as CONTRIBUTOR members, optionally prunes memberships of users
// who were unassigned, and then replaces the task's assignment rows with the
// desired set. All of it runs in one transaction under a per-task lock so
// concurrent updates of the same task cannot interleave.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/abricot-app/abricot/internal/apperr"
	"github.com/abricot-app/abricot/internal/logger"
	"github.com/abricot-app/abricot/internal/models"
	"github.com/abricot-app/abricot/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemovalPolicy decides what happens to the membership of a user who is
// dropped from a task's assignee set.
type RemovalPolicy string

const (
	// RemovalKeep never touches memberships on unassignment.
	RemovalKeep RemovalPolicy = "keep"
	// RemovalPrune removes the membership of every unassigned user, even one
	// who still holds other tasks in the project and is thereby stranded.
	RemovalPrune RemovalPolicy = "prune"
	// RemovalPruneIdle removes a CONTRIBUTOR membership only when the user has
	// no remaining assignment anywhere in the project.
	RemovalPruneIdle RemovalPolicy = "prune_idle"
)

func ParseRemovalPolicy(s string) (RemovalPolicy, error) {
	switch p := RemovalPolicy(s); p {
	case RemovalKeep, RemovalPrune, RemovalPruneIdle:
		return p, nil
	case "":
		return RemovalPruneIdle, nil
	default:
		return "", fmt.Errorf("unknown assignment removal policy %q", s)
	}
}

var ErrTaskNotInProject = errors.New("task does not belong to project")

// Outcome reports what a reconciliation changed. All slices are sorted.
type Outcome struct {
	Assignees []uint // final assignment set
	Added     []uint
	Removed   []uint
	Enrolled  []uint // new CONTRIBUTOR memberships
	Pruned    []uint // memberships removed by the policy
}

type Reconciler struct {
	db     *gorm.DB
	locker Locker
	policy RemovalPolicy
	logger *slog.Logger
}

func NewReconciler(db *gorm.DB, locker Locker, policy RemovalPolicy) *Reconciler {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if policy == "" {
		policy = RemovalPruneIdle
	}
	return &Reconciler{
		db:     db,
		locker: locker,
		policy: policy,
		logger: logger.Component("assignment"),
	}
}

func (r *Reconciler) Policy() RemovalPolicy {
	return r.policy
}

// LockTask takes the per-task lock. Callers that run ReconcileTx inside their
// own transaction must hold it for the duration of that transaction.
func (r *Reconciler) LockTask(ctx context.Context, taskID uint) (func(), error) {
	return r.locker.Lock(ctx, "task:"+strconv.FormatUint(uint64(taskID), 10))
}

// Reconcile makes desired the exact assignment set of the task. The caller
// must already be authorized to modify the task.
func (r *Reconciler) Reconcile(ctx context.Context, taskID, projectID uint, desired []uint) (*Outcome, error) {
	release, err := r.LockTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("lock task %d: %w", taskID, err)
	}
	defer release()

	var outcome *Outcome
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		outcome, err = r.ReconcileTx(tx, taskID, projectID, desired)
		return err
	})
	if err != nil {
		return nil, err
	}

	return outcome, nil
}

// ReconcileTx performs the reconciliation with tx. It does not lock.
func (r *Reconciler) ReconcileTx(tx *gorm.DB, taskID, projectID uint, desired []uint) (*Outcome, error) {
	ctx := tx.Statement.Context
	want := normalize(desired)

	var task models.Task
	if err := tx.Select("id", "project_id").First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Task not found")
		}
		return nil, fmt.Errorf("load task: %w", err)
	}
	if task.ProjectID != projectID {
		return nil, apperr.NotFound("Task not found")
	}

	project, err := LockProjectTx(tx, projectID)
	if err != nil {
		return nil, err
	}

	if err := ensureUsersExist(tx, want); err != nil {
		return nil, err
	}

	var previous []uint
	if err := tx.Model(&models.TaskAssignee{}).Where("task_id = ?", taskID).Pluck("user_id", &previous).Error; err != nil {
		return nil, fmt.Errorf("load assignees: %w", err)
	}

	var members []uint
	if err := tx.Model(&models.ProjectMembership{}).Where("project_id = ?", projectID).Pluck("user_id", &members).Error; err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}

	outcome := &Outcome{
		Assignees: want,
		Added:     difference(want, previous),
		Removed:   difference(normalize(previous), want),
	}

	for _, userID := range want {
		if userID == project.OwnerID || slices.Contains(members, userID) {
			continue
		}

		membership := models.ProjectMembership{UserID: userID, ProjectID: projectID, Role: types.RoleContributor}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&membership)
		if res.Error != nil {
			return nil, fmt.Errorf("enroll user %d: %w", userID, res.Error)
		}
		if res.RowsAffected > 0 {
			outcome.Enrolled = append(outcome.Enrolled, userID)
		}
	}

	for _, userID := range outcome.Removed {
		pruned, err := r.prune(tx, project, taskID, userID)
		if err != nil {
			return nil, err
		}
		if pruned {
			outcome.Pruned = append(outcome.Pruned, userID)
		}
	}

	if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskAssignee{}).Error; err != nil {
		return nil, fmt.Errorf("clear assignees: %w", err)
	}

	if len(want) > 0 {
		rows := make([]models.TaskAssignee, 0, len(want))
		for _, userID := range want {
			rows = append(rows, models.TaskAssignee{TaskID: taskID, UserID: userID})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return nil, fmt.Errorf("insert assignees: %w", err)
		}
	}

	r.logger.DebugContext(ctx, "Assignees reconciled",
		"task_id", taskID,
		"project_id", projectID,
		"added", outcome.Added,
		"removed", outcome.Removed,
		"enrolled", outcome.Enrolled,
		"pruned", outcome.Pruned,
	)

	return outcome, nil
}

// LockProjectTx loads the project with a row lock held until tx ends.
// Membership rows are shared by every task of the project, so enrollment and
// pruning decisions for different tasks must not overlap. sqlite ignores the
// locking clause; its single connection already serializes transactions.
func LockProjectTx(tx *gorm.DB, projectID uint) (models.Project, error) {
	var project models.Project
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "owner_id").
		First(&project, projectID).Error
	if err != nil {
		return project, fmt.Errorf("lock project %d: %w", projectID, err)
	}
	return project, nil
}

func (r *Reconciler) prune(tx *gorm.DB, project models.Project, taskID, userID uint) (bool, error) {
	if userID == project.OwnerID {
		return false, nil
	}

	switch r.policy {
	case RemovalPrune:
		res := tx.Where("project_id = ? AND user_id = ?", project.ID, userID).Delete(&models.ProjectMembership{})
		if res.Error != nil {
			return false, fmt.Errorf("prune membership of user %d: %w", userID, res.Error)
		}
		if res.RowsAffected > 0 {
			r.logger.WarnContext(tx.Statement.Context, "Membership pruned on unassignment",
				"project_id", project.ID, "user_id", userID)
		}
		return res.RowsAffected > 0, nil

	case RemovalPruneIdle:
		var remaining int64
		err := tx.Model(&models.TaskAssignee{}).
			Joins("JOIN tasks ON tasks.id = task_assignees.task_id").
			Where("tasks.project_id = ? AND task_assignees.user_id = ? AND task_assignees.task_id <> ?", project.ID, userID, taskID).
			Count(&remaining).Error
		if err != nil {
			return false, fmt.Errorf("count assignments of user %d: %w", userID, err)
		}
		if remaining > 0 {
			return false, nil
		}

		res := tx.Where("project_id = ? AND user_id = ? AND role = ?", project.ID, userID, types.RoleContributor).
			Delete(&models.ProjectMembership{})
		if res.Error != nil {
			return false, fmt.Errorf("prune membership of user %d: %w", userID, res.Error)
		}
		return res.RowsAffected > 0, nil
	}

	return false, nil
}

func ensureUsersExist(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}

	// The system identity never becomes a participant.
	var found []uint
	err := tx.Model(&models.User{}).
		Where("id IN ? AND email <> ?", ids, types.SystemUserEmail).
		Pluck("id", &found).Error
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}

	if missing := difference(ids, found); len(missing) > 0 {
		return apperr.InvalidField("assignee_ids", fmt.Sprintf("unknown user ids: %v", missing))
	}
	return nil
}

// normalize drops zero ids and duplicates and sorts the result.
func normalize(ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != 0 && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// difference returns the elements of a not present in b, in a's order.
func difference(a, b []uint) []uint {
	var out []uint
	for _, id := range a {
		if !slices.Contains(b, id) {
			out = append(out, id)
		}
	}
	return out
}
