package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meshtrack/pkg/constants"
	"meshtrack/pkg/retry"
	"meshtrack/pkg/store"
	"meshtrack/pkg/store/mysql/model"

	"gorm.io/gorm"
)

// TaskRepository handles task tracker persistence.
type TaskRepository struct {
	ds *Datastore
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(ds *Datastore) *TaskRepository {
	return &TaskRepository{ds: ds}
}

// Create writes a new PENDING task. Duplicate task ids are rejected.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	return r.ds.withRetry(ctx, "task.create", func(ctx context.Context) error {
		now := time.Now()
		task.Status = constants.TaskStatusPending.String()
		task.CreatedAt = now
		task.UpdatedAt = now
		err := r.ds.DB(ctx).Create(task).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return retry.MarkPermanent(fmt.Errorf("task %s: %w", task.TaskID, store.ErrDuplicateKey))
		}
		return err
	})
}

// Get fetches a task by task id.
func (r *TaskRepository) Get(ctx context.Context, taskID string) (*model.Task, error) {
	var task model.Task
	err := r.ds.withRetry(ctx, "task.get", func(ctx context.Context) error {
		err := r.ds.DB(ctx).Where("task_id = ?", taskID).First(&task).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return retry.MarkPermanent(fmt.Errorf("task %s: %w", taskID, store.ErrNotFound))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Assign transitions PENDING -> ASSIGNED with a conditional update, setting
// assigned_node and assigned_at exactly once. Assigning a task that is not
// PENDING matches no row and returns ErrStatusConflict.
func (r *TaskRepository) Assign(ctx context.Context, taskID, nodeID string) error {
	return r.ds.withRetry(ctx, "task.assign", func(ctx context.Context) error {
		now := time.Now()
		result := r.ds.DB(ctx).Model(&model.Task{}).
			Where("task_id = ? AND status = ?", taskID, constants.TaskStatusPending.String()).
			Updates(map[string]interface{}{
				"status":        constants.TaskStatusAssigned.String(),
				"assigned_node": nodeID,
				"assigned_at":   now,
				"updated_at":    now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return r.conflictOrNotFound(ctx, taskID)
		}
		return nil
	})
}

// UpdateStatusCAS performs a compare-and-swap status transition with extra
// field updates. Concurrent writers racing on the same transition see
// ErrStatusConflict instead of silently double-applying.
func (r *TaskRepository) UpdateStatusCAS(ctx context.Context, taskID string, from, to constants.TaskStatus, updates map[string]interface{}) error {
	return r.ds.withRetry(ctx, "task.update_status", func(ctx context.Context) error {
		if updates == nil {
			updates = map[string]interface{}{}
		}
		updates["status"] = to.String()
		updates["updated_at"] = time.Now()

		result := r.ds.DB(ctx).Model(&model.Task{}).
			Where("task_id = ? AND status = ?", taskID, from.String()).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return r.conflictOrNotFound(ctx, taskID)
		}
		return nil
	})
}

// conflictOrNotFound disambiguates a zero-row conditional update.
func (r *TaskRepository) conflictOrNotFound(ctx context.Context, taskID string) error {
	var count int64
	if err := r.ds.DB(ctx).Model(&model.Task{}).
		Where("task_id = ?", taskID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return retry.MarkPermanent(fmt.Errorf("task %s: %w", taskID, store.ErrNotFound))
	}
	return retry.MarkPermanent(fmt.Errorf("task %s: %w", taskID, store.ErrStatusConflict))
}

// ListForNode returns tasks assigned to a node, newest first, optionally
// filtered by status.
func (r *TaskRepository) ListForNode(ctx context.Context, nodeID string, status constants.TaskStatus, limit int) ([]*model.Task, error) {
	if limit <= 0 {
		limit = 100
	}
	var tasks []*model.Task
	err := r.ds.withRetry(ctx, "task.list_for_node", func(ctx context.Context) error {
		query := r.ds.DB(ctx).Where("assigned_node = ?", nodeID)
		if status != "" {
			query = query.Where("status = ?", status.String())
		}
		return query.Order("created_at DESC").Limit(limit).Find(&tasks).Error
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListTimedOut returns RUNNING tasks whose advisory timeout has elapsed, for
// the timeout sweep to fail individually.
func (r *TaskRepository) ListTimedOut(ctx context.Context, now time.Time) ([]*model.Task, error) {
	var tasks []*model.Task
	err := r.ds.withRetry(ctx, "task.list_timed_out", func(ctx context.Context) error {
		return r.ds.DB(ctx).
			Where("status = ? AND timeout_ms > 0 AND started_at IS NOT NULL AND DATE_ADD(started_at, INTERVAL timeout_ms * 1000 MICROSECOND) < ?",
				constants.TaskStatusRunning.String(), now).
			Find(&tasks).Error
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// CountByStatus returns task counts grouped by status.
func (r *TaskRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(ctx, r.ds, "task.count_by_status", &model.Task{})
}
