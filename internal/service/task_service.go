package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meshtrack/internal/model"
	"meshtrack/pkg/constants"
	"meshtrack/pkg/logger"
	"meshtrack/pkg/store"
	smodel "meshtrack/pkg/store/mysql/model"
)

// TaskDefaults are applied to creation requests that omit the field.
type TaskDefaults struct {
	TimeoutMs int64
	Priority  int
}

// TaskService tracks task lifecycles through the forward state machine.
// Assignment and every status change are conditional updates against the
// expected current status, so concurrent writers cannot double-assign a
// task or revive a terminal one.
type TaskService struct {
	tasks    TaskStore
	nodes    NodeStore
	events   EventStore
	defaults TaskDefaults
}

func NewTaskService(tasks TaskStore, nodes NodeStore, events EventStore, defaults TaskDefaults) *TaskService {
	return &TaskService{
		tasks:    tasks,
		nodes:    nodes,
		events:   events,
		defaults: defaults,
	}
}

// Create records a new PENDING task. The caller-supplied id must be
// globally unique; a duplicate is rejected.
func (s *TaskService) Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error) {
	if req.TimeoutMs < 0 {
		return nil, fmt.Errorf("%w: timeout_ms must not be negative", ErrInvalidArgument)
	}

	record := &smodel.Task{
		TaskID:        req.TaskID,
		RequesterNode: req.Requester,
		Capability:    req.Capability,
		Payload:       smodel.JSONMap(req.Payload),
		Priority:      req.Priority,
		TimeoutMs:     req.TimeoutMs,
		Status:        string(constants.TaskStatusPending),
	}
	if record.TimeoutMs == 0 {
		record.TimeoutMs = s.defaults.TimeoutMs
	}
	if record.Priority == 0 {
		record.Priority = s.defaults.Priority
	}

	if err := s.tasks.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create task %s: %w", req.TaskID, err)
	}

	s.recordEvent(ctx, record.TaskID, smodel.EventTaskCreated, "", string(constants.TaskStatusPending), req.Requester, "")
	return taskFromStore(record), nil
}

// Assign moves a PENDING task to ASSIGNED on the given node. The node must
// be registered and ONLINE; the assignment is set exactly once and a task
// that is no longer PENDING reports a conflict instead of reassigning.
func (s *TaskService) Assign(ctx context.Context, taskID string, req *model.AssignRequest) (*model.Task, error) {
	node, err := s.nodes.Get(ctx, req.NodeID)
	if err != nil {
		return nil, fmt.Errorf("get assignee %s: %w", req.NodeID, err)
	}
	if node.Status != string(constants.NodeStatusOnline) {
		return nil, fmt.Errorf("%w: node %s is not online", ErrInvalidArgument, req.NodeID)
	}

	if err := s.tasks.Assign(ctx, taskID, req.NodeID); err != nil {
		return nil, fmt.Errorf("assign task %s to %s: %w", taskID, req.NodeID, err)
	}

	s.recordEvent(ctx, taskID, smodel.EventTaskAssigned,
		string(constants.TaskStatusPending), string(constants.TaskStatusAssigned), req.NodeID, "")

	updated, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task %s after assign: %w", taskID, err)
	}
	return taskFromStore(updated), nil
}

// UpdateStatus advances a task along the state machine. Result may only
// accompany COMPLETED, error may only accompany FAILED. RUNNING stamps
// started_at, terminal states stamp completed_at.
func (s *TaskService) UpdateStatus(ctx context.Context, taskID string, req *model.TaskStatusRequest) (*model.Task, error) {
	if !req.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown task status %q", ErrInvalidArgument, req.Status)
	}
	if len(req.Result) > 0 && req.Status != constants.TaskStatusCompleted {
		return nil, fmt.Errorf("%w: result is only valid for COMPLETED", ErrInvalidArgument)
	}
	if req.Error != "" && req.Status != constants.TaskStatusFailed {
		return nil, fmt.Errorf("%w: error is only valid for FAILED", ErrInvalidArgument)
	}
	if req.Status == constants.TaskStatusAssigned {
		return nil, fmt.Errorf("%w: assignment goes through the assign operation", ErrInvalidArgument)
	}

	current, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}

	from := constants.TaskStatus(current.Status)
	if !from.CanTransitionTo(req.Status) {
		return nil, fmt.Errorf("task %s: transition %s -> %s: %w", taskID, from, req.Status, store.ErrStatusConflict)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{}
	switch req.Status {
	case constants.TaskStatusRunning:
		updates["started_at"] = now
	case constants.TaskStatusCompleted:
		updates["completed_at"] = now
		updates["result"] = smodel.JSONMap(req.Result)
	case constants.TaskStatusFailed:
		updates["completed_at"] = now
		updates["error"] = req.Error
	case constants.TaskStatusCancelled:
		updates["completed_at"] = now
	}

	if err := s.tasks.UpdateStatusCAS(ctx, taskID, from, req.Status, updates); err != nil {
		return nil, fmt.Errorf("update task %s: %w", taskID, err)
	}

	s.recordEvent(ctx, taskID, eventForTransition(req.Status), string(from), string(req.Status), current.AssignedNode, req.Error)

	updated, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task %s after update: %w", taskID, err)
	}
	return taskFromStore(updated), nil
}

// Cancel moves a non-terminal task to CANCELLED. Cancelling an already
// terminal task reports a conflict.
func (s *TaskService) Cancel(ctx context.Context, taskID string) (*model.Task, error) {
	return s.UpdateStatus(ctx, taskID, &model.TaskStatusRequest{Status: constants.TaskStatusCancelled})
}

// Get returns a single task by its id.
func (s *TaskService) Get(ctx context.Context, taskID string) (*model.Task, error) {
	stored, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return taskFromStore(stored), nil
}

// ListForNode returns tasks assigned to a node, newest first, optionally
// filtered by status.
func (s *TaskService) ListForNode(ctx context.Context, nodeID string, status constants.TaskStatus, limit int) ([]*model.Task, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown task status %q", ErrInvalidArgument, status)
	}
	stored, err := s.tasks.ListForNode(ctx, nodeID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks for node %s: %w", nodeID, err)
	}
	return tasksFromStore(stored), nil
}

// Events returns the transition history of a task, oldest first.
func (s *TaskService) Events(ctx context.Context, taskID string) ([]*model.DeliveryEvent, error) {
	if _, err := s.tasks.Get(ctx, taskID); err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	stored, err := s.events.ListForEntity(ctx, smodel.EntityTask, taskID)
	if err != nil {
		return nil, fmt.Errorf("list events of task %s: %w", taskID, err)
	}
	return eventsFromStore(stored), nil
}

// FailTimedOut moves RUNNING tasks past their timeout to FAILED with a
// timeout error. Returns the number of tasks failed.
func (s *TaskService) FailTimedOut(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	overdue, err := s.tasks.ListTimedOut(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list timed out tasks: %w", err)
	}

	var failed int64
	for _, task := range overdue {
		updates := map[string]interface{}{
			"completed_at": now,
			"error":        "task execution timeout",
		}
		err := s.tasks.UpdateStatusCAS(ctx, task.TaskID, constants.TaskStatusRunning, constants.TaskStatusFailed, updates)
		if err != nil {
			if errors.Is(err, store.ErrStatusConflict) {
				continue // the worker reported an outcome first
			}
			logger.WarnCtx(ctx, "fail timed out task %s: %v", task.TaskID, err)
			continue
		}
		failed++
		s.recordEvent(ctx, task.TaskID, smodel.EventTaskTimeout,
			string(constants.TaskStatusRunning), string(constants.TaskStatusFailed), task.AssignedNode, "task execution timeout")
	}
	if failed > 0 {
		logger.InfoCtx(ctx, "failed %d timed out task(s)", failed)
	}
	return failed, nil
}

func eventForTransition(to constants.TaskStatus) smodel.DeliveryEventType {
	switch to {
	case constants.TaskStatusRunning:
		return smodel.EventTaskStarted
	case constants.TaskStatusCompleted:
		return smodel.EventTaskCompleted
	case constants.TaskStatusFailed:
		return smodel.EventTaskFailed
	case constants.TaskStatusCancelled:
		return smodel.EventTaskCancelled
	}
	return smodel.EventTaskStarted
}

func (s *TaskService) recordEvent(ctx context.Context, taskID string, eventType smodel.DeliveryEventType, from, to, nodeID, errMsg string) {
	event := &smodel.DeliveryEvent{
		EntityKind:   string(smodel.EntityTask),
		EntityID:     taskID,
		EventType:    string(eventType),
		FromStatus:   from,
		ToStatus:     to,
		NodeID:       nodeID,
		ErrorMessage: errMsg,
	}
	if err := s.events.Record(ctx, event); err != nil {
		logger.WarnCtx(ctx, "record event %s for task %s: %v", eventType, taskID, err)
	}
}
