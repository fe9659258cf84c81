package model

import (
	"time"

	"meshtrack/pkg/constants"
)

// Task task record as exposed over the API
type Task struct {
	ID           string                 `json:"id"`
	Requester    string                 `json:"requester"`
	Capability   string                 `json:"capability"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	Priority     int                    `json:"priority"`
	TimeoutMs    int64                  `json:"timeout_ms"`
	Status       constants.TaskStatus   `json:"status"`
	AssignedNode string                 `json:"assigned_node,omitempty"`
	AssignedAt   *time.Time             `json:"assigned_at,omitempty"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	Result       map[string]interface{} `json:"result,omitempty"`
	Error        string                 `json:"error,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// CreateTaskRequest task creation request
type CreateTaskRequest struct {
	TaskID     string                 `json:"task_id" binding:"required"`
	Requester  string                 `json:"requester" binding:"required"`
	Capability string                 `json:"capability" binding:"required"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Priority   int                    `json:"priority"`
	TimeoutMs  int64                  `json:"timeout_ms"`
}

// AssignRequest task assignment request
type AssignRequest struct {
	NodeID string `json:"node_id" binding:"required"`
}

// TaskStatusRequest task status update request. Result may only accompany
// COMPLETED, error may only accompany FAILED.
type TaskStatusRequest struct {
	Status constants.TaskStatus   `json:"status" binding:"required"`
	Result map[string]interface{} `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// DeliveryEvent transition history entry for a task or message
type DeliveryEvent struct {
	EventType  string                 `json:"event_type"`
	FromStatus string                 `json:"from_status,omitempty"`
	ToStatus   string                 `json:"to_status,omitempty"`
	NodeID     string                 `json:"node_id,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	EventTime  time.Time              `json:"event_time"`
}

// Stats aggregate status counts for the operator dashboard
type Stats struct {
	Nodes    map[string]int64 `json:"nodes"`
	Messages map[string]int64 `json:"messages"`
	Tasks    map[string]int64 `json:"tasks"`
}
