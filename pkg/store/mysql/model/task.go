package model

import "time"

// Task represents a unit of work requested by one node and optionally
// fulfilled by another. Status follows a strict forward state machine;
// assigned_node is set exactly once and never cleared. Rows are only
// transitioned, never deleted.
type Task struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	TaskID        string     `gorm:"column:task_id;type:varchar(255);not null;uniqueIndex:idx_task_id_unique"`
	RequesterNode string     `gorm:"column:requester_node;type:varchar(255);not null"`
	Capability    string     `gorm:"column:capability;type:varchar(255);not null"`
	Payload       JSONMap    `gorm:"column:payload;type:json"`
	Priority      int        `gorm:"column:priority;default:0"`
	TimeoutMs     int64      `gorm:"column:timeout_ms;default:0"`
	Status        string     `gorm:"column:status;type:varchar(50);not null;index:idx_status"`
	AssignedNode  string     `gorm:"column:assigned_node;type:varchar(255);index:idx_assigned_node"`
	AssignedAt    *time.Time `gorm:"column:assigned_at;type:datetime(3)"`
	StartedAt     *time.Time `gorm:"column:started_at;type:datetime(3)"`
	CompletedAt   *time.Time `gorm:"column:completed_at;type:datetime(3)"`
	Result        JSONMap    `gorm:"column:result;type:json"`
	Error         string     `gorm:"column:error;type:text"`
	CreatedAt     time.Time  `gorm:"column:created_at;type:datetime(3);not null;index:idx_created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;type:datetime(3);not null"`
}

func (Task) TableName() string {
	return "tasks"
}
