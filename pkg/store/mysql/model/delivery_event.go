package model

import "time"

// EntityKind identifies which entity a delivery event belongs to.
type EntityKind string

const (
	EntityTask    EntityKind = "task"
	EntityMessage EntityKind = "message"
)

// DeliveryEventType event type constants
type DeliveryEventType string

const (
	// Task lifecycle events
	EventTaskCreated   DeliveryEventType = "TASK_CREATED"
	EventTaskAssigned  DeliveryEventType = "TASK_ASSIGNED"
	EventTaskStarted   DeliveryEventType = "TASK_STARTED"
	EventTaskCompleted DeliveryEventType = "TASK_COMPLETED"
	EventTaskFailed    DeliveryEventType = "TASK_FAILED"
	EventTaskCancelled DeliveryEventType = "TASK_CANCELLED"
	EventTaskTimeout   DeliveryEventType = "TASK_TIMEOUT"

	// Message lifecycle events
	EventMessageQueued    DeliveryEventType = "MESSAGE_QUEUED"
	EventMessageSent      DeliveryEventType = "MESSAGE_SENT"
	EventMessageDelivered DeliveryEventType = "MESSAGE_DELIVERED"
	EventMessageFailed    DeliveryEventType = "MESSAGE_FAILED"
	EventMessageExpired   DeliveryEventType = "MESSAGE_EXPIRED"
)

// DeliveryEvent is an append-only transition record for tasks and messages.
// It backs the history views consumed by the operator dashboard and makes the
// state machine auditable after the fact.
type DeliveryEvent struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	EventID      string    `gorm:"column:event_id;type:varchar(255);not null;uniqueIndex:idx_event_id_unique"`
	EntityKind   string    `gorm:"column:entity_kind;type:varchar(20);not null;index:idx_entity,priority:1"`
	EntityID     string    `gorm:"column:entity_id;type:varchar(255);not null;index:idx_entity,priority:2"`
	EventType    string    `gorm:"column:event_type;type:varchar(50);not null"`
	FromStatus   string    `gorm:"column:from_status;type:varchar(50)"`
	ToStatus     string    `gorm:"column:to_status;type:varchar(50)"`
	NodeID       string    `gorm:"column:node_id;type:varchar(255);index:idx_node_id"`
	ErrorMessage string    `gorm:"column:error_message;type:text"`
	Metadata     JSONMap   `gorm:"column:metadata;type:json"`
	EventTime    time.Time `gorm:"column:event_time;type:datetime(3);not null;index:idx_event_time"`
}

func (DeliveryEvent) TableName() string {
	return "delivery_events"
}
