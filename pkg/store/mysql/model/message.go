package model

import "time"

// Message represents a durable delivery record for a point-to-point or
// broadcast message. The message id is caller-supplied and globally unique;
// the transport that actually moves bytes is external to this layer.
type Message struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement"`
	MessageID   string     `gorm:"column:message_id;type:varchar(255);not null;uniqueIndex:idx_message_id_unique"`
	FromNode    string     `gorm:"column:from_node;type:varchar(255);not null"`
	ToNode      string     `gorm:"column:to_node;type:varchar(255);not null;index:idx_to_node_status,priority:1"`
	MessageType string     `gorm:"column:message_type;type:varchar(100)"`
	Payload     JSONMap    `gorm:"column:payload;type:json"`
	Status      string     `gorm:"column:status;type:varchar(50);not null;index:idx_to_node_status,priority:2"`
	Priority    int        `gorm:"column:priority;default:0"`
	ExpiresAt   *time.Time `gorm:"column:expires_at;type:datetime(3)"`
	DeliveredAt *time.Time `gorm:"column:delivered_at;type:datetime(3)"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:datetime(3);not null;index:idx_created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;type:datetime(3);not null"`
}

func (Message) TableName() string {
	return "messages"
}
