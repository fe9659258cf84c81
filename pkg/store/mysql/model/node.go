package model

import "time"

// Node represents a connected participant record in the database.
// Rows are never deleted: disconnects flip status to OFFLINE, preserving
// the audit trail.
type Node struct {
	ID               int64           `gorm:"column:id;primaryKey;autoIncrement"`
	NodeID           string          `gorm:"column:node_id;type:varchar(255);not null;uniqueIndex:idx_node_id_unique"`
	NodeType         string          `gorm:"column:node_type;type:varchar(50);not null"`
	Name             string          `gorm:"column:name;type:varchar(255)"`
	Capabilities     JSONStringArray `gorm:"column:capabilities;type:json"`
	Metadata         JSONMap         `gorm:"column:metadata;type:json"`
	Status           string          `gorm:"column:status;type:varchar(50);not null;index:idx_status_last_seen,priority:1"`
	FirstConnectedAt time.Time       `gorm:"column:first_connected_at;type:datetime(3);not null"`
	LastSeenAt       time.Time       `gorm:"column:last_seen_at;type:datetime(3);not null;index:idx_status_last_seen,priority:2"`
	CreatedAt        time.Time       `gorm:"column:created_at;type:datetime(3);not null"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;type:datetime(3);not null"`
}

func (Node) TableName() string {
	return "nodes"
}
