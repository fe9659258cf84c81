package model

import (
	"time"

	"meshtrack/pkg/constants"
)

// Node node information as exposed over the API
type Node struct {
	ID               string                 `json:"id"`
	Type             constants.NodeType     `json:"type"`
	Name             string                 `json:"name"`
	Capabilities     []string               `json:"capabilities"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	Status           constants.NodeStatus   `json:"status"`
	FirstConnectedAt time.Time              `json:"first_connected_at"`
	LastSeenAt       time.Time              `json:"last_seen_at"`
}

// RegisterRequest node registration request
type RegisterRequest struct {
	NodeID       string                 `json:"node_id" binding:"required"`
	Type         constants.NodeType     `json:"type" binding:"required"`
	Name         string                 `json:"name"`
	Capabilities []string               `json:"capabilities"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// NodeStatusRequest node status update request
type NodeStatusRequest struct {
	Status   constants.NodeStatus   `json:"status" binding:"required"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
