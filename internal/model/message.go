package model

import (
	"time"

	"meshtrack/pkg/constants"
)

// Message message delivery record as exposed over the API
type Message struct {
	ID          string                  `json:"id"`
	From        string                  `json:"from"`
	To          string                  `json:"to"` // "*" for broadcast
	Type        string                  `json:"type"`
	Payload     map[string]interface{}  `json:"payload,omitempty"`
	Status      constants.MessageStatus `json:"status"`
	Priority    int                     `json:"priority"`
	ExpiresAt   *time.Time              `json:"expires_at,omitempty"`
	DeliveredAt *time.Time              `json:"delivered_at,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// SendRequest message send record request. The message id is caller-supplied
// and must be globally unique; no server-side generation happens here.
type SendRequest struct {
	MessageID string                 `json:"message_id" binding:"required"`
	From      string                 `json:"from" binding:"required"`
	To        string                 `json:"to" binding:"required"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Priority  int                    `json:"priority"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
}

// OutcomeRequest delivery outcome request
type OutcomeRequest struct {
	Status      constants.MessageStatus `json:"status" binding:"required"` // DELIVERED or FAILED
	DeliveredAt *time.Time              `json:"delivered_at,omitempty"`    // required when DELIVERED
}
