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

// MessageService records delivery attempts and outcomes. It never moves
// bytes itself: the transport is external, this layer is the durable log
// that makes delivery auditable and enables store-and-forward.
type MessageService struct {
	messages MessageStore
	nodes    NodeStore
	events   EventStore
}

func NewMessageService(messages MessageStore, nodes NodeStore, events EventStore) *MessageService {
	return &MessageService{
		messages: messages,
		nodes:    nodes,
		events:   events,
	}
}

// RecordSent records a new message. The initial status depends on the
// destination: SENT when the node is online or the target is the broadcast
// marker, QUEUED when the node is offline or unknown (store-and-forward).
// The caller-supplied id must be globally unique; a duplicate is rejected.
func (s *MessageService) RecordSent(ctx context.Context, req *model.SendRequest) (*model.Message, error) {
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: expires_at must be in the future", ErrInvalidArgument)
	}

	status := constants.MessageStatusSent
	if req.To != constants.BroadcastTarget {
		dest, err := s.nodes.Get(ctx, req.To)
		switch {
		case err == nil && dest.Status == string(constants.NodeStatusOnline):
			status = constants.MessageStatusSent
		case err == nil || errors.Is(err, store.ErrNotFound):
			status = constants.MessageStatusQueued
		default:
			return nil, fmt.Errorf("check destination %s: %w", req.To, err)
		}
	}

	record := &smodel.Message{
		MessageID:   req.MessageID,
		FromNode:    req.From,
		ToNode:      req.To,
		MessageType: req.Type,
		Payload:     smodel.JSONMap(req.Payload),
		Status:      string(status),
		Priority:    req.Priority,
		ExpiresAt:   req.ExpiresAt,
	}
	if err := s.messages.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("record message %s: %w", req.MessageID, err)
	}

	eventType := smodel.EventMessageSent
	if status == constants.MessageStatusQueued {
		eventType = smodel.EventMessageQueued
	}
	s.recordEvent(ctx, record.MessageID, eventType, "", string(status), req.To, "")

	return messageFromStore(record), nil
}

// RecordOutcome marks a SENT or QUEUED message DELIVERED or FAILED.
// DELIVERED requires a delivery timestamp. A message already in a terminal
// state is not moved again: the conditional update reports the conflict.
func (s *MessageService) RecordOutcome(ctx context.Context, messageID string, req *model.OutcomeRequest) (*model.Message, error) {
	switch req.Status {
	case constants.MessageStatusDelivered:
		if req.DeliveredAt == nil {
			return nil, fmt.Errorf("%w: delivered_at is required for DELIVERED", ErrInvalidArgument)
		}
	case constants.MessageStatusFailed:
		if req.DeliveredAt != nil {
			return nil, fmt.Errorf("%w: delivered_at is only valid for DELIVERED", ErrInvalidArgument)
		}
	default:
		return nil, fmt.Errorf("%w: outcome must be DELIVERED or FAILED, got %q", ErrInvalidArgument, req.Status)
	}

	prev, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", messageID, err)
	}

	if err := s.messages.MarkOutcome(ctx, messageID, req.Status, req.DeliveredAt); err != nil {
		return nil, fmt.Errorf("record outcome of message %s: %w", messageID, err)
	}

	eventType := smodel.EventMessageDelivered
	if req.Status == constants.MessageStatusFailed {
		eventType = smodel.EventMessageFailed
	}
	s.recordEvent(ctx, messageID, eventType, prev.Status, string(req.Status), prev.ToNode, "")

	updated, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("load message %s after outcome: %w", messageID, err)
	}
	return messageFromStore(updated), nil
}

// Get returns a single message by its id.
func (s *MessageService) Get(ctx context.Context, messageID string) (*model.Message, error) {
	stored, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", messageID, err)
	}
	return messageFromStore(stored), nil
}

// QueuedFor returns the QUEUED messages awaiting a node in FIFO order, the
// order a reconnecting node should drain them in.
func (s *MessageService) QueuedFor(ctx context.Context, nodeID string) ([]*model.Message, error) {
	stored, err := s.messages.QueuedFor(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list queued messages for %s: %w", nodeID, err)
	}
	return messagesFromStore(stored), nil
}

// Events returns the transition history of a message, oldest first.
func (s *MessageService) Events(ctx context.Context, messageID string) ([]*model.DeliveryEvent, error) {
	if _, err := s.messages.Get(ctx, messageID); err != nil {
		return nil, fmt.Errorf("get message %s: %w", messageID, err)
	}
	stored, err := s.events.ListForEntity(ctx, smodel.EntityMessage, messageID)
	if err != nil {
		return nil, fmt.Errorf("list events of message %s: %w", messageID, err)
	}
	return eventsFromStore(stored), nil
}

// ExpireOverdue flips QUEUED messages past their expires_at to EXPIRED.
// Returns the number of messages expired.
func (s *MessageService) ExpireOverdue(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	overdue, err := s.messages.ListExpiredQueued(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue messages: %w", err)
	}

	var expired int64
	for _, msg := range overdue {
		if err := s.messages.Expire(ctx, msg.MessageID); err != nil {
			if errors.Is(err, store.ErrStatusConflict) {
				continue // outcome raced in first, the message is no longer QUEUED
			}
			logger.WarnCtx(ctx, "expire message %s: %v", msg.MessageID, err)
			continue
		}
		expired++
		s.recordEvent(ctx, msg.MessageID, smodel.EventMessageExpired,
			string(constants.MessageStatusQueued), string(constants.MessageStatusExpired), msg.ToNode, "")
	}
	if expired > 0 {
		logger.InfoCtx(ctx, "expired %d overdue message(s)", expired)
	}
	return expired, nil
}

// PurgeTerminal deletes terminal messages older than the retention window.
// Returns the number of rows removed.
func (s *MessageService) PurgeTerminal(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	count, err := s.messages.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge terminal messages: %w", err)
	}
	if count > 0 {
		logger.InfoCtx(ctx, "purged %d terminal message(s) older than %s", count, retention)
	}
	return count, nil
}

func (s *MessageService) recordEvent(ctx context.Context, messageID string, eventType smodel.DeliveryEventType, from, to, nodeID, errMsg string) {
	event := &smodel.DeliveryEvent{
		EntityKind:   string(smodel.EntityMessage),
		EntityID:     messageID,
		EventType:    string(eventType),
		FromStatus:   from,
		ToStatus:     to,
		NodeID:       nodeID,
		ErrorMessage: errMsg,
	}
	if err := s.events.Record(ctx, event); err != nil {
		logger.WarnCtx(ctx, "record event %s for message %s: %v", eventType, messageID, err)
	}
}
