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

// MessageRepository handles message log persistence.
type MessageRepository struct {
	ds *Datastore
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(ds *Datastore) *MessageRepository {
	return &MessageRepository{ds: ds}
}

// Create records a send attempt. The caller supplies the message id and the
// initial status (SENT, or QUEUED for store-and-forward). A duplicate message
// id is rejected rather than overwritten.
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.ds.withRetry(ctx, "message.create", func(ctx context.Context) error {
		now := time.Now()
		msg.CreatedAt = now
		msg.UpdatedAt = now
		err := r.ds.DB(ctx).Create(msg).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return retry.MarkPermanent(fmt.Errorf("message %s: %w", msg.MessageID, store.ErrDuplicateKey))
		}
		return err
	})
}

// MarkOutcome transitions a non-terminal message to DELIVERED or FAILED with
// a conditional update. A message already in a terminal state matches no row
// and the call returns ErrStatusConflict with the row unchanged, so two
// writers racing to record the same outcome cannot both succeed.
func (r *MessageRepository) MarkOutcome(ctx context.Context, messageID string, status constants.MessageStatus, deliveredAt *time.Time) error {
	return r.ds.withRetry(ctx, "message.mark_outcome", func(ctx context.Context) error {
		updates := map[string]interface{}{
			"status":     status.String(),
			"updated_at": time.Now(),
		}
		if deliveredAt != nil {
			updates["delivered_at"] = *deliveredAt
		}

		result := r.ds.DB(ctx).Model(&model.Message{}).
			Where("message_id = ? AND status IN ?", messageID,
				[]string{constants.MessageStatusQueued.String(), constants.MessageStatusSent.String()}).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			var count int64
			if err := r.ds.DB(ctx).Model(&model.Message{}).
				Where("message_id = ?", messageID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return retry.MarkPermanent(fmt.Errorf("message %s: %w", messageID, store.ErrNotFound))
			}
			return retry.MarkPermanent(fmt.Errorf("message %s already terminal: %w", messageID, store.ErrStatusConflict))
		}

		return nil
	})
}

// Get fetches a message by message id.
func (r *MessageRepository) Get(ctx context.Context, messageID string) (*model.Message, error) {
	var msg model.Message
	err := r.ds.withRetry(ctx, "message.get", func(ctx context.Context) error {
		err := r.ds.DB(ctx).Where("message_id = ?", messageID).First(&msg).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return retry.MarkPermanent(fmt.Errorf("message %s: %w", messageID, store.ErrNotFound))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// QueuedFor returns the store-and-forward backlog for a destination node,
// oldest first. The ordering is load-bearing: it defines per-destination FIFO
// delivery order.
func (r *MessageRepository) QueuedFor(ctx context.Context, nodeID string) ([]*model.Message, error) {
	var msgs []*model.Message
	err := r.ds.withRetry(ctx, "message.queued_for", func(ctx context.Context) error {
		return r.ds.DB(ctx).
			Where("to_node = ? AND status = ?", nodeID, constants.MessageStatusQueued.String()).
			Order("created_at ASC").
			Find(&msgs).Error
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListExpiredQueued returns queued messages whose expiry has passed, for the
// purge job to transition individually (so each expiry gets an audit event).
func (r *MessageRepository) ListExpiredQueued(ctx context.Context, now time.Time) ([]*model.Message, error) {
	var msgs []*model.Message
	err := r.ds.withRetry(ctx, "message.list_expired", func(ctx context.Context) error {
		return r.ds.DB(ctx).
			Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?",
				constants.MessageStatusQueued.String(), now).
			Find(&msgs).Error
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// Expire transitions a queued message to EXPIRED. Returns ErrStatusConflict
// when the message was delivered or failed in the meantime.
func (r *MessageRepository) Expire(ctx context.Context, messageID string) error {
	return r.ds.withRetry(ctx, "message.expire", func(ctx context.Context) error {
		result := r.ds.DB(ctx).Model(&model.Message{}).
			Where("message_id = ? AND status = ?", messageID, constants.MessageStatusQueued.String()).
			Updates(map[string]interface{}{
				"status":     constants.MessageStatusExpired.String(),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return retry.MarkPermanent(fmt.Errorf("message %s: %w", messageID, store.ErrStatusConflict))
		}
		return nil
	})
}

// DeleteTerminalBefore bulk-deletes terminal messages last touched before the
// cutoff. This is the only hard delete in the message log.
func (r *MessageRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var affected int64
	err := r.ds.withRetry(ctx, "message.delete_terminal", func(ctx context.Context) error {
		result := r.ds.DB(ctx).
			Where("status IN ? AND updated_at < ?",
				[]string{
					constants.MessageStatusDelivered.String(),
					constants.MessageStatusFailed.String(),
					constants.MessageStatusExpired.String(),
				}, cutoff).
			Delete(&model.Message{})
		affected = result.RowsAffected
		return result.Error
	})
	return affected, err
}

// CountByStatus returns message counts grouped by status.
func (r *MessageRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(ctx, r.ds, "message.count_by_status", &model.Message{})
}
