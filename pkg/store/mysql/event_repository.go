package mysql

import (
	"context"
	"time"

	"meshtrack/pkg/store/mysql/model"

	"github.com/google/uuid"
)

// EventRepository handles the append-only delivery event history.
type EventRepository struct {
	ds *Datastore
}

// NewEventRepository creates a new event repository
func NewEventRepository(ds *Datastore) *EventRepository {
	return &EventRepository{ds: ds}
}

// Record appends a delivery event. The event id and timestamp are filled in
// when the caller leaves them empty.
func (r *EventRepository) Record(ctx context.Context, event *model.DeliveryEvent) error {
	return r.ds.withRetry(ctx, "event.record", func(ctx context.Context) error {
		if event.EventID == "" {
			event.EventID = uuid.New().String()
		}
		if event.EventTime.IsZero() {
			event.EventTime = time.Now()
		}
		return r.ds.DB(ctx).Create(event).Error
	})
}

// ListForEntity returns the transition history of a task or message, oldest
// first.
func (r *EventRepository) ListForEntity(ctx context.Context, kind model.EntityKind, entityID string) ([]*model.DeliveryEvent, error) {
	var events []*model.DeliveryEvent
	err := r.ds.withRetry(ctx, "event.list_for_entity", func(ctx context.Context) error {
		return r.ds.DB(ctx).
			Where("entity_kind = ? AND entity_id = ?", string(kind), entityID).
			Order("event_time ASC").
			Find(&events).Error
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
