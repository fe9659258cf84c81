package service

import (
	"context"
	"errors"
	"time"

	"meshtrack/internal/model"
	"meshtrack/pkg/constants"
	smodel "meshtrack/pkg/store/mysql/model"
)

// ErrInvalidArgument marks request validation failures so the handler layer
// can distinguish them from store errors.
var ErrInvalidArgument = errors.New("invalid argument")

// NodeStore is the durable node registry consumed by NodeService.
// Implementations return store.ErrNotFound for unknown connection ids.
type NodeStore interface {
	Register(ctx context.Context, node *smodel.Node) error
	UpdateStatus(ctx context.Context, nodeID string, status constants.NodeStatus, metadata map[string]interface{}) error
	Heartbeat(ctx context.Context, nodeID string) error
	Unregister(ctx context.Context, nodeID string) error
	Get(ctx context.Context, nodeID string) (*smodel.Node, error)
	ListActive(ctx context.Context) ([]*smodel.Node, error)
	MarkStale(ctx context.Context, threshold time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// MessageStore is the durable message log consumed by MessageService.
// Conditional updates return store.ErrStatusConflict when they match no row.
type MessageStore interface {
	Create(ctx context.Context, msg *smodel.Message) error
	MarkOutcome(ctx context.Context, messageID string, status constants.MessageStatus, deliveredAt *time.Time) error
	Get(ctx context.Context, messageID string) (*smodel.Message, error)
	QueuedFor(ctx context.Context, nodeID string) ([]*smodel.Message, error)
	ListExpiredQueued(ctx context.Context, now time.Time) ([]*smodel.Message, error)
	Expire(ctx context.Context, messageID string) error
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// TaskStore is the durable task tracker consumed by TaskService.
type TaskStore interface {
	Create(ctx context.Context, task *smodel.Task) error
	Get(ctx context.Context, taskID string) (*smodel.Task, error)
	Assign(ctx context.Context, taskID, nodeID string) error
	UpdateStatusCAS(ctx context.Context, taskID string, from, to constants.TaskStatus, updates map[string]interface{}) error
	ListForNode(ctx context.Context, nodeID string, status constants.TaskStatus, limit int) ([]*smodel.Task, error)
	ListTimedOut(ctx context.Context, now time.Time) ([]*smodel.Task, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// EventStore is the append-only transition history.
type EventStore interface {
	Record(ctx context.Context, event *smodel.DeliveryEvent) error
	ListForEntity(ctx context.Context, kind smodel.EntityKind, entityID string) ([]*smodel.DeliveryEvent, error)
}

// NodeCache is the advisory read-through/write-through cache of active nodes.
type NodeCache interface {
	Put(ctx context.Context, node *model.Node) error
	Remove(ctx context.Context, nodeID string) error
	ListActive(ctx context.Context) ([]*model.Node, error)
	Reconcile(ctx context.Context, nodes []*model.Node) error
}
