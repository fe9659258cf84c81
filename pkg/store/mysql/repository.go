package mysql

import (
	"context"

	"meshtrack/pkg/retry"
)

// Repository aggregates all MySQL repositories
type Repository struct {
	ds *Datastore

	Node    *NodeRepository
	Message *MessageRepository
	Task    *TaskRepository
	Event   *EventRepository
}

// NewRepository creates a new MySQL repository with all sub-repositories.
// Every operation on every sub-repository runs under the supplied retry
// policy.
func NewRepository(dsn string, retryCfg retry.Config) (*Repository, error) {
	ds, err := NewDatastore(dsn, retryCfg)
	if err != nil {
		return nil, err
	}

	return &Repository{
		ds:      ds,
		Node:    NewNodeRepository(ds),
		Message: NewMessageRepository(ds),
		Task:    NewTaskRepository(ds),
		Event:   NewEventRepository(ds),
	}, nil
}

// GetDatastore returns the underlying datastore for transaction support
func (r *Repository) GetDatastore() *Datastore {
	return r.ds
}

// AutoMigrate creates or updates the schema.
func (r *Repository) AutoMigrate() error {
	return r.ds.AutoMigrate()
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.ds.Close()
}

type statusCount struct {
	Status string
	Count  int64
}

// countByStatus is the shared GROUP BY status aggregation used by the
// dashboard stats endpoint.
func countByStatus(ctx context.Context, ds *Datastore, label string, entity interface{}) (map[string]int64, error) {
	var rows []statusCount
	err := ds.withRetry(ctx, label, func(ctx context.Context) error {
		return ds.DB(ctx).Model(entity).
			Select("status, COUNT(*) AS count").
			Group("status").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
