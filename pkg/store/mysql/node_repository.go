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

// NodeRepository handles node registry persistence.
type NodeRepository struct {
	ds *Datastore
}

// NewNodeRepository creates a new node repository
func NewNodeRepository(ds *Datastore) *NodeRepository {
	return &NodeRepository{ds: ds}
}

// Register upserts a node by its connection id: re-registration overwrites
// capabilities and metadata wholesale (last-writer-wins) and flips the node
// back ONLINE. first_connected_at is preserved across re-registrations.
func (r *NodeRepository) Register(ctx context.Context, node *model.Node) error {
	return r.ds.withRetry(ctx, "node.register", func(ctx context.Context) error {
		now := time.Now()

		updates := map[string]interface{}{
			"node_type":    node.NodeType,
			"name":         node.Name,
			"capabilities": node.Capabilities,
			"metadata":     node.Metadata,
			"status":       constants.NodeStatusOnline.String(),
			"last_seen_at": now,
			"updated_at":   now,
		}

		result := r.ds.DB(ctx).Model(&model.Node{}).
			Where("node_id = ?", node.NodeID).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}

		// First registration for this connection id
		if result.RowsAffected == 0 {
			node.Status = constants.NodeStatusOnline.String()
			node.FirstConnectedAt = now
			node.LastSeenAt = now
			node.CreatedAt = now
			node.UpdatedAt = now
			return r.ds.DB(ctx).Create(node).Error
		}

		return nil
	})
}

// UpdateStatus transitions a node's status and merges metadata keys into the
// existing metadata map. last_seen_at is refreshed unconditionally.
func (r *NodeRepository) UpdateStatus(ctx context.Context, nodeID string, status constants.NodeStatus, metadata map[string]interface{}) error {
	return r.ds.withRetry(ctx, "node.update_status", func(ctx context.Context) error {
		return r.ds.ExecTx(ctx, func(txCtx context.Context) error {
			var node model.Node
			err := r.ds.DB(txCtx).Where("node_id = ?", nodeID).First(&node).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return retry.MarkPermanent(fmt.Errorf("node %s: %w", nodeID, store.ErrNotFound))
				}
				return err
			}

			merged := node.Metadata
			if len(metadata) > 0 {
				if merged == nil {
					merged = model.JSONMap{}
				}
				for k, v := range metadata {
					merged[k] = v
				}
			}

			now := time.Now()
			return r.ds.DB(txCtx).Model(&model.Node{}).
				Where("node_id = ?", nodeID).
				Updates(map[string]interface{}{
					"status":       status.String(),
					"metadata":     merged,
					"last_seen_at": now,
					"updated_at":   now,
				}).Error
		})
	})
}

// Heartbeat refreshes last_seen_at and flips the node back ONLINE without
// touching capabilities or metadata.
func (r *NodeRepository) Heartbeat(ctx context.Context, nodeID string) error {
	return r.ds.withRetry(ctx, "node.heartbeat", func(ctx context.Context) error {
		now := time.Now()
		result := r.ds.DB(ctx).Model(&model.Node{}).
			Where("node_id = ?", nodeID).
			Updates(map[string]interface{}{
				"status":       constants.NodeStatusOnline.String(),
				"last_seen_at": now,
				"updated_at":   now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return retry.MarkPermanent(fmt.Errorf("node %s: %w", nodeID, store.ErrNotFound))
		}
		return nil
	})
}

// Unregister flips a node OFFLINE and refreshes last_seen_at. The row is
// retained for the audit trail.
func (r *NodeRepository) Unregister(ctx context.Context, nodeID string) error {
	return r.ds.withRetry(ctx, "node.unregister", func(ctx context.Context) error {
		now := time.Now()
		result := r.ds.DB(ctx).Model(&model.Node{}).
			Where("node_id = ?", nodeID).
			Updates(map[string]interface{}{
				"status":       constants.NodeStatusOffline.String(),
				"last_seen_at": now,
				"updated_at":   now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return retry.MarkPermanent(fmt.Errorf("node %s: %w", nodeID, store.ErrNotFound))
		}
		return nil
	})
}

// Get fetches a node by connection id regardless of status.
func (r *NodeRepository) Get(ctx context.Context, nodeID string) (*model.Node, error) {
	var node model.Node
	err := r.ds.withRetry(ctx, "node.get", func(ctx context.Context) error {
		err := r.ds.DB(ctx).Where("node_id = ?", nodeID).First(&node).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return retry.MarkPermanent(fmt.Errorf("node %s: %w", nodeID, store.ErrNotFound))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// ListActive returns all ONLINE nodes, most recently seen first. The ordering
// surfaces the freshest nodes first on operator dashboards.
func (r *NodeRepository) ListActive(ctx context.Context) ([]*model.Node, error) {
	var nodes []*model.Node
	err := r.ds.withRetry(ctx, "node.list_active", func(ctx context.Context) error {
		return r.ds.DB(ctx).
			Where("status = ?", constants.NodeStatusOnline.String()).
			Order("last_seen_at DESC").
			Find(&nodes).Error
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// MarkStale flips ONLINE nodes whose last_seen_at is older than threshold to
// OFFLINE and returns how many were swept.
func (r *NodeRepository) MarkStale(ctx context.Context, threshold time.Time) (int64, error) {
	var affected int64
	err := r.ds.withRetry(ctx, "node.mark_stale", func(ctx context.Context) error {
		result := r.ds.DB(ctx).Model(&model.Node{}).
			Where("status = ? AND last_seen_at < ?", constants.NodeStatusOnline.String(), threshold).
			Updates(map[string]interface{}{
				"status":     constants.NodeStatusOffline.String(),
				"updated_at": time.Now(),
			})
		affected = result.RowsAffected
		return result.Error
	})
	return affected, err
}

// CountByStatus returns node counts grouped by status.
func (r *NodeRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(ctx, r.ds, "node.count_by_status", &model.Node{})
}
