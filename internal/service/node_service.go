package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"meshtrack/internal/model"
	"meshtrack/pkg/constants"
	"meshtrack/pkg/logger"
	smodel "meshtrack/pkg/store/mysql/model"
)

// NodeService manages the node registry: registration, liveness and the
// active-node view served to dashboards. The MySQL row is the source of
// truth; the Redis cache is advisory and repaired on startup.
type NodeService struct {
	nodes NodeStore
	cache NodeCache
}

func NewNodeService(nodes NodeStore, cache NodeCache) *NodeService {
	return &NodeService{
		nodes: nodes,
		cache: cache,
	}
}

// Register upserts a node by its id. Re-registration of a known node
// refreshes name, capabilities and metadata (last writer wins), flips it
// ONLINE and updates last_seen_at while preserving first_connected_at.
func (s *NodeService) Register(ctx context.Context, req *model.RegisterRequest) (*model.Node, error) {
	if !req.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown node type %q", ErrInvalidArgument, req.Type)
	}

	now := time.Now().UTC()
	record := &smodel.Node{
		NodeID:           req.NodeID,
		NodeType:         string(req.Type),
		Name:             req.Name,
		Capabilities:     smodel.JSONStringArray(req.Capabilities),
		Metadata:         smodel.JSONMap(req.Metadata),
		Status:           string(constants.NodeStatusOnline),
		FirstConnectedAt: now,
		LastSeenAt:       now,
	}
	if err := s.nodes.Register(ctx, record); err != nil {
		return nil, fmt.Errorf("register node %s: %w", req.NodeID, err)
	}

	stored, err := s.nodes.Get(ctx, req.NodeID)
	if err != nil {
		return nil, fmt.Errorf("load node %s after register: %w", req.NodeID, err)
	}

	node := nodeFromStore(stored)
	if err := s.cache.Put(ctx, node); err != nil {
		logger.WarnCtx(ctx, "cache put failed for node %s: %v", node.ID, err)
	}
	return node, nil
}

// UpdateStatus sets a node ONLINE or OFFLINE and merges metadata.
func (s *NodeService) UpdateStatus(ctx context.Context, nodeID string, req *model.NodeStatusRequest) (*model.Node, error) {
	if req.Status != constants.NodeStatusOnline && req.Status != constants.NodeStatusOffline {
		return nil, fmt.Errorf("%w: unknown node status %q", ErrInvalidArgument, req.Status)
	}

	if err := s.nodes.UpdateStatus(ctx, nodeID, req.Status, req.Metadata); err != nil {
		return nil, fmt.Errorf("update status of node %s: %w", nodeID, err)
	}

	stored, err := s.nodes.Get(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("load node %s after status update: %w", nodeID, err)
	}

	node := nodeFromStore(stored)
	if err := s.cache.Put(ctx, node); err != nil {
		logger.WarnCtx(ctx, "cache put failed for node %s: %v", node.ID, err)
	}
	return node, nil
}

// Heartbeat refreshes last_seen_at and flips the node ONLINE if a sweep had
// marked it stale in the meantime.
func (s *NodeService) Heartbeat(ctx context.Context, nodeID string) error {
	if err := s.nodes.Heartbeat(ctx, nodeID); err != nil {
		return fmt.Errorf("heartbeat node %s: %w", nodeID, err)
	}

	stored, err := s.nodes.Get(ctx, nodeID)
	if err == nil {
		if cerr := s.cache.Put(ctx, nodeFromStore(stored)); cerr != nil {
			logger.WarnCtx(ctx, "cache put failed for node %s: %v", nodeID, cerr)
		}
	}
	return nil
}

// Unregister flips a node OFFLINE. The row is kept, only the status changes,
// so the history of a departed node remains queryable.
func (s *NodeService) Unregister(ctx context.Context, nodeID string) error {
	if err := s.nodes.Unregister(ctx, nodeID); err != nil {
		return fmt.Errorf("unregister node %s: %w", nodeID, err)
	}
	if err := s.cache.Remove(ctx, nodeID); err != nil {
		logger.WarnCtx(ctx, "cache remove failed for node %s: %v", nodeID, err)
	}
	return nil
}

// Get returns a single node by id, online or not.
func (s *NodeService) Get(ctx context.Context, nodeID string) (*model.Node, error) {
	stored, err := s.nodes.Get(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", nodeID, err)
	}
	return nodeFromStore(stored), nil
}

// ListActive returns all ONLINE nodes ordered by most recent heartbeat.
// The cache answers first; on a miss or cache error the database is
// authoritative and the cache is refilled.
func (s *NodeService) ListActive(ctx context.Context) ([]*model.Node, error) {
	cached, err := s.cache.ListActive(ctx)
	if err == nil && len(cached) > 0 {
		sort.Slice(cached, func(i, j int) bool {
			return cached[i].LastSeenAt.After(cached[j].LastSeenAt)
		})
		return cached, nil
	}
	if err != nil {
		logger.WarnCtx(ctx, "cache list failed, falling back to database: %v", err)
	}

	stored, err := s.nodes.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active nodes: %w", err)
	}

	nodes := nodesFromStore(stored)
	if cerr := s.cache.Reconcile(ctx, nodes); cerr != nil {
		logger.WarnCtx(ctx, "cache refill failed: %v", cerr)
	}
	return nodes, nil
}

// SweepStale marks nodes OFFLINE whose last heartbeat is older than the
// given timeout. Returns the number of nodes flipped.
func (s *NodeService) SweepStale(ctx context.Context, timeout time.Duration) (int64, error) {
	threshold := time.Now().UTC().Add(-timeout)
	count, err := s.nodes.MarkStale(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("sweep stale nodes: %w", err)
	}
	if count > 0 {
		logger.InfoCtx(ctx, "marked %d stale node(s) offline", count)
		if err := s.ReconcileCache(ctx); err != nil {
			logger.WarnCtx(ctx, "cache reconcile after sweep failed: %v", err)
		}
	}
	return count, nil
}

// ReconcileCache rebuilds the Redis active-node view from the database.
// Called on startup so a stale cache never outlives a restart.
func (s *NodeService) ReconcileCache(ctx context.Context) error {
	stored, err := s.nodes.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active nodes for reconcile: %w", err)
	}
	if err := s.cache.Reconcile(ctx, nodesFromStore(stored)); err != nil {
		return fmt.Errorf("reconcile node cache: %w", err)
	}
	logger.InfoCtx(ctx, "node cache reconciled with %d active node(s)", len(stored))
	return nil
}
