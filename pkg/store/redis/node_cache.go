package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"meshtrack/internal/model"
	"meshtrack/pkg/constants"

	"github.com/go-redis/redis/v8"
)

const (
	nodeKeyPrefix    = "node:"         // Per-node JSON under TTL
	nodeSetKeyActive = "nodes:active"  // Active node id set
	nodeDataTTL      = 5 * time.Minute // Cache entry TTL
)

// NodeCache is an explicit write-through/read-through cache of the active
// node set. It is advisory only: the durable store stays authoritative, and
// Reconcile rebuilds the cache from it on startup.
type NodeCache struct {
	redis *redis.Client
}

// NewNodeCache creates a node cache on top of the shared client.
func NewNodeCache(redisClient *RedisClient) *NodeCache {
	return &NodeCache{redis: redisClient.GetClient()}
}

// Put writes a node into the cache. OFFLINE nodes are dropped from the active
// set instead of stored.
func (c *NodeCache) Put(ctx context.Context, node *model.Node) error {
	if node.Status != constants.NodeStatusOnline {
		return c.Remove(ctx, node.ID)
	}

	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to marshal node: %w", err)
	}

	pipe := c.redis.Pipeline()
	pipe.Set(ctx, nodeKeyPrefix+node.ID, data, nodeDataTTL)
	pipe.SAdd(ctx, nodeSetKeyActive, node.ID)
	pipe.Expire(ctx, nodeSetKeyActive, nodeDataTTL*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache node: %w", err)
	}
	return nil
}

// Remove drops a node from the cache.
func (c *NodeCache) Remove(ctx context.Context, nodeID string) error {
	pipe := c.redis.Pipeline()
	pipe.Del(ctx, nodeKeyPrefix+nodeID)
	pipe.SRem(ctx, nodeSetKeyActive, nodeID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to evict node: %w", err)
	}
	return nil
}

// ListActive returns the cached active nodes. A node id in the set whose JSON
// entry expired is skipped; the caller decides whether to fall back to the
// durable store.
func (c *NodeCache) ListActive(ctx context.Context) ([]*model.Node, error) {
	nodeIDs, err := c.redis.SMembers(ctx, nodeSetKeyActive).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read active node set: %w", err)
	}
	if len(nodeIDs) == 0 {
		return []*model.Node{}, nil
	}

	pipe := c.redis.Pipeline()
	cmds := make([]*redis.StringCmd, 0, len(nodeIDs))
	for _, nodeID := range nodeIDs {
		cmds = append(cmds, pipe.Get(ctx, nodeKeyPrefix+nodeID))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to fetch cached nodes: %w", err)
	}

	nodes := make([]*model.Node, 0, len(nodeIDs))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			// Entry expired between SMembers and Get, skip
			continue
		}
		var node model.Node
		if err := json.Unmarshal([]byte(data), &node); err != nil {
			continue
		}
		nodes = append(nodes, &node)
	}
	return nodes, nil
}

// Reconcile replaces the cache content with the authoritative active set from
// the durable store. Called once at startup so a restarted broker does not
// serve a stale or empty cache.
func (c *NodeCache) Reconcile(ctx context.Context, nodes []*model.Node) error {
	staleIDs, err := c.redis.SMembers(ctx, nodeSetKeyActive).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to read active node set: %w", err)
	}

	pipe := c.redis.Pipeline()
	for _, id := range staleIDs {
		pipe.Del(ctx, nodeKeyPrefix+id)
	}
	pipe.Del(ctx, nodeSetKeyActive)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear node cache: %w", err)
	}

	for _, node := range nodes {
		if err := c.Put(ctx, node); err != nil {
			return err
		}
	}
	return nil
}
