package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"meshtrack/internal/model"
	"meshtrack/pkg/constants"
	"meshtrack/pkg/retry"
	"meshtrack/pkg/store"
	smodel "meshtrack/pkg/store/mysql/model"
)

// In-memory stores mirroring the MySQL repository contracts, including the
// conditional-update semantics, so service behavior is testable without a
// database.

type memNodeStore struct {
	mu    sync.Mutex
	nodes map[string]*smodel.Node
}

func newMemNodeStore() *memNodeStore {
	return &memNodeStore{nodes: make(map[string]*smodel.Node)}
}

func (s *memNodeStore) Register(_ context.Context, node *smodel.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.nodes[node.NodeID]; ok {
		node.FirstConnectedAt = existing.FirstConnectedAt
	}
	cp := *node
	s.nodes[node.NodeID] = &cp
	return nil
}

func (s *memNodeStore) UpdateStatus(_ context.Context, nodeID string, status constants.NodeStatus, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[nodeID]
	if !ok {
		return retry.MarkPermanent(store.ErrNotFound)
	}
	node.Status = string(status)
	node.LastSeenAt = time.Now().UTC()
	if len(metadata) > 0 {
		if node.Metadata == nil {
			node.Metadata = smodel.JSONMap{}
		}
		for k, v := range metadata {
			node.Metadata[k] = v
		}
	}
	return nil
}

func (s *memNodeStore) Heartbeat(_ context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[nodeID]
	if !ok {
		return retry.MarkPermanent(store.ErrNotFound)
	}
	node.Status = string(constants.NodeStatusOnline)
	node.LastSeenAt = time.Now().UTC()
	return nil
}

func (s *memNodeStore) Unregister(_ context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[nodeID]
	if !ok {
		return retry.MarkPermanent(store.ErrNotFound)
	}
	node.Status = string(constants.NodeStatusOffline)
	return nil
}

func (s *memNodeStore) Get(_ context.Context, nodeID string) (*smodel.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[nodeID]
	if !ok {
		return nil, retry.MarkPermanent(store.ErrNotFound)
	}
	cp := *node
	return &cp, nil
}

func (s *memNodeStore) ListActive(_ context.Context) ([]*smodel.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*smodel.Node
	for _, node := range s.nodes {
		if node.Status == string(constants.NodeStatusOnline) {
			cp := *node
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeenAt.After(out[j].LastSeenAt) })
	return out, nil
}

func (s *memNodeStore) MarkStale(_ context.Context, threshold time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, node := range s.nodes {
		if node.Status == string(constants.NodeStatusOnline) && node.LastSeenAt.Before(threshold) {
			node.Status = string(constants.NodeStatusOffline)
			count++
		}
	}
	return count, nil
}

func (s *memNodeStore) CountByStatus(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64)
	for _, node := range s.nodes {
		out[node.Status]++
	}
	return out, nil
}

type memMessageStore struct {
	mu       sync.Mutex
	messages map[string]*smodel.Message
	seq      int
}

func newMemMessageStore() *memMessageStore {
	return &memMessageStore{messages: make(map[string]*smodel.Message)}
}

func (s *memMessageStore) Create(_ context.Context, msg *smodel.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[msg.MessageID]; ok {
		return retry.MarkPermanent(store.ErrDuplicateKey)
	}
	s.seq++
	msg.ID = int64(s.seq)
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	cp := *msg
	s.messages[msg.MessageID] = &cp
	return nil
}

func (s *memMessageStore) MarkOutcome(_ context.Context, messageID string, status constants.MessageStatus, deliveredAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return retry.MarkPermanent(store.ErrNotFound)
	}
	current := constants.MessageStatus(msg.Status)
	if current != constants.MessageStatusQueued && current != constants.MessageStatusSent {
		return retry.MarkPermanent(fmt.Errorf("message %s already %s: %w", messageID, current, store.ErrStatusConflict))
	}
	msg.Status = string(status)
	msg.DeliveredAt = deliveredAt
	return nil
}

func (s *memMessageStore) Get(_ context.Context, messageID string) (*smodel.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return nil, retry.MarkPermanent(store.ErrNotFound)
	}
	cp := *msg
	return &cp, nil
}

func (s *memMessageStore) QueuedFor(_ context.Context, nodeID string) ([]*smodel.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*smodel.Message
	for _, msg := range s.messages {
		if msg.ToNode == nodeID && msg.Status == string(constants.MessageStatusQueued) {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memMessageStore) ListExpiredQueued(_ context.Context, now time.Time) ([]*smodel.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*smodel.Message
	for _, msg := range s.messages {
		if msg.Status == string(constants.MessageStatusQueued) && msg.ExpiresAt != nil && msg.ExpiresAt.Before(now) {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memMessageStore) Expire(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return retry.MarkPermanent(store.ErrNotFound)
	}
	if msg.Status != string(constants.MessageStatusQueued) {
		return retry.MarkPermanent(store.ErrStatusConflict)
	}
	msg.Status = string(constants.MessageStatusExpired)
	return nil
}

func (s *memMessageStore) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, msg := range s.messages {
		if constants.MessageStatus(msg.Status).IsTerminal() && msg.CreatedAt.Before(cutoff) {
			delete(s.messages, id)
			count++
		}
	}
	return count, nil
}

func (s *memMessageStore) CountByStatus(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64)
	for _, msg := range s.messages {
		out[msg.Status]++
	}
	return out, nil
}

type memTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*smodel.Task
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[string]*smodel.Task)}
}

func (s *memTaskStore) Create(_ context.Context, task *smodel.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.TaskID]; ok {
		return retry.MarkPermanent(store.ErrDuplicateKey)
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	cp := *task
	s.tasks[task.TaskID] = &cp
	return nil
}

func (s *memTaskStore) Get(_ context.Context, taskID string) (*smodel.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, retry.MarkPermanent(store.ErrNotFound)
	}
	cp := *task
	return &cp, nil
}

func (s *memTaskStore) Assign(_ context.Context, taskID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return retry.MarkPermanent(store.ErrNotFound)
	}
	if task.Status != string(constants.TaskStatusPending) {
		return retry.MarkPermanent(fmt.Errorf("task %s is %s: %w", taskID, task.Status, store.ErrStatusConflict))
	}
	now := time.Now().UTC()
	task.Status = string(constants.TaskStatusAssigned)
	task.AssignedNode = nodeID
	task.AssignedAt = &now
	return nil
}

func (s *memTaskStore) UpdateStatusCAS(_ context.Context, taskID string, from, to constants.TaskStatus, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return retry.MarkPermanent(store.ErrNotFound)
	}
	if task.Status != string(from) {
		return retry.MarkPermanent(fmt.Errorf("task %s is %s not %s: %w", taskID, task.Status, from, store.ErrStatusConflict))
	}
	task.Status = string(to)
	for col, val := range updates {
		switch col {
		case "started_at":
			t := val.(time.Time)
			task.StartedAt = &t
		case "completed_at":
			t := val.(time.Time)
			task.CompletedAt = &t
		case "result":
			task.Result = val.(smodel.JSONMap)
		case "error":
			task.Error = val.(string)
		}
	}
	return nil
}

func (s *memTaskStore) ListForNode(_ context.Context, nodeID string, status constants.TaskStatus, limit int) ([]*smodel.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*smodel.Task
	for _, task := range s.tasks {
		if task.AssignedNode != nodeID {
			continue
		}
		if status != "" && task.Status != string(status) {
			continue
		}
		cp := *task
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memTaskStore) ListTimedOut(_ context.Context, now time.Time) ([]*smodel.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*smodel.Task
	for _, task := range s.tasks {
		if task.Status != string(constants.TaskStatusRunning) || task.StartedAt == nil || task.TimeoutMs <= 0 {
			continue
		}
		if task.StartedAt.Add(time.Duration(task.TimeoutMs) * time.Millisecond).Before(now) {
			cp := *task
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memTaskStore) CountByStatus(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64)
	for _, task := range s.tasks {
		out[task.Status]++
	}
	return out, nil
}

type memEventStore struct {
	mu     sync.Mutex
	events []*smodel.DeliveryEvent
}

func newMemEventStore() *memEventStore {
	return &memEventStore{}
}

func (s *memEventStore) Record(_ context.Context, event *smodel.DeliveryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *event
	if cp.EventTime.IsZero() {
		cp.EventTime = time.Now().UTC()
	}
	s.events = append(s.events, &cp)
	return nil
}

func (s *memEventStore) ListForEntity(_ context.Context, kind smodel.EntityKind, entityID string) ([]*smodel.DeliveryEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*smodel.DeliveryEvent
	for _, event := range s.events {
		if event.EntityKind == string(kind) && event.EntityID == entityID {
			cp := *event
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memNodeCache struct {
	mu    sync.Mutex
	nodes map[string]*model.Node
}

func newMemNodeCache() *memNodeCache {
	return &memNodeCache{nodes: make(map[string]*model.Node)}
}

func (c *memNodeCache) Put(_ context.Context, node *model.Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if node.Status != constants.NodeStatusOnline {
		delete(c.nodes, node.ID)
		return nil
	}
	cp := *node
	c.nodes[node.ID] = &cp
	return nil
}

func (c *memNodeCache) Remove(_ context.Context, nodeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nodes, nodeID)
	return nil
}

func (c *memNodeCache) ListActive(_ context.Context) ([]*model.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*model.Node
	for _, node := range c.nodes {
		cp := *node
		out = append(out, &cp)
	}
	return out, nil
}

func (c *memNodeCache) Reconcile(_ context.Context, nodes []*model.Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = make(map[string]*model.Node, len(nodes))
	for _, node := range nodes {
		cp := *node
		c.nodes[node.ID] = &cp
	}
	return nil
}

type fixture struct {
	nodes    *memNodeStore
	messages *memMessageStore
	tasks    *memTaskStore
	events   *memEventStore
	cache    *memNodeCache

	nodeSvc    *NodeService
	messageSvc *MessageService
	taskSvc    *TaskService
	statsSvc   *StatsService
}

func newFixture() *fixture {
	f := &fixture{
		nodes:    newMemNodeStore(),
		messages: newMemMessageStore(),
		tasks:    newMemTaskStore(),
		events:   newMemEventStore(),
		cache:    newMemNodeCache(),
	}
	f.nodeSvc = NewNodeService(f.nodes, f.cache)
	f.messageSvc = NewMessageService(f.messages, f.nodes, f.events)
	f.taskSvc = NewTaskService(f.tasks, f.nodes, f.events, TaskDefaults{TimeoutMs: 300_000, Priority: 0})
	f.statsSvc = NewStatsService(f.nodes, f.messages, f.tasks)
	return f
}

func (f *fixture) registerOnline(ctx context.Context, nodeID string) *model.Node {
	node, err := f.nodeSvc.Register(ctx, &model.RegisterRequest{
		NodeID: nodeID,
		Type:   constants.NodeTypeWorker,
		Name:   nodeID,
	})
	if err != nil {
		panic(err)
	}
	return node
}
