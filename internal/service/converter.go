package service

import (
	"meshtrack/internal/model"
	"meshtrack/pkg/constants"
	smodel "meshtrack/pkg/store/mysql/model"
)

func nodeFromStore(n *smodel.Node) *model.Node {
	return &model.Node{
		ID:               n.NodeID,
		Type:             constants.NodeType(n.NodeType),
		Name:             n.Name,
		Capabilities:     []string(n.Capabilities),
		Metadata:         map[string]interface{}(n.Metadata),
		Status:           constants.NodeStatus(n.Status),
		FirstConnectedAt: n.FirstConnectedAt,
		LastSeenAt:       n.LastSeenAt,
	}
}

func nodesFromStore(nodes []*smodel.Node) []*model.Node {
	out := make([]*model.Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeFromStore(n))
	}
	return out
}

func messageFromStore(m *smodel.Message) *model.Message {
	return &model.Message{
		ID:          m.MessageID,
		From:        m.FromNode,
		To:          m.ToNode,
		Type:        m.MessageType,
		Payload:     map[string]interface{}(m.Payload),
		Status:      constants.MessageStatus(m.Status),
		Priority:    m.Priority,
		ExpiresAt:   m.ExpiresAt,
		DeliveredAt: m.DeliveredAt,
		CreatedAt:   m.CreatedAt,
	}
}

func messagesFromStore(msgs []*smodel.Message) []*model.Message {
	out := make([]*model.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageFromStore(m))
	}
	return out
}

func taskFromStore(t *smodel.Task) *model.Task {
	return &model.Task{
		ID:           t.TaskID,
		Requester:    t.RequesterNode,
		Capability:   t.Capability,
		Payload:      map[string]interface{}(t.Payload),
		Priority:     t.Priority,
		TimeoutMs:    t.TimeoutMs,
		Status:       constants.TaskStatus(t.Status),
		AssignedNode: t.AssignedNode,
		AssignedAt:   t.AssignedAt,
		StartedAt:    t.StartedAt,
		CompletedAt:  t.CompletedAt,
		Result:       map[string]interface{}(t.Result),
		Error:        t.Error,
		CreatedAt:    t.CreatedAt,
	}
}

func tasksFromStore(tasks []*smodel.Task) []*model.Task {
	out := make([]*model.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskFromStore(t))
	}
	return out
}

func eventsFromStore(events []*smodel.DeliveryEvent) []*model.DeliveryEvent {
	out := make([]*model.DeliveryEvent, 0, len(events))
	for _, e := range events {
		out = append(out, &model.DeliveryEvent{
			EventType:  e.EventType,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			NodeID:     e.NodeID,
			Error:      e.ErrorMessage,
			Metadata:   map[string]interface{}(e.Metadata),
			EventTime:  e.EventTime,
		})
	}
	return out
}
