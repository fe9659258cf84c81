package service

import (
	"context"
	"fmt"

	"meshtrack/internal/model"
)

// StatsService aggregates per-status counts for the dashboard.
type StatsService struct {
	nodes    NodeStore
	messages MessageStore
	tasks    TaskStore
}

func NewStatsService(nodes NodeStore, messages MessageStore, tasks TaskStore) *StatsService {
	return &StatsService{
		nodes:    nodes,
		messages: messages,
		tasks:    tasks,
	}
}

// Snapshot returns current status counts across all three entities.
func (s *StatsService) Snapshot(ctx context.Context) (*model.Stats, error) {
	nodes, err := s.nodes.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count nodes: %w", err)
	}
	messages, err := s.messages.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	tasks, err := s.tasks.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	return &model.Stats{
		Nodes:    nodes,
		Messages: messages,
		Tasks:    tasks,
	}, nil
}
