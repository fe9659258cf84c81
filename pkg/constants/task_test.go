package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    TaskStatus
		to      TaskStatus
		allowed bool
	}{
		{name: "pending to assigned", from: TaskStatusPending, to: TaskStatusAssigned, allowed: true},
		{name: "assigned to running", from: TaskStatusAssigned, to: TaskStatusRunning, allowed: true},
		{name: "running to completed", from: TaskStatusRunning, to: TaskStatusCompleted, allowed: true},
		{name: "running to failed", from: TaskStatusRunning, to: TaskStatusFailed, allowed: true},
		{name: "pending to running skips assigned", from: TaskStatusPending, to: TaskStatusRunning, allowed: false},
		{name: "pending to completed skips forward", from: TaskStatusPending, to: TaskStatusCompleted, allowed: false},
		{name: "assigned back to pending", from: TaskStatusAssigned, to: TaskStatusPending, allowed: false},
		{name: "running back to assigned", from: TaskStatusRunning, to: TaskStatusAssigned, allowed: false},
		{name: "completed to failed", from: TaskStatusCompleted, to: TaskStatusFailed, allowed: false},
		{name: "failed to completed", from: TaskStatusFailed, to: TaskStatusCompleted, allowed: false},
		{name: "cancel from pending", from: TaskStatusPending, to: TaskStatusCancelled, allowed: true},
		{name: "cancel from assigned", from: TaskStatusAssigned, to: TaskStatusCancelled, allowed: true},
		{name: "cancel from running", from: TaskStatusRunning, to: TaskStatusCancelled, allowed: true},
		{name: "cancel from cancelled", from: TaskStatusCancelled, to: TaskStatusCancelled, allowed: false},
		{name: "cancel from completed", from: TaskStatusCompleted, to: TaskStatusCancelled, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTaskStatusIsTerminal(t *testing.T) {
	assert.False(t, TaskStatusPending.IsTerminal())
	assert.False(t, TaskStatusAssigned.IsTerminal())
	assert.False(t, TaskStatusRunning.IsTerminal())
	assert.True(t, TaskStatusCompleted.IsTerminal())
	assert.True(t, TaskStatusFailed.IsTerminal())
	assert.True(t, TaskStatusCancelled.IsTerminal())
}

func TestMessageStatusIsTerminal(t *testing.T) {
	assert.False(t, MessageStatusQueued.IsTerminal())
	assert.False(t, MessageStatusSent.IsTerminal())
	assert.True(t, MessageStatusDelivered.IsTerminal())
	assert.True(t, MessageStatusFailed.IsTerminal())
	assert.True(t, MessageStatusExpired.IsTerminal())
}
