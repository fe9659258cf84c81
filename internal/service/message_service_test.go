package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshtrack/internal/model"
	"meshtrack/pkg/constants"
	"meshtrack/pkg/store"
)

func TestMessageService_SentWhenDestinationOnline(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.registerOnline(ctx, "receiver")

	msg, err := f.messageSvc.RecordSent(ctx, &model.SendRequest{
		MessageID: "msg-1",
		From:      "sender",
		To:        "receiver",
		Type:      "telemetry",
	})
	require.NoError(t, err)
	assert.Equal(t, constants.MessageStatusSent, msg.Status)
}

func TestMessageService_QueuedWhenDestinationOffline(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.registerOnline(ctx, "receiver")
	require.NoError(t, f.nodeSvc.Unregister(ctx, "receiver"))

	msg, err := f.messageSvc.RecordSent(ctx, &model.SendRequest{
		MessageID: "msg-1",
		From:      "sender",
		To:        "receiver",
	})
	require.NoError(t, err)
	assert.Equal(t, constants.MessageStatusQueued, msg.Status)
}

func TestMessageService_QueuedWhenDestinationUnknown(t *testing.T) {
	f := newFixture()

	msg, err := f.messageSvc.RecordSent(context.Background(), &model.SendRequest{
		MessageID: "msg-1",
		From:      "sender",
		To:        "nobody-yet",
	})
	require.NoError(t, err)
	assert.Equal(t, constants.MessageStatusQueued, msg.Status)
}

func TestMessageService_BroadcastIsAlwaysSent(t *testing.T) {
	f := newFixture()

	msg, err := f.messageSvc.RecordSent(context.Background(), &model.SendRequest{
		MessageID: "msg-1",
		From:      "sender",
		To:        constants.BroadcastTarget,
	})
	require.NoError(t, err)
	assert.Equal(t, constants.MessageStatusSent, msg.Status)
}

func TestMessageService_DuplicateIDRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := &model.SendRequest{MessageID: "msg-1", From: "a", To: constants.BroadcastTarget}
	_, err := f.messageSvc.RecordSent(ctx, req)
	require.NoError(t, err)

	_, err = f.messageSvc.RecordSent(ctx, req)
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestMessageService_OutcomeIsTerminal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.registerOnline(ctx, "receiver")

	_, err := f.messageSvc.RecordSent(ctx, &model.SendRequest{
		MessageID: "msg-1",
		From:      "sender",
		To:        "receiver",
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	msg, err := f.messageSvc.RecordOutcome(ctx, "msg-1", &model.OutcomeRequest{
		Status:      constants.MessageStatusDelivered,
		DeliveredAt: &now,
	})
	require.NoError(t, err)
	assert.Equal(t, constants.MessageStatusDelivered, msg.Status)
	require.NotNil(t, msg.DeliveredAt)

	// A second outcome, even a different one, bounces off the terminal state.
	_, err = f.messageSvc.RecordOutcome(ctx, "msg-1", &model.OutcomeRequest{
		Status: constants.MessageStatusFailed,
	})
	assert.ErrorIs(t, err, store.ErrStatusConflict)
}

func TestMessageService_OutcomeValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.registerOnline(ctx, "receiver")
	_, err := f.messageSvc.RecordSent(ctx, &model.SendRequest{
		MessageID: "msg-1", From: "a", To: "receiver",
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	tests := []struct {
		name string
		req  *model.OutcomeRequest
	}{
		{"delivered without timestamp", &model.OutcomeRequest{Status: constants.MessageStatusDelivered}},
		{"failed with timestamp", &model.OutcomeRequest{Status: constants.MessageStatusFailed, DeliveredAt: &now}},
		{"not an outcome status", &model.OutcomeRequest{Status: constants.MessageStatusQueued}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.messageSvc.RecordOutcome(ctx, "msg-1", tt.req)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestMessageService_QueuedForIsFIFO(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.messageSvc.RecordSent(ctx, &model.SendRequest{
			MessageID: fmt.Sprintf("msg-%d", i),
			From:      "sender",
			To:        "offline-node",
		})
		require.NoError(t, err)
	}

	queued, err := f.messageSvc.QueuedFor(ctx, "offline-node")
	require.NoError(t, err)
	require.Len(t, queued, 5)
	for i, msg := range queued {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), msg.ID)
		assert.Equal(t, constants.MessageStatusQueued, msg.Status)
	}
}

func TestMessageService_QueuedMessageDrainsOnDelivery(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Destination is offline, the message waits in the queue.
	_, err := f.messageSvc.RecordSent(ctx, &model.SendRequest{
		MessageID: "m1", From: "sock-1", To: "sock-2", Type: "ping",
	})
	require.NoError(t, err)

	queued, err := f.messageSvc.QueuedFor(ctx, "sock-2")
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "m1", queued[0].ID)

	// Destination reconnects and the transport reports delivery.
	f.registerOnline(ctx, "sock-2")
	now := time.Now().UTC()
	msg, err := f.messageSvc.RecordOutcome(ctx, "m1", &model.OutcomeRequest{
		Status:      constants.MessageStatusDelivered,
		DeliveredAt: &now,
	})
	require.NoError(t, err)
	assert.Equal(t, constants.MessageStatusDelivered, msg.Status)

	queued, err = f.messageSvc.QueuedFor(ctx, "sock-2")
	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestMessageService_ExpireOverdue(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	soon := time.Now().UTC().Add(20 * time.Millisecond)
	_, err := f.messageSvc.RecordSent(ctx, &model.SendRequest{
		MessageID: "msg-exp",
		From:      "sender",
		To:        "offline-node",
		ExpiresAt: &soon,
	})
	require.NoError(t, err)

	_, err = f.messageSvc.RecordSent(ctx, &model.SendRequest{
		MessageID: "msg-keep",
		From:      "sender",
		To:        "offline-node",
	})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	expired, err := f.messageSvc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	msg, err := f.messageSvc.Get(ctx, "msg-exp")
	require.NoError(t, err)
	assert.Equal(t, constants.MessageStatusExpired, msg.Status)

	queued, err := f.messageSvc.QueuedFor(ctx, "offline-node")
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "msg-keep", queued[0].ID)
}

func TestMessageService_RejectsPastExpiry(t *testing.T) {
	f := newFixture()

	past := time.Now().UTC().Add(-time.Minute)
	_, err := f.messageSvc.RecordSent(context.Background(), &model.SendRequest{
		MessageID: "msg-1",
		From:      "sender",
		To:        constants.BroadcastTarget,
		ExpiresAt: &past,
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMessageService_EventsFollowTheLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.registerOnline(ctx, "receiver")

	_, err := f.messageSvc.RecordSent(ctx, &model.SendRequest{
		MessageID: "msg-1", From: "sender", To: "receiver",
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	_, err = f.messageSvc.RecordOutcome(ctx, "msg-1", &model.OutcomeRequest{
		Status:      constants.MessageStatusDelivered,
		DeliveredAt: &now,
	})
	require.NoError(t, err)

	events, err := f.messageSvc.Events(ctx, "msg-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "MESSAGE_SENT", events[0].EventType)
	assert.Equal(t, "MESSAGE_DELIVERED", events[1].EventType)
}

func TestMessageService_PurgeTerminalRespectsRetention(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.registerOnline(ctx, "receiver")

	_, err := f.messageSvc.RecordSent(ctx, &model.SendRequest{
		MessageID: "msg-1", From: "sender", To: "receiver",
	})
	require.NoError(t, err)
	now := time.Now().UTC()
	_, err = f.messageSvc.RecordOutcome(ctx, "msg-1", &model.OutcomeRequest{
		Status: constants.MessageStatusDelivered, DeliveredAt: &now,
	})
	require.NoError(t, err)

	// Inside the window: nothing goes.
	count, err := f.messageSvc.PurgeTerminal(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Zero retention: every terminal message goes.
	count, err = f.messageSvc.PurgeTerminal(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = f.messageSvc.Get(ctx, "msg-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
