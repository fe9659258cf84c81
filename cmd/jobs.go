package main

import (
	"context"
	"time"

	"meshtrack/internal/jobs"
	"meshtrack/internal/service"
	"meshtrack/pkg/lock"
	"meshtrack/pkg/logger"
)

// initJobs initializes background tasks
func (app *Application) initJobs() error {
	app.jobsManager = jobs.NewManager(app.ctx)

	redisClient := app.redisClient.GetClient()

	app.jobsManager.Register(&staleNodeSweepJob{
		nodes:    app.nodeService,
		timeout:  time.Duration(app.config.Node.HeartbeatTimeout) * time.Second,
		interval: time.Duration(app.config.Node.SweepInterval) * time.Second,
		lock:     lock.NewRedisLock(redisClient, "meshtrack:lock:node-sweep"),
	})

	app.jobsManager.Register(&messagePurgeJob{
		messages:  app.messageService,
		retention: time.Duration(app.config.Message.RetentionHours) * time.Hour,
		interval:  time.Duration(app.config.Message.PurgeInterval) * time.Second,
		lock:      lock.NewRedisLock(redisClient, "meshtrack:lock:message-purge"),
	})

	app.jobsManager.Register(&taskTimeoutJob{
		tasks:    app.taskService,
		interval: time.Duration(app.config.Task.TimeoutSweepInterval) * time.Second,
		lock:     lock.NewRedisLock(redisClient, "meshtrack:lock:task-timeout"),
	})

	return nil
}

// withLock runs fn only on the replica holding the distributed lock, so a
// multi-instance deployment sweeps each table once per interval.
func withLock(ctx context.Context, l *lock.RedisLock, name string, fn func(context.Context) error) error {
	acquired, err := l.TryLock(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		logger.DebugCtx(ctx, "%s: another instance holds the lock, skipping", name)
		return nil
	}
	defer func() {
		if err := l.Unlock(ctx); err != nil {
			logger.WarnCtx(ctx, "%s: unlock failed: %v", name, err)
		}
	}()

	return fn(ctx)
}

// staleNodeSweepJob flips nodes OFFLINE when their heartbeat goes silent.
type staleNodeSweepJob struct {
	nodes    *service.NodeService
	timeout  time.Duration
	interval time.Duration
	lock     *lock.RedisLock
}

func (j *staleNodeSweepJob) Name() string            { return "stale-node-sweep" }
func (j *staleNodeSweepJob) Interval() time.Duration { return j.interval }

func (j *staleNodeSweepJob) Run(ctx context.Context) error {
	return withLock(ctx, j.lock, j.Name(), func(ctx context.Context) error {
		_, err := j.nodes.SweepStale(ctx, j.timeout)
		return err
	})
}

// messagePurgeJob expires overdue queued messages and deletes terminal
// messages past their retention window.
type messagePurgeJob struct {
	messages  *service.MessageService
	retention time.Duration
	interval  time.Duration
	lock      *lock.RedisLock
}

func (j *messagePurgeJob) Name() string            { return "message-purge" }
func (j *messagePurgeJob) Interval() time.Duration { return j.interval }

func (j *messagePurgeJob) Run(ctx context.Context) error {
	return withLock(ctx, j.lock, j.Name(), func(ctx context.Context) error {
		if _, err := j.messages.ExpireOverdue(ctx); err != nil {
			return err
		}
		_, err := j.messages.PurgeTerminal(ctx, j.retention)
		return err
	})
}

// taskTimeoutJob fails RUNNING tasks that exceeded their timeout.
type taskTimeoutJob struct {
	tasks    *service.TaskService
	interval time.Duration
	lock     *lock.RedisLock
}

func (j *taskTimeoutJob) Name() string            { return "task-timeout" }
func (j *taskTimeoutJob) Interval() time.Duration { return j.interval }

func (j *taskTimeoutJob) Run(ctx context.Context) error {
	return withLock(ctx, j.lock, j.Name(), func(ctx context.Context) error {
		_, err := j.tasks.FailTimedOut(ctx)
		return err
	})
}
