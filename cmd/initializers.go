package main

import (
	"fmt"
	"net/http"

	"meshtrack/app/handler"
	"meshtrack/app/router"
	"meshtrack/internal/service"
	"meshtrack/pkg/config"
	"meshtrack/pkg/logger"
	"meshtrack/pkg/retry"
	mysqlstore "meshtrack/pkg/store/mysql"
	redisstore "meshtrack/pkg/store/redis"

	"github.com/gin-gonic/gin"
)

// initConfig initializes configuration
func (app *Application) initConfig() error {
	if err := config.Init(); err != nil {
		return err
	}
	app.config = config.GlobalConfig
	return nil
}

// initLogger initializes logging
func (app *Application) initLogger() error {
	if err := logger.Init(); err != nil {
		return err
	}
	app.registerCleanup(func() {
		logger.Sync()
		logger.InfoCtx(app.ctx, "Logging system has been closed")
	})
	return nil
}

// initMySQL initializes MySQL
func (app *Application) initMySQL() error {
	retryCfg := retry.Config{
		MaxAttempts: app.config.Retry.MaxAttempts,
		BaseDelay:   app.config.Retry.BaseDelay(),
	}

	repo, err := mysqlstore.NewRepository(app.config.MySQL.ConnString(), retryCfg)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(); err != nil {
		return err
	}

	app.mysqlRepo = repo
	app.registerCleanup(func() {
		repo.Close()
		logger.InfoCtx(app.ctx, "MySQL connection has been closed")
	})

	return nil
}

// initRedis initializes Redis
func (app *Application) initRedis() error {
	client, err := redisstore.NewRedisClient(app.config)
	if err != nil {
		return err
	}

	app.redisClient = client
	app.nodeCache = redisstore.NewNodeCache(client)
	app.registerCleanup(func() {
		client.Close()
		logger.InfoCtx(app.ctx, "Redis connection has been closed")
	})

	return nil
}

// initServices initializes service layer
func (app *Application) initServices() error {
	app.nodeService = service.NewNodeService(
		app.mysqlRepo.Node,
		app.nodeCache,
	)

	app.messageService = service.NewMessageService(
		app.mysqlRepo.Message,
		app.mysqlRepo.Node,
		app.mysqlRepo.Event,
	)

	app.taskService = service.NewTaskService(
		app.mysqlRepo.Task,
		app.mysqlRepo.Node,
		app.mysqlRepo.Event,
		service.TaskDefaults{
			TimeoutMs: app.config.Task.DefaultTimeoutMs,
			Priority:  app.config.Task.DefaultPriority,
		},
	)

	app.statsService = service.NewStatsService(
		app.mysqlRepo.Node,
		app.mysqlRepo.Message,
		app.mysqlRepo.Task,
	)

	return nil
}

// initHandlers initializes handler layer
func (app *Application) initHandlers() error {
	app.nodeHandler = handler.NewNodeHandler(app.nodeService, app.messageService, app.taskService)
	app.messageHandler = handler.NewMessageHandler(app.messageService)
	app.taskHandler = handler.NewTaskHandler(app.taskService)
	app.statsHandler = handler.NewStatsHandler(app.statsService)
	return nil
}

// initHTTPServer initializes HTTP server
func (app *Application) initHTTPServer() error {
	if app.config.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	app.ginEngine = gin.New()

	r := router.NewRouter(app.nodeHandler, app.messageHandler, app.taskHandler, app.statsHandler)
	r.Setup(app.ginEngine)

	app.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: app.ginEngine,
	}
	return nil
}
