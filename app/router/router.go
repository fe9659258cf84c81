package router

import (
	"meshtrack/app/handler"
	"meshtrack/app/middleware"

	"github.com/gin-gonic/gin"
)

// Router Router
type Router struct {
	nodeHandler    *handler.NodeHandler
	messageHandler *handler.MessageHandler
	taskHandler    *handler.TaskHandler
	statsHandler   *handler.StatsHandler
}

// NewRouter creates a new Router
func NewRouter(nodeHandler *handler.NodeHandler, messageHandler *handler.MessageHandler, taskHandler *handler.TaskHandler, statsHandler *handler.StatsHandler) *Router {
	return &Router{
		nodeHandler:    nodeHandler,
		messageHandler: messageHandler,
		taskHandler:    taskHandler,
		statsHandler:   statsHandler,
	}
}

// Setup sets up routes
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestLogger())

	api := engine.Group("/api/v1")
	auth := middleware.Auth() // reads stay open, writes need the token
	{
		nodes := api.Group("/nodes")
		{
			nodes.POST("", auth, r.nodeHandler.Register)
			nodes.GET("", r.nodeHandler.List)
			nodes.GET("/:id", r.nodeHandler.Get)
			nodes.PUT("/:id/status", auth, r.nodeHandler.UpdateStatus)
			nodes.POST("/:id/heartbeat", auth, r.nodeHandler.Heartbeat)
			nodes.DELETE("/:id", auth, r.nodeHandler.Unregister)
			nodes.GET("/:id/messages", r.nodeHandler.QueuedMessages) // store-and-forward backlog
			nodes.GET("/:id/tasks", r.nodeHandler.Tasks)
		}

		messages := api.Group("/messages")
		{
			messages.POST("", auth, r.messageHandler.Record)
			messages.GET("/:id", r.messageHandler.Get)
			messages.PUT("/:id/outcome", auth, r.messageHandler.Outcome)
			messages.GET("/:id/events", r.messageHandler.Events)
		}

		tasks := api.Group("/tasks")
		{
			tasks.POST("", auth, r.taskHandler.Create)
			tasks.GET("/:id", r.taskHandler.Get)
			tasks.PUT("/:id/assign", auth, r.taskHandler.Assign)
			tasks.PUT("/:id/status", auth, r.taskHandler.UpdateStatus)
			tasks.PUT("/:id/cancel", auth, r.taskHandler.Cancel)
			tasks.GET("/:id/events", r.taskHandler.Events)
		}

		api.GET("/stats", r.statsHandler.Snapshot)
	}

	// Health check
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
