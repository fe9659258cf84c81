package handler

import (
	"net/http"

	"meshtrack/internal/model"
	"meshtrack/internal/service"

	"github.com/gin-gonic/gin"
)

// NodeHandler handles node registry operations
type NodeHandler struct {
	nodeService    *service.NodeService
	messageService *service.MessageService
	taskService    *service.TaskService
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(nodeService *service.NodeService, messageService *service.MessageService, taskService *service.TaskService) *NodeHandler {
	return &NodeHandler{
		nodeService:    nodeService,
		messageService: messageService,
		taskService:    taskService,
	}
}

// Register registers a node or refreshes an existing registration
// @Summary Register node
// @Description Upsert a node by id; re-registration refreshes capabilities and flips it online
// @Tags node
// @Accept json
// @Produce json
// @Param request body model.RegisterRequest true "Node registration"
// @Success 200 {object} model.Node
// @Router /api/v1/nodes [post]
func (h *NodeHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	node, err := h.nodeService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, node)
}

// Get returns a node by id
// @Summary Get node
// @Tags node
// @Produce json
// @Param id path string true "Node ID"
// @Success 200 {object} model.Node
// @Failure 404 {object} map[string]string
// @Router /api/v1/nodes/:id [get]
func (h *NodeHandler) Get(c *gin.Context) {
	node, err := h.nodeService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

// List returns all online nodes, most recently seen first
// @Summary List active nodes
// @Tags node
// @Produce json
// @Success 200 {array} model.Node
// @Router /api/v1/nodes [get]
func (h *NodeHandler) List(c *gin.Context) {
	nodes, err := h.nodeService.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nodes)
}

// UpdateStatus sets a node online or offline
// @Summary Update node status
// @Tags node
// @Accept json
// @Produce json
// @Param id path string true "Node ID"
// @Param request body model.NodeStatusRequest true "Status change"
// @Success 200 {object} model.Node
// @Router /api/v1/nodes/:id/status [put]
func (h *NodeHandler) UpdateStatus(c *gin.Context) {
	var req model.NodeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	node, err := h.nodeService.UpdateStatus(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

// Heartbeat refreshes a node's liveness
// @Summary Node heartbeat
// @Description Refreshes last_seen_at and revives a node swept offline
// @Tags node
// @Produce json
// @Param id path string true "Node ID"
// @Success 200 {object} map[string]string
// @Router /api/v1/nodes/:id/heartbeat [post]
func (h *NodeHandler) Heartbeat(c *gin.Context) {
	if err := h.nodeService.Heartbeat(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Unregister flips a node offline while keeping its record
// @Summary Unregister node
// @Tags node
// @Produce json
// @Param id path string true "Node ID"
// @Success 200 {object} map[string]string
// @Router /api/v1/nodes/:id [delete]
func (h *NodeHandler) Unregister(c *gin.Context) {
	if err := h.nodeService.Unregister(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// QueuedMessages returns the store-and-forward backlog for a node
// @Summary List queued messages for a node
// @Description Messages awaiting the node in the order they should be drained
// @Tags node
// @Produce json
// @Param id path string true "Node ID"
// @Success 200 {array} model.Message
// @Router /api/v1/nodes/:id/messages [get]
func (h *NodeHandler) QueuedMessages(c *gin.Context) {
	messages, err := h.messageService.QueuedFor(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// Tasks returns tasks assigned to a node
// @Summary List tasks for a node
// @Tags node
// @Produce json
// @Param id path string true "Node ID"
// @Param status query string false "Filter by task status"
// @Param limit query int false "Maximum number of tasks"
// @Success 200 {array} model.Task
// @Router /api/v1/nodes/:id/tasks [get]
func (h *NodeHandler) Tasks(c *gin.Context) {
	tasks, err := h.taskService.ListForNode(
		c.Request.Context(),
		c.Param("id"),
		taskStatusQuery(c),
		intQuery(c, "limit", 0),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}
