package handler

import (
	"net/http"
	"strconv"

	"meshtrack/internal/model"
	"meshtrack/internal/service"
	"meshtrack/pkg/constants"

	"github.com/gin-gonic/gin"
)

// TaskHandler handles task lifecycle operations
type TaskHandler struct {
	taskService *service.TaskService
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// Create records a new pending task
// @Summary Create task
// @Tags task
// @Accept json
// @Produce json
// @Param request body model.CreateTaskRequest true "Task to create"
// @Success 201 {object} model.Task
// @Failure 409 {object} map[string]string "Duplicate task id"
// @Router /api/v1/tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	var req model.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// Get returns a task by id
// @Summary Get task
// @Tags task
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} model.Task
// @Failure 404 {object} map[string]string
// @Router /api/v1/tasks/:id [get]
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.taskService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Assign moves a pending task onto an online node
// @Summary Assign task
// @Description Assigns the task exactly once; a task past PENDING reports a conflict
// @Tags task
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body model.AssignRequest true "Assignee"
// @Success 200 {object} model.Task
// @Failure 409 {object} map[string]string "Task already assigned"
// @Router /api/v1/tasks/:id/assign [put]
func (h *TaskHandler) Assign(c *gin.Context) {
	var req model.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	task, err := h.taskService.Assign(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// UpdateStatus advances a task along its lifecycle
// @Summary Update task status
// @Description Legal moves only: ASSIGNED to RUNNING, RUNNING to COMPLETED or FAILED, CANCELLED from any non-terminal state
// @Tags task
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body model.TaskStatusRequest true "Status change"
// @Success 200 {object} model.Task
// @Failure 409 {object} map[string]string "Illegal transition"
// @Router /api/v1/tasks/:id/status [put]
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	var req model.TaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	task, err := h.taskService.UpdateStatus(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Cancel moves a non-terminal task to CANCELLED
// @Summary Cancel task
// @Tags task
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} model.Task
// @Failure 409 {object} map[string]string "Task already terminal"
// @Router /api/v1/tasks/:id/cancel [put]
func (h *TaskHandler) Cancel(c *gin.Context) {
	task, err := h.taskService.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Events returns the transition history of a task
// @Summary Task history
// @Tags task
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {array} model.DeliveryEvent
// @Router /api/v1/tasks/:id/events [get]
func (h *TaskHandler) Events(c *gin.Context) {
	events, err := h.taskService.Events(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func taskStatusQuery(c *gin.Context) constants.TaskStatus {
	return constants.TaskStatus(c.Query("status"))
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return val
}
