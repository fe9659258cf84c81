package handler

import (
	"net/http"

	"meshtrack/internal/model"
	"meshtrack/internal/service"

	"github.com/gin-gonic/gin"
)

// MessageHandler handles message delivery tracking operations
type MessageHandler struct {
	messageService *service.MessageService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// Record records a delivery attempt
// @Summary Record message
// @Description Records a message; the status starts SENT for an online destination and QUEUED otherwise
// @Tags message
// @Accept json
// @Produce json
// @Param request body model.SendRequest true "Message to record"
// @Success 201 {object} model.Message
// @Failure 409 {object} map[string]string "Duplicate message id"
// @Router /api/v1/messages [post]
func (h *MessageHandler) Record(c *gin.Context) {
	var req model.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	msg, err := h.messageService.RecordSent(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Get returns a message by id
// @Summary Get message
// @Tags message
// @Produce json
// @Param id path string true "Message ID"
// @Success 200 {object} model.Message
// @Failure 404 {object} map[string]string
// @Router /api/v1/messages/:id [get]
func (h *MessageHandler) Get(c *gin.Context) {
	msg, err := h.messageService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Outcome marks a message delivered or failed
// @Summary Record delivery outcome
// @Description Moves a SENT or QUEUED message to DELIVERED or FAILED, exactly once
// @Tags message
// @Accept json
// @Produce json
// @Param id path string true "Message ID"
// @Param request body model.OutcomeRequest true "Delivery outcome"
// @Success 200 {object} model.Message
// @Failure 409 {object} map[string]string "Message already terminal"
// @Router /api/v1/messages/:id/outcome [put]
func (h *MessageHandler) Outcome(c *gin.Context) {
	var req model.OutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	msg, err := h.messageService.RecordOutcome(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Events returns the transition history of a message
// @Summary Message history
// @Tags message
// @Produce json
// @Param id path string true "Message ID"
// @Success 200 {array} model.DeliveryEvent
// @Router /api/v1/messages/:id/events [get]
func (h *MessageHandler) Events(c *gin.Context) {
	events, err := h.messageService.Events(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
