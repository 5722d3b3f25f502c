package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"messaging-service/internal/models"
	"messaging-service/internal/service"
)

// MessageHandler manages the message log, polling and seen endpoints.
type MessageHandler struct {
	svc *service.MessageService
	log zerolog.Logger
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(svc *service.MessageService, log zerolog.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, log: log.With().Str("component", "message-handler").Logger()}
}

// Page returns a backward page of messages. ?before_id scrolls up,
// ?per_page bounds the page size.
func (h *MessageHandler) Page(c *gin.Context) {
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := h.svc.Page(c.Request.Context(), currentUserID(c), conversationID, queryInt64(c, "before_id"), queryInt(c, "per_page"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Poll returns messages strictly newer than ?after_id. A zero or missing
// cursor yields an empty result.
func (h *MessageHandler) Poll(c *gin.Context) {
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := h.svc.Poll(c.Request.Context(), currentUserID(c), conversationID, queryInt64(c, "after_id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Search matches message bodies inside one conversation.
func (h *MessageHandler) Search(c *gin.Context) {
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}

	views, err := h.svc.Search(c.Request.Context(), currentUserID(c), conversationID, c.Query("q"), queryInt(c, "limit"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": views})
}

// Send appends a message to the conversation.
func (h *MessageHandler) Send(c *gin.Context) {
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Body     string `json:"body" binding:"required"`
		Kind     string `json:"kind"`
		ParentID *int64 `json:"parent_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.svc.Send(c.Request.Context(), currentUserID(c), conversationID, req.Body, models.MessageKind(req.Kind), req.ParentID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": view})
}

// Edit replaces the body of the caller's own message.
func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.svc.Edit(c.Request.Context(), currentUserID(c), messageID, req.Body)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": view})
}

// Delete soft-deletes the caller's own message.
func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), currentUserID(c), messageID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// MarkSeen records the caller as having observed the conversation.
func (h *MessageHandler) MarkSeen(c *gin.Context) {
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.MarkSeen(c.Request.Context(), currentUserID(c), conversationID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seen": true})
}
