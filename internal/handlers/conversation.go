// Package handlers exposes the messaging subsystem over HTTP. Handlers bind
// and validate input, delegate to the services and translate failures
// through one shared error mapping.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"messaging-service/internal/service"
)

// ConversationHandler manages conversation and roster endpoints.
type ConversationHandler struct {
	svc *service.ConversationService
	log zerolog.Logger
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(svc *service.ConversationService, log zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{svc: svc, log: log.With().Str("component", "conversation-handler").Logger()}
}

// List returns the caller's conversations; ?archived=true switches to the
// archived view.
func (h *ConversationHandler) List(c *gin.Context) {
	userID := currentUserID(c)
	archived := c.Query("archived") == "true" || c.Query("archived") == "1"

	views, err := h.svc.List(c.Request.Context(), userID, archived)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": views})
}

// Create starts a conversation with the given members.
func (h *ConversationHandler) Create(c *gin.Context) {
	var req struct {
		Name      *string `json:"name"`
		MemberIDs []int64 `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.svc.Create(c.Request.Context(), currentUserID(c), req.MemberIDs, req.Name)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation": view})
}

// Get returns one conversation with its roster.
func (h *ConversationHandler) Get(c *gin.Context) {
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}

	view, err := h.svc.Get(c.Request.Context(), currentUserID(c), conversationID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": view})
}

// Delete soft-deletes a conversation. Creator only.
func (h *ConversationHandler) Delete(c *gin.Context) {
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), currentUserID(c), conversationID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Archive hides the conversation for the caller.
func (h *ConversationHandler) Archive(c *gin.Context) {
	h.setArchived(c, true)
}

// Unarchive reverses Archive.
func (h *ConversationHandler) Unarchive(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *ConversationHandler) setArchived(c *gin.Context, archived bool) {
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var err error
	if archived {
		err = h.svc.Archive(c.Request.Context(), currentUserID(c), conversationID)
	} else {
		err = h.svc.Unarchive(c.Request.Context(), currentUserID(c), conversationID)
	}
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": archived})
}

// Leave removes the caller from the conversation.
func (h *ConversationHandler) Leave(c *gin.Context) {
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := h.svc.Leave(c.Request.Context(), currentUserID(c), conversationID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AddMember adds a user to the roster. Admin only.
func (h *ConversationHandler) AddMember(c *gin.Context) {
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.AddMember(c.Request.Context(), currentUserID(c), conversationID, req.UserID); err != nil {
		writeError(c, h.log, err)
		return
	}

	view, err := h.svc.Get(c.Request.Context(), currentUserID(c), conversationID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": view})
}

// RemoveMember removes another user from the roster. Admin only.
func (h *ConversationHandler) RemoveMember(c *gin.Context) {
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}

	if err := h.svc.RemoveMember(c.Request.Context(), currentUserID(c), conversationID, userID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// SetAdmin grants or revokes a member's admin flag. Admin only.
func (h *ConversationHandler) SetAdmin(c *gin.Context) {
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}

	var req struct {
		IsAdmin *bool `json:"is_admin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.SetAdmin(c.Request.Context(), currentUserID(c), conversationID, userID, *req.IsAdmin); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_admin": *req.IsAdmin})
}

// SearchUsers looks up directory users by name or email.
func (h *ConversationHandler) SearchUsers(c *gin.Context) {
	users, err := h.svc.SearchUsers(c.Request.Context(), currentUserID(c), c.Query("q"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Status is the unread-total heartbeat.
func (h *ConversationHandler) Status(c *gin.Context) {
	status, err := h.svc.Status(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
