package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"messaging-service/internal/service"
)

// AttachmentHandler manages attachment upload and deletion.
type AttachmentHandler struct {
	svc *service.MessageService
	log zerolog.Logger
}

// NewAttachmentHandler builds an AttachmentHandler.
func NewAttachmentHandler(svc *service.MessageService, log zerolog.Logger) *AttachmentHandler {
	return &AttachmentHandler{svc: svc, log: log.With().Str("component", "attachment-handler").Logger()}
}

// Upload accepts a multipart file with an optional caption and parent_id and
// appends the carrying message.
func (h *AttachmentHandler) Upload(c *gin.Context) {
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer file.Close()

	var caption *string
	if v := c.PostForm("caption"); v != "" {
		caption = &v
	}
	var parentID *int64
	if v := c.PostForm("parent_id"); v != "" {
		id, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parent_id"})
			return
		}
		parentID = &id
	}

	up := service.Upload{
		Reader:   file,
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Mime:     fileHeader.Header.Get("Content-Type"),
	}

	view, err := h.svc.SendAttachment(c.Request.Context(), currentUserID(c), conversationID, up, caption, parentID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": view})
}

// Delete removes one attachment from the caller's own message.
func (h *AttachmentHandler) Delete(c *gin.Context) {
	attachmentID, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := h.svc.DeleteAttachment(c.Request.Context(), currentUserID(c), attachmentID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
