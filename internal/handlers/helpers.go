package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"messaging-service/internal/middleware"
	"messaging-service/internal/repositories"
	"messaging-service/internal/service"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(middleware.UserIDKey)
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryInt64(c *gin.Context, name string) int64 {
	v, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func queryInt(c *gin.Context, name string) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return v
}

// writeError translates service and repository failures into the HTTP error
// contract: 403 for missing role or membership, 404 for unresolvable ids,
// 409 for duplicate membership, 422 for business-rule violations, 500 for
// the rest.
func writeError(c *gin.Context, log zerolog.Logger, err error) {
	var status int
	switch {
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, repositories.ErrNotMember):
		status = http.StatusForbidden
	case errors.Is(err, repositories.ErrConversationNotFound),
		errors.Is(err, repositories.ErrMessageNotFound),
		errors.Is(err, repositories.ErrAttachmentNotFound),
		errors.Is(err, repositories.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repositories.ErrAlreadyMember):
		status = http.StatusConflict
	case errors.Is(err, repositories.ErrMinimumMembers),
		errors.Is(err, repositories.ErrInvalidParent),
		errors.Is(err, service.ErrInsufficientMembers),
		errors.Is(err, service.ErrCannotRemoveCreator),
		errors.Is(err, service.ErrUnsupportedType),
		errors.Is(err, service.ErrFileTooLarge),
		errors.Is(err, service.ErrEmptyBody),
		errors.Is(err, service.ErrInvalidKind),
		errors.Is(err, service.ErrQueryTooShort):
		status = http.StatusUnprocessableEntity
	default:
		log.Error().Err(err).Str("request_id", requestIDFromContext(c)).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
