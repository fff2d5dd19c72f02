package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-client/internal/middleware"
	"chat-client/internal/session"
)

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(middleware.RequestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader(middleware.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDContextKey, requestID)
	return requestID
}

func userIDFromIdentity(identity session.IdentityFunc) string {
	if identity == nil {
		return ""
	}
	if id, ok := identity(); ok {
		return id.UserID
	}
	return ""
}
