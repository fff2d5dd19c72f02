package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"chat-client/internal/apiclient"
)

// respondError maps backend failures onto gateway responses.
func respondError(c *gin.Context, err error) {
	var failed *apiclient.RequestFailed
	var network *apiclient.NetworkUnavailable
	switch {
	case errors.As(err, &failed):
		status := failed.Status
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": failed.Detail})
	case errors.As(err, &network):
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend unavailable"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "backend timed out"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
