package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/cache"
	"chat-client/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, entities *cache.Cache, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), telemetry.Audit{
			Action:    "debug.audit_test",
			Text:      "audit test",
			RequestID: requestIDFromContext(c),
		})
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/cache", func(c *gin.Context) {
		key, ok := cache.ParseKey(c.Query("key"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cache key"})
			return
		}
		entry := entities.Snapshot(key)
		c.JSON(http.StatusOK, gin.H{
			"key":        entry.Key.String(),
			"state":      entry.State,
			"fetched_at": entry.FetchedAt,
		})
	})
}
