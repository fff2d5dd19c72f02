package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-client/internal/cache"
	"chat-client/internal/observability"
	"chat-client/internal/session"
)

const textMessage = websocket.TextMessage

// CacheWebSocketHandler subscribes a UI consumer to invalidations of one cache key.
type CacheWebSocketHandler struct {
	hub      *Hub
	identity session.IdentityFunc
}

// NewCacheWebSocketHandler constructs a CacheWebSocketHandler.
func NewCacheWebSocketHandler(hub *Hub, identity session.IdentityFunc) *CacheWebSocketHandler {
	return &CacheWebSocketHandler{hub: hub, identity: identity}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the client under ?key=.
func (h *CacheWebSocketHandler) Handle(c *gin.Context) {
	key, ok := cache.ParseKey(c.Query("key"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cache key"})
		return
	}

	ctx, span := otel.Tracer("chat-client/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      uuid.NewString(),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	if h.identity != nil {
		if identity, ok := h.identity(); ok {
			info.UserID = identity.UserID
		}
	}
	h.hub.AddClient(key, conn, info)

	observability.IncWSActive(kind)
	h.hub.publishWSEvent(key, info, "ws_connect", "")

	// Clients never send; reading only detects the close.
	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveClient(key, conn)
			observability.DecWSActive(kind)
			h.hub.publishWSEvent(key, info, "ws_disconnect", closeReason)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.hub.publishWSEvent(key, info, "ws_error", closeReason)
				}
				return
			}
		}
	}()
}
