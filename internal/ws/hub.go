package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"chat-client/internal/cache"
	"chat-client/internal/models"
	"chat-client/internal/observability"
)

const (
	eventInvalidated = "invalidated"
	routingKey       = "ws_events.cache"
	kind             = "cache"
)

const (
	// sendBuffer is how many undelivered events a subscriber may queue
	// before it is dropped as too slow.
	sendBuffer = 16
	writeWait  = 10 * time.Second
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// ConnInfo identifies a subscriber in lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

type client struct {
	conn Conn
	info ConnInfo
	send chan []byte
}

// Hub keeps websocket subscribers grouped by the cache key they watch.
// Each subscriber has its own writer goroutine, so a stalled browser never
// blocks the invalidation that notifies it.
type Hub struct {
	rooms     map[string]map[Conn]*client
	mu        sync.RWMutex
	logger    logrus.FieldLogger
	writeWait time.Duration
}

// NewHub creates an empty hub.
func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		rooms:     make(map[string]map[Conn]*client),
		logger:    logger,
		writeWait: writeWait,
	}
}

// AddClient registers conn as a subscriber of key and starts its writer.
func (h *Hub) AddClient(key cache.Key, conn Conn, info ConnInfo) {
	c := &client{conn: conn, info: info, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	room, ok := h.rooms[key.String()]
	if !ok {
		room = make(map[Conn]*client)
		h.rooms[key.String()] = room
	}
	if old, exists := room[conn]; exists {
		close(old.send)
	}
	room[conn] = c
	h.mu.Unlock()

	go h.writePump(key, c)
}

// RemoveClient unregisters conn from key and stops its writer.
func (h *Hub) RemoveClient(key cache.Key, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(key, conn, nil)
}

// removeLocked drops conn from key. When only is set, conn is removed only if
// it is still registered as that client.
func (h *Hub) removeLocked(key cache.Key, conn Conn, only *client) bool {
	room, ok := h.rooms[key.String()]
	if !ok {
		return false
	}
	c, ok := room[conn]
	if !ok || (only != nil && c != only) {
		return false
	}
	delete(room, conn)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, key.String())
	}
	return true
}

func (h *Hub) ClientCount(key cache.Key) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[key.String()])
}

// Broadcast tells every subscriber of key to re-read it. It is registered as
// a cache invalidation listener and never waits on a connection.
func (h *Hub) Broadcast(key cache.Key) {
	payload, _ := json.Marshal(models.ChatEvent{Type: eventInvalidated, Key: key.String()})

	var slow []*client
	h.mu.RLock()
	for _, c := range h.rooms[key.String()] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.drop(key, c, "send buffer full")
	}
}

func (h *Hub) writePump(key cache.Key, c *client) {
	for payload := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(h.writeWait)); err != nil {
			h.drop(key, c, err.Error())
			return
		}
		if err := c.conn.WriteMessage(textMessage, payload); err != nil {
			h.drop(key, c, err.Error())
			return
		}
		observability.IncWSEvent(kind, eventInvalidated)
	}
}

// drop closes a subscriber that failed or fell behind.
func (h *Hub) drop(key cache.Key, c *client, reason string) {
	h.mu.Lock()
	removed := h.removeLocked(key, c.conn, c)
	h.mu.Unlock()
	if !removed {
		return
	}
	_ = c.conn.Close()
	h.logger.WithFields(logrus.Fields{"key": key.String(), "conn_id": c.info.ConnID, "reason": reason}).Warn("websocket subscriber dropped")
	h.publishWSEvent(key, c.info, "ws_error", reason)
}

func (h *Hub) publishWSEvent(key cache.Key, info ConnInfo, event, reason string) {
	envelope := observability.NewWSEnvelope(observability.WSEvent{
		WS: observability.WSDetails{
			Kind:       kind,
			Key:        key.String(),
			Event:      event,
			ConnID:     info.ConnID,
			DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
			Reason:     reason,
		},
		Identity: observability.WSIdentity{
			UserID:   info.UserID,
			DeviceID: info.DeviceID,
			IP:       info.IP,
		},
	})

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	if err := observability.PublishEvent(context.Background(), routingKey, envelope, headers); err != nil {
		h.logger.WithError(err).WithField("event", event).Debug("ws event publish failed")
	}
	observability.IncWSEvent(kind, event)
}
