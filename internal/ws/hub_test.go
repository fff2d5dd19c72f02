package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/cache"
	"chat-client/internal/models"
)

type fakeConn struct {
	mu        sync.Mutex
	writes    [][]byte
	writeErr  error
	closed    bool
	deadlines []time.Time
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadlines = append(c.deadlines, t)
	return nil
}

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// stalledConn never finishes a write until released, like a browser tab
// that stopped reading.
type stalledConn struct {
	release chan struct{}
	closed  chan struct{}
	once    sync.Once
}

func newStalledConn() *stalledConn {
	return &stalledConn{
		release: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

func (c *stalledConn) WriteMessage(int, []byte) error {
	select {
	case <-c.release:
		return nil
	case <-c.closed:
		return assert.AnError
	}
}

func (c *stalledConn) SetWriteDeadline(time.Time) error { return nil }

func (c *stalledConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func newTestHub() *Hub {
	logger, _ := test.NewNullLogger()
	return NewHub(logger)
}

func TestHubAddAndRemoveClient(t *testing.T) {
	hub := newTestHub()
	conn := &fakeConn{}

	hub.AddClient(cache.ChatsKey(), conn, ConnInfo{})
	assert.Equal(t, 1, hub.ClientCount(cache.ChatsKey()))
	assert.Equal(t, 0, hub.ClientCount(cache.MessagesKey("c1")))

	hub.RemoveClient(cache.ChatsKey(), conn)
	assert.Equal(t, 0, hub.ClientCount(cache.ChatsKey()))
	assert.Empty(t, hub.rooms)
}

func TestBroadcastOnlyReachesKeySubscribers(t *testing.T) {
	hub := newTestHub()
	chats := &fakeConn{}
	messages := &fakeConn{}
	other := &fakeConn{}
	hub.AddClient(cache.ChatsKey(), chats, ConnInfo{})
	hub.AddClient(cache.MessagesKey("c1"), messages, ConnInfo{})
	hub.AddClient(cache.MessagesKey("c2"), other, ConnInfo{})

	hub.Broadcast(cache.MessagesKey("c1"))

	require.Eventually(t, func() bool { return len(messages.written()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, chats.written())
	assert.Empty(t, other.written())
	var event models.ChatEvent
	require.NoError(t, json.Unmarshal(messages.written()[0], &event))
	assert.Equal(t, models.ChatEvent{Type: "invalidated", Key: "messages:c1"}, event)
}

func TestBroadcastDropsBrokenConnections(t *testing.T) {
	hub := newTestHub()
	broken := &fakeConn{writeErr: assert.AnError}
	healthy := &fakeConn{}
	hub.AddClient(cache.ChatsKey(), broken, ConnInfo{ConnID: "x", ConnectedAt: time.Now()})
	hub.AddClient(cache.ChatsKey(), healthy, ConnInfo{})

	hub.Broadcast(cache.ChatsKey())

	require.Eventually(t, broken.isClosed, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return hub.ClientCount(cache.ChatsKey()) == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(healthy.written()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestWritesCarryDeadline(t *testing.T) {
	hub := newTestHub()
	conn := &fakeConn{}
	hub.AddClient(cache.ChatsKey(), conn, ConnInfo{})

	before := time.Now()
	hub.Broadcast(cache.ChatsKey())

	require.Eventually(t, func() bool { return len(conn.written()) == 1 }, time.Second, 5*time.Millisecond)
	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.deadlines, 1)
	assert.True(t, conn.deadlines[0].After(before))
}

func TestStalledSubscriberDoesNotBlockInvalidate(t *testing.T) {
	hub := newTestHub()
	entities := cache.New()
	entities.Subscribe(hub.Broadcast)
	stalled := newStalledConn()
	hub.AddClient(cache.ChatsKey(), stalled, ConnInfo{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < sendBuffer+2; i++ {
			entities.Invalidate(cache.ChatsKey())
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("invalidate waited on a stalled websocket subscriber")
	}

	require.Eventually(t, func() bool { return hub.ClientCount(cache.ChatsKey()) == 0 }, time.Second, 5*time.Millisecond)
	select {
	case <-stalled.closed:
	case <-time.After(time.Second):
		t.Fatal("stalled subscriber was not closed")
	}
}

func TestHubFollowsCacheInvalidations(t *testing.T) {
	hub := newTestHub()
	entities := cache.New()
	entities.Subscribe(hub.Broadcast)
	conn := &fakeConn{}
	hub.AddClient(cache.ChatsKey(), conn, ConnInfo{})

	entities.Invalidate(cache.ChatsKey())

	assert.Eventually(t, func() bool { return len(conn.written()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestCacheWebSocketHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := newTestHub()
	router := gin.New()
	router.GET("/ws/cache", NewCacheWebSocketHandler(hub, nil).Handle)
	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/cache?key=messages:c1"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	key := cache.MessagesKey("c1")
	require.Eventually(t, func() bool { return hub.ClientCount(key) == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(key)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var event models.ChatEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "messages:c1", event.Key)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return hub.ClientCount(key) == 0 }, time.Second, 5*time.Millisecond)
}

func TestCacheWebSocketHandlerRejectsUnknownKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws/cache", NewCacheWebSocketHandler(newTestHub(), nil).Handle)

	req := httptest.NewRequest(http.MethodGet, "/ws/cache?key=users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
