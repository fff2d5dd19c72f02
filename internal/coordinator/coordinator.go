package coordinator

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"chat-client/internal/apiclient"
	"chat-client/internal/cache"
	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/telemetry"
)

// API is the part of the backend client the coordinator reads and writes through.
type API interface {
	ListChats(ctx context.Context) ([]models.Chat, error)
	CreateChat(ctx context.Context, title string) (models.Chat, error)
	EditChat(ctx context.Context, chatID, title string) (models.Chat, error)
	DeleteChat(ctx context.Context, chatID string) (json.RawMessage, error)
	ListMessages(ctx context.Context, chatID string, page apiclient.Page) ([]models.Message, error)
	PostMessage(ctx context.Context, req models.PostMessageRequest) (models.Message, error)
}

// Session reports whether the client currently holds an authenticated session.
type Session interface {
	IsLoggedIn() bool
}

// Coordinator serves cached reads and runs mutations, invalidating the
// affected cache key only after the backend confirms the change.
type Coordinator struct {
	api     API
	cache   *cache.Cache
	session Session
	audit   *telemetry.AuditEmitter
	logger  logrus.FieldLogger

	mu       sync.Mutex
	creating int
	sending  map[string]int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithAuditEmitter publishes an audit event for every mutation attempt.
func WithAuditEmitter(emitter *telemetry.AuditEmitter) Option {
	return func(c *Coordinator) { c.audit = emitter }
}

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// New returns a Coordinator that reads through entities and writes through api.
func New(api API, entities *cache.Cache, session Session, opts ...Option) *Coordinator {
	c := &Coordinator{
		api:     api,
		cache:   entities,
		session: session,
		logger:  logrus.StandardLogger(),
		sending: make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chats returns the chat list, or an empty list without touching the network when logged out.
func (c *Coordinator) Chats(ctx context.Context) ([]models.Chat, error) {
	if !c.session.IsLoggedIn() {
		return []models.Chat{}, nil
	}
	chats, err := cache.ReadAs(ctx, c.cache, cache.ChatsKey(), c.api.ListChats)
	if err != nil {
		return nil, err
	}
	if chats == nil {
		return []models.Chat{}, nil
	}
	return slices.Clone(chats), nil
}

// Messages returns the first page of a chat's messages. An empty chat id reads nothing.
func (c *Coordinator) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	if chatID == "" {
		return []models.Message{}, nil
	}
	messages, err := cache.ReadAs(ctx, c.cache, cache.MessagesKey(chatID), func(ctx context.Context) ([]models.Message, error) {
		return c.api.ListMessages(ctx, chatID, apiclient.Page{Limit: apiclient.DefaultPageSize, Offset: 0})
	})
	if err != nil {
		return nil, err
	}
	if messages == nil {
		return []models.Message{}, nil
	}
	return slices.Clone(messages), nil
}

// CreateChat creates a chat and invalidates the chat list on success.
// Pending().CreatingChat is true while the call is in flight.
func (c *Coordinator) CreateChat(ctx context.Context, title string) (models.Chat, error) {
	c.track(&c.creating, 1)
	defer c.track(&c.creating, -1)

	var chat models.Chat
	err := c.mutate(ctx, "chat.create", cache.ChatsKey(), func(ctx context.Context) error {
		var err error
		chat, err = c.api.CreateChat(ctx, title)
		return err
	})
	return chat, err
}

// EditChat renames a chat and invalidates the chat list on success.
func (c *Coordinator) EditChat(ctx context.Context, chatID, title string) (models.Chat, error) {
	var chat models.Chat
	err := c.mutate(ctx, "chat.edit", cache.ChatsKey(), func(ctx context.Context) error {
		var err error
		chat, err = c.api.EditChat(ctx, chatID, title)
		return err
	})
	return chat, err
}

// DeleteChat deletes a chat and invalidates the chat list on success.
// The backend response body is returned as is.
func (c *Coordinator) DeleteChat(ctx context.Context, chatID string) (json.RawMessage, error) {
	var body json.RawMessage
	err := c.mutate(ctx, "chat.delete", cache.ChatsKey(), func(ctx context.Context) error {
		var err error
		body, err = c.api.DeleteChat(ctx, chatID)
		return err
	})
	return body, err
}

// PostMessage sends a message and invalidates that chat's messages on success.
// Pending().Sending(req.ChatID) is true while the call is in flight.
func (c *Coordinator) PostMessage(ctx context.Context, req models.PostMessageRequest) (models.Message, error) {
	c.trackSending(req.ChatID, 1)
	defer c.trackSending(req.ChatID, -1)

	var msg models.Message
	err := c.mutate(ctx, "message.post", cache.MessagesKey(req.ChatID), func(ctx context.Context) error {
		var err error
		msg, err = c.api.PostMessage(ctx, req)
		return err
	})
	return msg, err
}

// HandleSessionChange drops every cached entity once the session is no longer authenticated.
func (c *Coordinator) HandleSessionChange(loggedIn bool) {
	if loggedIn {
		return
	}
	c.cache.Purge()
	c.logger.Debug("entity cache purged after logout")
}

func (c *Coordinator) mutate(ctx context.Context, op string, key cache.Key, run func(context.Context) error) error {
	logger := c.logger.WithFields(logrus.Fields{"op": op, "key": key.String()})
	if err := run(ctx); err != nil {
		observability.IncMutation(op, "error")
		logger.WithError(err).Info("mutation failed")
		c.emit(ctx, telemetry.LevelWarn, op, key, "failed: "+apiclient.Detail(err))
		return err
	}

	c.cache.Invalidate(key)
	observability.IncMutation(op, "ok")
	logger.Debug("mutation applied")
	c.emit(ctx, telemetry.LevelInfo, op, key, "ok")
	return nil
}

func (c *Coordinator) emit(ctx context.Context, level, op string, key cache.Key, text string) {
	c.audit.Emit(ctx, telemetry.Audit{
		Level:     level,
		Action:    op,
		Text:      text,
		Key:       key.String(),
		RequestID: observability.RequestIDFromContext(ctx),
	})
}
