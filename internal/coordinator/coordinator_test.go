package coordinator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/apiclient"
	"chat-client/internal/cache"
	"chat-client/internal/mocks"
	"chat-client/internal/models"
	"chat-client/internal/telemetry"
)

type fakeSession struct{ loggedIn bool }

func (s fakeSession) IsLoggedIn() bool { return s.loggedIn }

type invalidations struct {
	mu   sync.Mutex
	keys []string
}

func (r *invalidations) record(key cache.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key.String())
}

func (r *invalidations) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

func newCoordinator(t *testing.T, loggedIn bool) (*Coordinator, *mocks.APIClientMock, *cache.Cache, *invalidations) {
	t.Helper()
	api := new(mocks.APIClientMock)
	entities := cache.New()
	seen := &invalidations{}
	entities.Subscribe(seen.record)
	logger, _ := test.NewNullLogger()
	return New(api, entities, fakeSession{loggedIn: loggedIn}, WithLogger(logger)), api, entities, seen
}

func TestChatsLoggedOutSkipsNetwork(t *testing.T) {
	coord, api, _, _ := newCoordinator(t, false)

	chats, err := coord.Chats(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, chats)
	assert.Empty(t, chats)
	api.AssertNotCalled(t, "ListChats", mock.Anything)
}

func TestCreateThenListRefetches(t *testing.T) {
	coord, api, _, seen := newCoordinator(t, true)
	ctx := context.Background()

	api.On("ListChats", mock.Anything).Return([]models.Chat{{ChatID: "1", Title: "first"}}, nil).Once()
	api.On("CreateChat", mock.Anything, "second").Return(models.Chat{ChatID: "2", Title: "second"}, nil).Once()
	api.On("ListChats", mock.Anything).Return([]models.Chat{{ChatID: "1", Title: "first"}, {ChatID: "2", Title: "second"}}, nil).Once()

	before, err := coord.Chats(ctx)
	require.NoError(t, err)
	require.Len(t, before, 1)

	cached, err := coord.Chats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, cached)

	created, err := coord.CreateChat(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, "2", created.ChatID)
	assert.Equal(t, []string{"chats"}, seen.all())

	after, err := coord.Chats(ctx)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, "2", after[1].ChatID)
	api.AssertExpectations(t)
	api.AssertNumberOfCalls(t, "ListChats", 2)
}

func TestEditAndDeleteInvalidateChats(t *testing.T) {
	coord, api, _, seen := newCoordinator(t, true)
	ctx := context.Background()

	api.On("EditChat", mock.Anything, "1", "renamed").Return(models.Chat{ChatID: "1", Title: "renamed"}, nil).Once()
	api.On("DeleteChat", mock.Anything, "1").Return(json.RawMessage(`{"deleted":true}`), nil).Once()

	chat, err := coord.EditChat(ctx, "1", "renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed", chat.Title)

	body, err := coord.DeleteChat(ctx, "1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"deleted":true}`, string(body))

	assert.Equal(t, []string{"chats", "chats"}, seen.all())
}

func TestFailedMutationLeavesCacheUntouched(t *testing.T) {
	coord, api, entities, seen := newCoordinator(t, true)
	ctx := context.Background()
	failure := &apiclient.RequestFailed{Status: 400, StatusText: "Bad Request", Detail: "title too long"}

	api.On("ListChats", mock.Anything).Return([]models.Chat{{ChatID: "1"}}, nil).Once()
	api.On("CreateChat", mock.Anything, "x").Return(models.Chat{}, failure).Once()
	api.On("EditChat", mock.Anything, "1", "y").Return(models.Chat{}, failure).Once()
	api.On("DeleteChat", mock.Anything, "1").Return(nil, failure).Once()

	_, err := coord.Chats(ctx)
	require.NoError(t, err)
	before := entities.Snapshot(cache.ChatsKey())

	_, err = coord.CreateChat(ctx, "x")
	assert.Same(t, failure, err)
	_, err = coord.EditChat(ctx, "1", "y")
	assert.Same(t, failure, err)
	_, err = coord.DeleteChat(ctx, "1")
	assert.Same(t, failure, err)

	assert.Equal(t, before, entities.Snapshot(cache.ChatsKey()))
	assert.Empty(t, seen.all())

	_, err = coord.Chats(ctx)
	require.NoError(t, err)
	api.AssertNumberOfCalls(t, "ListChats", 1)
}

func TestPostMessageInvalidatesOnlyThatChat(t *testing.T) {
	coord, api, _, seen := newCoordinator(t, true)
	ctx := context.Background()
	req := models.PostMessageRequest{ChatID: "c1", Content: "hi"}

	api.On("PostMessage", mock.Anything, req).Return(models.Message{MessageID: "m1", ChatID: "c1"}, nil).Once()
	api.On("PostMessage", mock.Anything, models.PostMessageRequest{ChatID: "c2", Content: "no"}).Return(models.Message{}, assert.AnError).Once()

	msg, err := coord.PostMessage(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.MessageID)

	_, err = coord.PostMessage(ctx, models.PostMessageRequest{ChatID: "c2", Content: "no"})
	assert.ErrorIs(t, err, assert.AnError)

	assert.Equal(t, []string{"messages:c1"}, seen.all())
}

func TestMessagesReadsFirstPage(t *testing.T) {
	coord, api, _, _ := newCoordinator(t, true)
	ctx := context.Background()
	page := apiclient.Page{Limit: 20, Offset: 0}

	api.On("ListMessages", mock.Anything, "c1", page).Return([]models.Message{{MessageID: "m1"}}, nil).Twice()

	for i := 0; i < 2; i++ {
		messages, err := coord.Messages(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, messages, 1)
	}
	api.AssertExpectations(t)
}

func TestMessagesWithoutChatID(t *testing.T) {
	coord, api, _, _ := newCoordinator(t, true)

	messages, err := coord.Messages(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)
	api.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything, mock.Anything)
}

func TestChatsReturnsCopy(t *testing.T) {
	coord, api, _, _ := newCoordinator(t, true)
	ctx := context.Background()
	api.On("ListChats", mock.Anything).Return([]models.Chat{{ChatID: "1", Title: "a"}}, nil).Once()

	first, err := coord.Chats(ctx)
	require.NoError(t, err)
	first[0].Title = "changed"

	second, err := coord.Chats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", second[0].Title)
}

func TestPendingIndicators(t *testing.T) {
	coord, api, _, _ := newCoordinator(t, true)
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	req := models.PostMessageRequest{ChatID: "c1", Content: "hi"}

	api.On("CreateChat", mock.Anything, "t").Run(func(mock.Arguments) {
		started <- struct{}{}
		<-release
	}).Return(models.Chat{ChatID: "9"}, nil).Once()
	api.On("PostMessage", mock.Anything, req).Run(func(mock.Arguments) {
		started <- struct{}{}
		<-release
	}).Return(models.Message{MessageID: "m"}, nil).Once()

	assert.False(t, coord.Pending().CreatingChat)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = coord.CreateChat(ctx, "t")
	}()
	go func() {
		defer wg.Done()
		_, _ = coord.PostMessage(ctx, req)
	}()
	<-started
	<-started

	pending := coord.Pending()
	assert.True(t, pending.CreatingChat)
	assert.True(t, pending.Sending("c1"))
	assert.False(t, pending.Sending("c2"))

	close(release)
	wg.Wait()

	pending = coord.Pending()
	assert.False(t, pending.CreatingChat)
	assert.False(t, pending.Sending("c1"))
}

func TestPendingClearsOnFailure(t *testing.T) {
	coord, api, _, _ := newCoordinator(t, true)
	api.On("CreateChat", mock.Anything, "t").Return(models.Chat{}, assert.AnError).Once()

	_, err := coord.CreateChat(context.Background(), "t")
	require.Error(t, err)
	assert.False(t, coord.Pending().CreatingChat)
}

func TestSessionLossPurgesCache(t *testing.T) {
	coord, api, entities, _ := newCoordinator(t, true)
	api.On("ListChats", mock.Anything).Return([]models.Chat{{ChatID: "1"}}, nil).Once()

	_, err := coord.Chats(context.Background())
	require.NoError(t, err)
	require.Equal(t, cache.StateFresh, entities.Snapshot(cache.ChatsKey()).State)

	coord.HandleSessionChange(true)
	assert.Equal(t, cache.StateFresh, entities.Snapshot(cache.ChatsKey()).State)

	coord.HandleSessionChange(false)
	assert.Equal(t, cache.StateAbsent, entities.Snapshot(cache.ChatsKey()).State)
}

func TestMutationsAreAudited(t *testing.T) {
	api := new(mocks.APIClientMock)
	publisher := new(mocks.PublisherMock)
	logger, _ := test.NewNullLogger()
	emitter := telemetry.NewAuditEmitter(publisher, "audit", "chat-client", "test", logger)
	coord := New(api, cache.New(), fakeSession{loggedIn: true}, WithAuditEmitter(emitter), WithLogger(logger))

	api.On("CreateChat", mock.Anything, "t").Return(models.Chat{ChatID: "1"}, nil).Once()
	api.On("EditChat", mock.Anything, "1", "u").Return(models.Chat{}, &apiclient.RequestFailed{Detail: "nope"}).Once()
	publisher.On("Publish", mock.Anything, "audit", mock.Anything, mock.Anything).Return(nil).Twice()

	_, _ = coord.CreateChat(context.Background(), "t")
	_, _ = coord.EditChat(context.Background(), "1", "u")

	publisher.AssertExpectations(t)
	ok := publisher.Calls[0].Arguments.Get(2).(telemetry.AuditEnvelope)
	failed := publisher.Calls[1].Arguments.Get(2).(telemetry.AuditEnvelope)
	assert.Equal(t, "chat.create", ok.Payload.Action)
	assert.Equal(t, telemetry.LevelInfo, ok.Payload.Level)
	assert.Equal(t, "chat.edit", failed.Payload.Action)
	assert.Equal(t, telemetry.LevelWarn, failed.Payload.Level)
	assert.Equal(t, "failed: nope", failed.Payload.Text)
}
