package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/mocks"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	logger, _ := test.NewNullLogger()
	emitter := NewAuditEmitter(publisher, "audit.chat_client", "chat-client", "test", logger)
	emitter.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	publisher.On("Publish", mock.Anything, "audit.chat_client", mock.Anything, map[string]string{"x-request-id": "req-1"}).Return(nil).Once()

	emitter.Emit(context.Background(), Audit{Action: "chat.create", Text: "chat created", Key: "chats", RequestID: "req-1", UserID: "u1"})

	publisher.AssertExpectations(t)
	envelope, ok := publisher.Calls[0].Arguments.Get(2).(AuditEnvelope)
	require.True(t, ok)
	assert.Equal(t, "audit_log", envelope.EventType)
	assert.Equal(t, "2024-05-01T12:00:00Z", envelope.OccurredAt)
	assert.Equal(t, LevelInfo, envelope.Payload.Level)
	assert.Equal(t, "chat.create", envelope.Payload.Action)
	assert.Equal(t, "chats", envelope.Payload.Key)
	require.NotNil(t, envelope.UserID)
	assert.Equal(t, "u1", *envelope.UserID)
}

func TestEmitWithoutUserOmitsIt(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit", "svc", "test", nil)
	publisher.On("Publish", mock.Anything, "audit", mock.Anything, map[string]string{}).Return(nil).Once()

	emitter.Emit(context.Background(), Audit{Level: LevelWarn, Action: "session.logout"})

	envelope := publisher.Calls[0].Arguments.Get(2).(AuditEnvelope)
	assert.Nil(t, envelope.UserID)
	assert.Equal(t, LevelWarn, envelope.Payload.Level)
}

func TestEmitPublishFailureIsLogged(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	logger, hook := test.NewNullLogger()
	emitter := NewAuditEmitter(publisher, "audit", "svc", "test", logger)
	publisher.On("Publish", mock.Anything, "audit", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	emitter.Emit(context.Background(), Audit{Action: "chat.delete"})

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "audit publish failed", hook.LastEntry().Message)
}

func TestNilEmitterIsNoop(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), Audit{Action: "x"})
	})
	assert.NotPanics(t, func() {
		NewAuditEmitter(nil, "audit", "svc", "test", nil).Emit(context.Background(), Audit{Action: "x"})
	})
}

func TestInitTracerWithoutEndpoint(t *testing.T) {
	logger, _ := test.NewNullLogger()
	shutdown, err := InitTracer(context.Background(), "", "svc", "test", logger)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Empty(t, TraceIDFromContext(context.Background()))
}
