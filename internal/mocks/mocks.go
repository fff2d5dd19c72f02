package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/apiclient"
	"chat-client/internal/models"
)

// APIClientMock stands in for the backend API client.
type APIClientMock struct {
	mock.Mock
}

func (m *APIClientMock) Login(ctx context.Context, username, password string) (models.AuthResponse, error) {
	args := m.Called(ctx, username, password)
	var resp models.AuthResponse
	if val := args.Get(0); val != nil {
		resp = val.(models.AuthResponse)
	}
	return resp, args.Error(1)
}

func (m *APIClientMock) Signup(ctx context.Context, username, password string) (models.AuthResponse, error) {
	args := m.Called(ctx, username, password)
	var resp models.AuthResponse
	if val := args.Get(0); val != nil {
		resp = val.(models.AuthResponse)
	}
	return resp, args.Error(1)
}

func (m *APIClientMock) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *APIClientMock) Verify(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *APIClientMock) ListChats(ctx context.Context) ([]models.Chat, error) {
	args := m.Called(ctx)
	var list []models.Chat
	if val := args.Get(0); val != nil {
		list = val.([]models.Chat)
	}
	return list, args.Error(1)
}

func (m *APIClientMock) CreateChat(ctx context.Context, title string) (models.Chat, error) {
	args := m.Called(ctx, title)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *APIClientMock) EditChat(ctx context.Context, chatID, title string) (models.Chat, error) {
	args := m.Called(ctx, chatID, title)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *APIClientMock) DeleteChat(ctx context.Context, chatID string) (json.RawMessage, error) {
	args := m.Called(ctx, chatID)
	var body json.RawMessage
	if val := args.Get(0); val != nil {
		body = val.(json.RawMessage)
	}
	return body, args.Error(1)
}

func (m *APIClientMock) ListMessages(ctx context.Context, chatID string, page apiclient.Page) ([]models.Message, error) {
	args := m.Called(ctx, chatID, page)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *APIClientMock) PostMessage(ctx context.Context, req models.PostMessageRequest) (models.Message, error) {
	args := m.Called(ctx, req)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}
