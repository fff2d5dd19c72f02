// Package apiclient provides an HTTP client for the chat backend API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

// DefaultPageSize is the message page size used when none is given.
const DefaultPageSize = 20

// Page selects a window of messages. The zero value means the first page.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Client is an HTTP client for the chat backend. It holds no session state of
// its own; cookies live in the CredentialHandle behind its transport.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      *CredentialHandle
	logger     logrus.FieldLogger
	tracer     trace.Tracer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport. Its cookie jar is replaced by the
// credential handle when one is configured.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithCredentials attaches the handle that stores the session cookies.
func WithCredentials(creds *CredentialHandle) Option {
	return func(c *Client) { c.creds = creds }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logrus.StandardLogger(),
		tracer:     otel.Tracer("chat-client/apiclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.creds != nil {
		hc := *c.httpClient
		hc.Jar = c.creds.Jar()
		c.httpClient = &hc
	}
	return c
}

// Credentials returns the credential handle, or nil.
func (c *Client) Credentials() *CredentialHandle {
	return c.creds
}

type titleRequest struct {
	Title string `json:"title"`
}

type editChatRequest struct {
	ChatID string `json:"chat_id"`
	Title  string `json:"title"`
}

type deleteChatRequest struct {
	ChatID string `json:"chat_id"`
}

type postMessageRequest struct {
	ChatID         string  `json:"chat_id"`
	Content        string  `json:"content"`
	Image          bool    `json:"image"`
	NegativePrompt *string `json:"negative_prompt,omitempty"`
}

// Login calls POST /auth/login. The backend sets the session cookie.
func (c *Client) Login(ctx context.Context, username, password string) (models.AuthResponse, error) {
	return c.authenticate(ctx, "login", "/auth/login", username, password)
}

// Signup calls POST /user/. The backend sets the same cookie as login.
func (c *Client) Signup(ctx context.Context, username, password string) (models.AuthResponse, error) {
	return c.authenticate(ctx, "signup", "/user/", username, password)
}

func (c *Client) authenticate(ctx context.Context, op, path, username, password string) (models.AuthResponse, error) {
	body, err := c.do(ctx, op, http.MethodPost, path, models.Credentials{Username: username, Password: password})
	if err != nil {
		return models.AuthResponse{}, err
	}
	var resp models.AuthResponse
	if err := decodeData(body, &resp); err != nil {
		return models.AuthResponse{}, errors.Wrapf(err, "decode %s response", op)
	}
	return resp, nil
}

// Logout calls POST /auth/logout. The backend clears the cookie; no body is expected.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, "logout", http.MethodPost, "/auth/logout", nil)
	return err
}

// Verify calls GET /auth/verify. Any 2xx means the session is valid.
func (c *Client) Verify(ctx context.Context) error {
	_, err := c.do(ctx, "verify", http.MethodGet, "/auth/verify", nil)
	return err
}

// ListChats calls GET /chat/ and unwraps data.chats.
func (c *Client) ListChats(ctx context.Context) ([]models.Chat, error) {
	body, err := c.do(ctx, "list_chats", http.MethodGet, "/chat/", nil)
	if err != nil {
		return nil, err
	}
	chats := []models.Chat{}
	res := gjson.GetBytes(body, "data.chats")
	if !res.Exists() || res.Type == gjson.Null {
		return chats, nil
	}
	if err := json.Unmarshal([]byte(res.Raw), &chats); err != nil {
		return nil, errors.Wrap(err, "decode list_chats response")
	}
	return chats, nil
}

// CreateChat calls POST /chat/.
func (c *Client) CreateChat(ctx context.Context, title string) (models.Chat, error) {
	return c.chatMutation(ctx, "create_chat", http.MethodPost, "/chat/", titleRequest{Title: title})
}

// EditChat calls PATCH /chat/title.
func (c *Client) EditChat(ctx context.Context, chatID, title string) (models.Chat, error) {
	return c.chatMutation(ctx, "edit_chat", http.MethodPatch, "/chat/title", editChatRequest{ChatID: chatID, Title: title})
}

func (c *Client) chatMutation(ctx context.Context, op, method, path string, payload any) (models.Chat, error) {
	body, err := c.do(ctx, op, method, path, payload)
	if err != nil {
		return models.Chat{}, err
	}
	var chat models.Chat
	if err := decodeData(body, &chat); err != nil {
		return models.Chat{}, errors.Wrapf(err, "decode %s response", op)
	}
	return chat, nil
}

// DeleteChat calls DELETE /chat/ and returns the backend's JSON body as is.
func (c *Client) DeleteChat(ctx context.Context, chatID string) (json.RawMessage, error) {
	body, err := c.do(ctx, "delete_chat", http.MethodDelete, "/chat/", deleteChatRequest{ChatID: chatID})
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, errors.New("decode delete_chat response: invalid json")
	}
	return json.RawMessage(body), nil
}

// ListMessages calls GET /message/chats/{chatID}/messages and unwraps data.
func (c *Client) ListMessages(ctx context.Context, chatID string, page Page) ([]models.Message, error) {
	page = page.normalized()
	path := fmt.Sprintf("/message/chats/%s/messages?limit=%d&offset=%d", url.PathEscape(chatID), page.Limit, page.Offset)
	body, err := c.do(ctx, "list_messages", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	messages := []models.Message{}
	res := gjson.GetBytes(body, "data")
	if !res.Exists() || res.Type == gjson.Null {
		return messages, nil
	}
	if err := json.Unmarshal([]byte(res.Raw), &messages); err != nil {
		return nil, errors.Wrap(err, "decode list_messages response")
	}
	return messages, nil
}

// PostMessage calls POST /message/. negative_prompt is only sent for image requests.
func (c *Client) PostMessage(ctx context.Context, req models.PostMessageRequest) (models.Message, error) {
	payload := postMessageRequest{
		ChatID:  req.ChatID,
		Content: req.Content,
		Image:   req.Image,
	}
	if req.Image {
		payload.NegativePrompt = req.NegativePrompt
	}

	body, err := c.do(ctx, "post_message", http.MethodPost, "/message/", payload)
	if err != nil {
		return models.Message{}, err
	}
	var msg models.Message
	if err := decodeData(body, &msg); err != nil {
		return models.Message{}, errors.Wrap(err, "decode post_message response")
	}
	return msg, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "api."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("api.operation", op),
		),
	)
	defer span.End()

	start := time.Now()
	body, err := c.roundTrip(ctx, op, method, path, payload)
	observability.ObserveAPIRequest(op, outcome(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Detail(err))
	}
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal %s request", op)
		}
		reqBody = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s request", op)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	requestID := observability.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set("X-Request-ID", requestID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))
	logger := c.logger.WithFields(logrus.Fields{"op": op, "request_id": requestID})

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrapf(ctxErr, "%s aborted", op)
		}
		logger.WithError(err).Warn("backend unreachable")
		return nil, &NetworkUnavailable{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkUnavailable{Op: op, Err: errors.Wrap(err, "read response body")}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		failed := newRequestFailed(op, resp, respBody)
		logger.WithFields(logrus.Fields{"status": resp.StatusCode, "detail": failed.Detail}).Info("backend request failed")
		return nil, failed
	}
	logger.WithField("status", resp.StatusCode).Debug("backend request ok")
	return respBody, nil
}

// decodeData decodes body into v, unwrapping the backend's {error, data}
// envelope when the body is one.
func decodeData(body []byte, v any) error {
	if isEnvelope(body) {
		body = []byte(gjson.GetBytes(body, "data").Raw)
	}
	return json.Unmarshal(body, v)
}

func isEnvelope(body []byte) bool {
	if !gjson.ValidBytes(body) {
		return false
	}
	root := gjson.ParseBytes(body)
	return root.IsObject() && root.Get("data").Exists() && root.Get("error").Exists()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsRequestFailure(err):
		var network *NetworkUnavailable
		if errors.As(err, &network) {
			return "network_error"
		}
		return "request_failed"
	default:
		return "error"
	}
}
