package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/apiclient"
	"chat-client/internal/session"
	"chat-client/internal/telemetry"
)

// SessionHandler exposes the session state and the auth operations.
type SessionHandler struct {
	state    *session.State
	identity session.IdentityFunc
	audit    *telemetry.AuditEmitter
}

// NewSessionHandler builds a SessionHandler.
func NewSessionHandler(state *session.State, identity session.IdentityFunc, audit *telemetry.AuditEmitter) *SessionHandler {
	return &SessionHandler{state: state, identity: identity, audit: audit}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Status reports whether the client is logged in and, if the cookie decodes, who as.
func (h *SessionHandler) Status(c *gin.Context) {
	resp := gin.H{"logged_in": h.state.IsLoggedIn()}
	if h.identity != nil {
		if identity, ok := h.identity(); ok {
			resp["identity"] = identity
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionHandler) Probe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logged_in": h.state.Probe(c.Request.Context())})
}

func (h *SessionHandler) Login(c *gin.Context) {
	h.authenticate(c, "session.login", h.state.Login)
}

func (h *SessionHandler) Signup(c *gin.Context) {
	h.authenticate(c, "session.signup", h.state.Signup)
}

func (h *SessionHandler) authenticate(c *gin.Context, action string, run func(ctx context.Context, username, password string) error) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := run(c.Request.Context(), req.Username, req.Password); err != nil {
		h.emit(c, telemetry.LevelWarn, action, "failed: "+apiclient.Detail(err))
		respondError(c, err)
		return
	}

	h.emit(c, telemetry.LevelInfo, action, "ok")
	c.JSON(http.StatusOK, gin.H{"logged_in": true})
}

// Logout always ends the local session. A backend failure is reported as a warning.
func (h *SessionHandler) Logout(c *gin.Context) {
	userID := userIDFromIdentity(h.identity)
	resp := gin.H{"logged_in": false}
	if err := h.state.Logout(c.Request.Context()); err != nil {
		resp["warning"] = apiclient.Detail(err)
		h.emitAs(c, userID, telemetry.LevelWarn, "session.logout", "backend logout failed: "+apiclient.Detail(err))
	} else {
		h.emitAs(c, userID, telemetry.LevelInfo, "session.logout", "ok")
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionHandler) emit(c *gin.Context, level, action, text string) {
	h.emitAs(c, userIDFromIdentity(h.identity), level, action, text)
}

func (h *SessionHandler) emitAs(c *gin.Context, userID, level, action, text string) {
	h.audit.Emit(c.Request.Context(), telemetry.Audit{
		Level:     level,
		Action:    action,
		Text:      text,
		RequestID: requestIDFromContext(c),
		UserID:    userID,
	})
}
