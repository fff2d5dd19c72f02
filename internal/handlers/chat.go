package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/coordinator"
	"chat-client/internal/models"
)

// ChatHandler serves chats and messages through the coordinator.
type ChatHandler struct {
	coord *coordinator.Coordinator
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(coord *coordinator.Coordinator) *ChatHandler {
	return &ChatHandler{coord: coord}
}

type chatTitleRequest struct {
	Title string `json:"title"`
}

type postMessageRequest struct {
	Content        string  `json:"content"`
	Image          bool    `json:"image"`
	NegativePrompt *string `json:"negative_prompt"`
}

// ListChats returns the cached chat list and whether a create is in flight.
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.coord.Chats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chats":   chats,
		"pending": gin.H{"creating_chat": h.coord.Pending().CreatingChat},
	})
}

func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req chatTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.coord.CreateChat(c.Request.Context(), req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

func (h *ChatHandler) EditChat(c *gin.Context) {
	var req chatTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.coord.EditChat(c.Request.Context(), c.Param("chat_id"), req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// DeleteChat relays the backend's response body as is.
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	body, err := h.coord.DeleteChat(c.Request.Context(), c.Param("chat_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if len(body) == 0 {
		c.Status(http.StatusOK)
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	chatID := c.Param("chat_id")
	messages, err := h.coord.Messages(c.Request.Context(), chatID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"sending":  h.coord.Pending().Sending(chatID),
	})
}

func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.coord.PostMessage(c.Request.Context(), models.PostMessageRequest{
		ChatID:         c.Param("chat_id"),
		Content:        req.Content,
		Image:          req.Image,
		NegativePrompt: req.NegativePrompt,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
