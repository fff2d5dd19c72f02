package handlers

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires the session, auth and chat endpoints. gate guards the
// routes that need an authenticated backend session.
func RegisterRoutes(router gin.IRouter, sessionHandler *SessionHandler, chatHandler *ChatHandler, gate gin.HandlerFunc) {
	router.GET("/session", sessionHandler.Status)
	router.POST("/session/probe", sessionHandler.Probe)

	router.POST("/auth/login", sessionHandler.Login)
	router.POST("/auth/signup", sessionHandler.Signup)
	router.POST("/auth/logout", sessionHandler.Logout)

	// Logged out reads answer with an empty list rather than 401.
	router.GET("/chats", chatHandler.ListChats)
	router.POST("/chats", gate, chatHandler.CreateChat)
	router.PATCH("/chats/:chat_id", gate, chatHandler.EditChat)
	router.DELETE("/chats/:chat_id", gate, chatHandler.DeleteChat)
	router.GET("/chats/:chat_id/messages", gate, chatHandler.ListMessages)
	router.POST("/chats/:chat_id/messages", gate, chatHandler.PostMessage)
}
