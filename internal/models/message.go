package models

// MessageType distinguishes user-authored messages from generated ones.
type MessageType string

const (
	MessageTypeClient MessageType = "client"
	MessageTypeSystem MessageType = "system"
)

// Message represents a chat message. When Image is true, Content holds an image URL.
type Message struct {
	MessageID string      `json:"message_id"`
	ChatID    string      `json:"chat_id"`
	Content   string      `json:"content"`
	CreatedAt string      `json:"created_at"`
	Type      MessageType `json:"type"`
	Image     bool        `json:"image"`
}

// IsUser reports whether the message was written by the client.
func (m Message) IsUser() bool {
	return m.Type == MessageTypeClient
}

// PostMessageRequest carries the arguments of a message post.
type PostMessageRequest struct {
	ChatID         string
	Content        string
	Image          bool
	NegativePrompt *string
}
