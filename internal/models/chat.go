package models

// Chat is a conversation owned by the backend. Only the title is mutable.
type Chat struct {
	ChatID    string `json:"chat_id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// ChatEvent is pushed through websockets when a cached collection changes.
type ChatEvent struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}
