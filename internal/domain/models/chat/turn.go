package chat

import (
	"time"
)

// Turn senders. Stored verbatim; SenderAssistant maps to the provider role
// "assistant" on outbound requests, everything else maps to "user".
const (
	SenderUser      = "user"
	SenderAssistant = "ai"
)

// Turn is a single message within a conversation. Turns are append-only:
// never updated or deleted individually (conversation deletion cascades).
type Turn struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"history_id" db:"conversation_id"`
	Sender         string    `json:"sender" db:"sender"`
	Content        string    `json:"content" db:"content"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
