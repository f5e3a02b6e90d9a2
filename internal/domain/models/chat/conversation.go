package chat

import (
	"time"
)

// Conversation is one chat history owned by a user.
// UpdatedAt is bumped to the created_at of every appended turn and is
// monotonically non-decreasing over the conversation's life.
type Conversation struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
