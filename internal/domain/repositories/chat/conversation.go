package chat

import (
	"context"
	"time"

	chatModels "chatrelay/internal/domain/models/chat"
)

// ConversationRepository persists conversations.
type ConversationRepository interface {
	// CreateConversation inserts a conversation and fills its ID and timestamps.
	CreateConversation(ctx context.Context, conv *chatModels.Conversation) error

	// GetConversation retrieves a conversation scoped to its owner.
	GetConversation(ctx context.Context, conversationID, userID string) (*chatModels.Conversation, error)

	// ListConversations returns the owner's conversations ordered by
	// updated_at descending. Rows with a NULL updated_at (historical data)
	// are normalized to created_at and the repair is persisted.
	ListConversations(ctx context.Context, userID string) ([]chatModels.Conversation, error)

	// UpdateTitle renames a conversation.
	UpdateTitle(ctx context.Context, conversationID, userID, title string) (*chatModels.Conversation, error)

	// TouchUpdatedAt bumps updated_at to the given time. GREATEST against the
	// stored value keeps it monotonically non-decreasing.
	TouchUpdatedAt(ctx context.Context, conversationID string, at time.Time) error

	// DeleteConversation removes a conversation; turns cascade.
	DeleteConversation(ctx context.Context, conversationID, userID string) error
}
