package chat

import (
	"context"

	chatModels "chatrelay/internal/domain/models/chat"
)

// TurnRepository persists turns. Turns are append-only.
type TurnRepository interface {
	// CreateTurn inserts a turn and fills its ID and created_at.
	CreateTurn(ctx context.Context, turn *chatModels.Turn) error

	// ListTurns returns all turns of a conversation ordered by
	// (created_at, id) ascending. Each call is a fresh query.
	ListTurns(ctx context.Context, conversationID string) ([]chatModels.Turn, error)
}
