package chat

import (
	"context"

	chatModels "chatrelay/internal/domain/models/chat"
)

// SettingsRepository persists per-user default sampling parameters.
type SettingsRepository interface {
	// GetByUserID returns the user's settings, or nil (not an error) when no
	// row exists yet.
	GetByUserID(ctx context.Context, userID string) (*chatModels.Settings, error)

	// Upsert creates or replaces the user's settings row.
	Upsert(ctx context.Context, settings *chatModels.Settings) error
}
