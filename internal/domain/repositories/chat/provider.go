package chat

import (
	"context"

	chatModels "chatrelay/internal/domain/models/chat"
)

// ProviderRepository persists providers and their models.
// Every lookup is owner-scoped; models are reachable only through a provider
// owned by the caller.
type ProviderRepository interface {
	CreateProvider(ctx context.Context, provider *chatModels.Provider) error
	GetProvider(ctx context.Context, providerID, userID string) (*chatModels.Provider, error)
	ListProviders(ctx context.Context, userID string) ([]chatModels.Provider, error)
	UpdateProvider(ctx context.Context, provider *chatModels.Provider) error
	DeleteProvider(ctx context.Context, providerID, userID string) error

	CreateModel(ctx context.Context, model *chatModels.Model) error
	// GetModel retrieves a model joined through its provider's owner.
	GetModel(ctx context.Context, modelID, userID string) (*chatModels.Model, error)
	ListModels(ctx context.Context, providerID, userID string) ([]chatModels.Model, error)
	DeleteModel(ctx context.Context, modelID, userID string) error
}
