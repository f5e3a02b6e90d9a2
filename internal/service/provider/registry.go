package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"chatrelay/internal/domain"
	chatModels "chatrelay/internal/domain/models/chat"
	chatRepo "chatrelay/internal/domain/repositories/chat"
)

// Registry resolves provider/model references to connection parameters and
// owns provider/model CRUD. Resolution has no side effects and must happen
// before any persistence or outbound network activity for a turn.
type Registry struct {
	repo   chatRepo.ProviderRepository
	logger *slog.Logger
}

// NewRegistry creates a provider registry
func NewRegistry(repo chatRepo.ProviderRepository, logger *slog.Logger) *Registry {
	return &Registry{
		repo:   repo,
		logger: logger,
	}
}

// Resolve maps a (provider, model) pair to an endpoint. Fails with NotFound
// when either id does not exist, is not owned by the user, or the model does
// not belong to the provider.
func (r *Registry) Resolve(ctx context.Context, userID, providerID, modelID string) (*chatModels.Endpoint, error) {
	provider, err := r.repo.GetProvider(ctx, providerID, userID)
	if err != nil {
		return nil, err
	}

	model, err := r.repo.GetModel(ctx, modelID, userID)
	if err != nil {
		return nil, err
	}

	if model.ProviderID != provider.ID {
		return nil, fmt.Errorf("model %s under provider %s: %w", modelID, providerID, domain.ErrNotFound)
	}

	return &chatModels.Endpoint{
		APIHost:   provider.APIHost,
		APIKey:    provider.APIKey,
		ModelName: model.Name,
	}, nil
}

// ProviderRequest carries provider create/update fields.
type ProviderRequest struct {
	Name    string `json:"name"`
	APIHost string `json:"api_host"`
	APIKey  string `json:"api_key"`
}

// Validate checks the request fields
func (req *ProviderRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 256)),
		validation.Field(&req.APIHost, validation.Required),
		validation.Field(&req.APIKey, validation.Required),
	)
}

// CreateProvider registers a new provider for the user
func (r *Registry) CreateProvider(ctx context.Context, userID string, req *ProviderRequest) (*chatModels.Provider, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	provider := &chatModels.Provider{
		UserID:    userID,
		Name:      strings.TrimSpace(req.Name),
		APIHost:   strings.TrimSpace(req.APIHost),
		APIKey:    req.APIKey,
		CreatedAt: time.Now().UTC(),
	}

	if err := r.repo.CreateProvider(ctx, provider); err != nil {
		return nil, err
	}

	r.logger.Info("provider created",
		"id", provider.ID,
		"user_id", userID,
	)

	return provider, nil
}

// ListProviders returns the user's providers
func (r *Registry) ListProviders(ctx context.Context, userID string) ([]chatModels.Provider, error) {
	return r.repo.ListProviders(ctx, userID)
}

// UpdateProvider replaces a provider's fields
func (r *Registry) UpdateProvider(ctx context.Context, providerID, userID string, req *ProviderRequest) (*chatModels.Provider, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	provider, err := r.repo.GetProvider(ctx, providerID, userID)
	if err != nil {
		return nil, err
	}

	provider.Name = strings.TrimSpace(req.Name)
	provider.APIHost = strings.TrimSpace(req.APIHost)
	provider.APIKey = req.APIKey

	if err := r.repo.UpdateProvider(ctx, provider); err != nil {
		return nil, err
	}

	return provider, nil
}

// DeleteProvider removes a provider and its models
func (r *Registry) DeleteProvider(ctx context.Context, providerID, userID string) error {
	if err := r.repo.DeleteProvider(ctx, providerID, userID); err != nil {
		return err
	}

	r.logger.Info("provider deleted",
		"id", providerID,
		"user_id", userID,
	)

	return nil
}

// ModelRequest carries model create fields.
type ModelRequest struct {
	ProviderID string `json:"provider_id"`
	Name       string `json:"name"`
}

// Validate checks the request fields
func (req *ModelRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.ProviderID, validation.Required),
		validation.Field(&req.Name, validation.Required, validation.Length(1, 256)),
	)
}

// CreateModel registers a model under a provider owned by the user
func (r *Registry) CreateModel(ctx context.Context, userID string, req *ModelRequest) (*chatModels.Model, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	// Ownership check before the insert; the FK alone would admit another
	// user's provider id.
	if _, err := r.repo.GetProvider(ctx, req.ProviderID, userID); err != nil {
		return nil, err
	}

	model := &chatModels.Model{
		ProviderID: req.ProviderID,
		Name:       strings.TrimSpace(req.Name),
	}

	if err := r.repo.CreateModel(ctx, model); err != nil {
		return nil, err
	}

	return model, nil
}

// ListModels returns the models of a provider owned by the user
func (r *Registry) ListModels(ctx context.Context, providerID, userID string) ([]chatModels.Model, error) {
	if _, err := r.repo.GetProvider(ctx, providerID, userID); err != nil {
		return nil, err
	}
	return r.repo.ListModels(ctx, providerID, userID)
}

// DeleteModel removes a model owned (through its provider) by the user
func (r *Registry) DeleteModel(ctx context.Context, modelID, userID string) error {
	return r.repo.DeleteModel(ctx, modelID, userID)
}
