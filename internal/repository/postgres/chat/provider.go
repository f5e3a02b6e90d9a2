package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay/internal/domain"
	chatModels "chatrelay/internal/domain/models/chat"
	chatRepo "chatrelay/internal/domain/repositories/chat"
	"chatrelay/internal/repository/postgres"
)

// PostgresProviderRepository implements ProviderRepository using PostgreSQL
type PostgresProviderRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewProviderRepository creates a new PostgresProviderRepository
func NewProviderRepository(config *postgres.RepositoryConfig) chatRepo.ProviderRepository {
	return &PostgresProviderRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// CreateProvider inserts a new provider
func (r *PostgresProviderRepository) CreateProvider(ctx context.Context, provider *chatModels.Provider) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, name, api_host, api_key, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, r.tables.Providers)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		provider.UserID,
		provider.Name,
		provider.APIHost,
		provider.APIKey,
		provider.CreatedAt,
	).Scan(&provider.ID, &provider.CreatedAt)

	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}

	return nil
}

// GetProvider retrieves a provider by ID, scoped to its owner
func (r *PostgresProviderRepository) GetProvider(ctx context.Context, providerID, userID string) (*chatModels.Provider, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, name, api_host, api_key, created_at
		FROM %s
		WHERE id = $1 AND user_id = $2
	`, r.tables.Providers)

	var provider chatModels.Provider
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, providerID, userID).Scan(
		&provider.ID,
		&provider.UserID,
		&provider.Name,
		&provider.APIHost,
		&provider.APIKey,
		&provider.CreatedAt,
	)

	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("provider %s: %w", providerID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get provider: %w", err)
	}

	return &provider, nil
}

// ListProviders retrieves all providers owned by a user
func (r *PostgresProviderRepository) ListProviders(ctx context.Context, userID string) ([]chatModels.Provider, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, name, api_host, api_key, created_at
		FROM %s
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, r.tables.Providers)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var providers []chatModels.Provider
	for rows.Next() {
		var provider chatModels.Provider
		err := rows.Scan(
			&provider.ID,
			&provider.UserID,
			&provider.Name,
			&provider.APIHost,
			&provider.APIKey,
			&provider.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, provider)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}

	if providers == nil {
		providers = []chatModels.Provider{}
	}

	return providers, nil
}

// UpdateProvider updates a provider's mutable fields
func (r *PostgresProviderRepository) UpdateProvider(ctx context.Context, provider *chatModels.Provider) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, api_host = $2, api_key = $3
		WHERE id = $4 AND user_id = $5
	`, r.tables.Providers)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		provider.Name,
		provider.APIHost,
		provider.APIKey,
		provider.ID,
		provider.UserID,
	)

	if err != nil {
		return fmt.Errorf("update provider: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("provider %s: %w", provider.ID, domain.ErrNotFound)
	}

	return nil
}

// DeleteProvider removes a provider; its models cascade via FK
func (r *PostgresProviderRepository) DeleteProvider(ctx context.Context, providerID, userID string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = $1 AND user_id = $2
	`, r.tables.Providers)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, providerID, userID)
	if err != nil {
		return fmt.Errorf("delete provider: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("provider %s: %w", providerID, domain.ErrNotFound)
	}

	return nil
}

// CreateModel inserts a new model under a provider
func (r *PostgresProviderRepository) CreateModel(ctx context.Context, model *chatModels.Model) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (provider_id, name)
		VALUES ($1, $2)
		RETURNING id
	`, r.tables.Models)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		model.ProviderID,
		model.Name,
	).Scan(&model.ID)

	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("provider %s: %w", model.ProviderID, domain.ErrNotFound)
		}
		return fmt.Errorf("create model: %w", err)
	}

	return nil
}

// GetModel retrieves a model joined through its provider's owner.
// A model whose provider belongs to another user is not found.
func (r *PostgresProviderRepository) GetModel(ctx context.Context, modelID, userID string) (*chatModels.Model, error) {
	query := fmt.Sprintf(`
		SELECT m.id, m.provider_id, m.name
		FROM %s m
		JOIN %s p ON p.id = m.provider_id
		WHERE m.id = $1 AND p.user_id = $2
	`, r.tables.Models, r.tables.Providers)

	var model chatModels.Model
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, modelID, userID).Scan(
		&model.ID,
		&model.ProviderID,
		&model.Name,
	)

	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("model %s: %w", modelID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get model: %w", err)
	}

	return &model, nil
}

// ListModels retrieves all models of a provider owned by the user
func (r *PostgresProviderRepository) ListModels(ctx context.Context, providerID, userID string) ([]chatModels.Model, error) {
	query := fmt.Sprintf(`
		SELECT m.id, m.provider_id, m.name
		FROM %s m
		JOIN %s p ON p.id = m.provider_id
		WHERE m.provider_id = $1 AND p.user_id = $2
		ORDER BY m.name ASC
	`, r.tables.Models, r.tables.Providers)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, providerID, userID)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var models []chatModels.Model
	for rows.Next() {
		var model chatModels.Model
		if err := rows.Scan(&model.ID, &model.ProviderID, &model.Name); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		models = append(models, model)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate models: %w", err)
	}

	if models == nil {
		models = []chatModels.Model{}
	}

	return models, nil
}

// DeleteModel removes a model, checking ownership through the provider join
func (r *PostgresProviderRepository) DeleteModel(ctx context.Context, modelID, userID string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s m
		USING %s p
		WHERE m.id = $1 AND p.id = m.provider_id AND p.user_id = $2
	`, r.tables.Models, r.tables.Providers)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, modelID, userID)
	if err != nil {
		return fmt.Errorf("delete model: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("model %s: %w", modelID, domain.ErrNotFound)
	}

	return nil
}
