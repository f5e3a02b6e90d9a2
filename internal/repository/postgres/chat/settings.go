package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	chatModels "chatrelay/internal/domain/models/chat"
	chatRepo "chatrelay/internal/domain/repositories/chat"
	"chatrelay/internal/repository/postgres"
)

// PostgresSettingsRepository implements SettingsRepository using PostgreSQL
type PostgresSettingsRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewSettingsRepository creates a new PostgresSettingsRepository
func NewSettingsRepository(config *postgres.RepositoryConfig) chatRepo.SettingsRepository {
	return &PostgresSettingsRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// GetByUserID retrieves settings for a user.
// Returns nil (not an error) when no row exists yet.
func (r *PostgresSettingsRepository) GetByUserID(ctx context.Context, userID string) (*chatModels.Settings, error) {
	query := fmt.Sprintf(`
		SELECT user_id, temperature, max_tokens, stream, created_at, updated_at
		FROM %s
		WHERE user_id = $1
	`, r.tables.Settings)

	var settings chatModels.Settings
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, userID).Scan(
		&settings.UserID,
		&settings.Temperature,
		&settings.MaxTokens,
		&settings.Stream,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)

	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}

	return &settings, nil
}

// Upsert creates or replaces the user's settings row
func (r *PostgresSettingsRepository) Upsert(ctx context.Context, settings *chatModels.Settings) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, temperature, max_tokens, stream, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			temperature = EXCLUDED.temperature,
			max_tokens = EXCLUDED.max_tokens,
			stream = EXCLUDED.stream,
			updated_at = EXCLUDED.updated_at
		RETURNING user_id, temperature, max_tokens, stream, created_at, updated_at
	`, r.tables.Settings)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		settings.UserID,
		settings.Temperature,
		settings.MaxTokens,
		settings.Stream,
		settings.CreatedAt,
		settings.UpdatedAt,
	).Scan(
		&settings.UserID,
		&settings.Temperature,
		&settings.MaxTokens,
		&settings.Stream,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}

	return nil
}
