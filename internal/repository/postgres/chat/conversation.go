package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay/internal/domain"
	chatModels "chatrelay/internal/domain/models/chat"
	chatRepo "chatrelay/internal/domain/repositories/chat"
	"chatrelay/internal/repository/postgres"
)

// PostgresConversationRepository implements ConversationRepository using PostgreSQL
type PostgresConversationRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewConversationRepository creates a new PostgresConversationRepository
func NewConversationRepository(config *postgres.RepositoryConfig) chatRepo.ConversationRepository {
	return &PostgresConversationRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// CreateConversation inserts a new conversation
func (r *PostgresConversationRepository) CreateConversation(ctx context.Context, conv *chatModels.Conversation) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING id, created_at, updated_at
	`, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		conv.UserID,
		conv.Title,
		conv.CreatedAt,
	).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}

	return nil
}

// GetConversation retrieves a conversation by ID, scoped to its owner
func (r *PostgresConversationRepository) GetConversation(ctx context.Context, conversationID, userID string) (*chatModels.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, created_at, COALESCE(updated_at, created_at)
		FROM %s
		WHERE id = $1 AND user_id = $2
	`, r.tables.Conversations)

	var conv chatModels.Conversation
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, conversationID, userID).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)

	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	return &conv, nil
}

// ListConversations retrieves all conversations for a user, newest activity first.
// Historical rows with a NULL updated_at are repaired to created_at on the way
// out; the repair runs once because subsequent reads no longer match.
func (r *PostgresConversationRepository) ListConversations(ctx context.Context, userID string) ([]chatModels.Conversation, error) {
	executor := postgres.GetExecutor(ctx, r.pool)

	repair := fmt.Sprintf(`
		UPDATE %s SET updated_at = created_at
		WHERE user_id = $1 AND updated_at IS NULL
	`, r.tables.Conversations)
	if tag, err := executor.Exec(ctx, repair, userID); err != nil {
		return nil, fmt.Errorf("repair updated_at: %w", err)
	} else if tag.RowsAffected() > 0 {
		r.logger.Info("normalized null updated_at", "user_id", userID, "rows", tag.RowsAffected())
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, title, created_at, updated_at
		FROM %s
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, r.tables.Conversations)

	rows, err := executor.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []chatModels.Conversation
	for rows.Next() {
		var conv chatModels.Conversation
		err := rows.Scan(
			&conv.ID,
			&conv.UserID,
			&conv.Title,
			&conv.CreatedAt,
			&conv.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	// Return empty slice instead of nil
	if convs == nil {
		convs = []chatModels.Conversation{}
	}

	return convs, nil
}

// UpdateTitle renames a conversation
func (r *PostgresConversationRepository) UpdateTitle(ctx context.Context, conversationID, userID, title string) (*chatModels.Conversation, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1
		WHERE id = $2 AND user_id = $3
		RETURNING id, user_id, title, created_at, COALESCE(updated_at, created_at)
	`, r.tables.Conversations)

	var conv chatModels.Conversation
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, title, conversationID, userID).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)

	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("update conversation: %w", err)
	}

	return &conv, nil
}

// TouchUpdatedAt bumps updated_at to the given time. GREATEST keeps the value
// monotonically non-decreasing even if appends race.
func (r *PostgresConversationRepository) TouchUpdatedAt(ctx context.Context, conversationID string, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET updated_at = GREATEST(COALESCE(updated_at, created_at), $1)
		WHERE id = $2
	`, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, at, conversationID)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	return nil
}

// DeleteConversation removes a conversation; turns cascade via FK
func (r *PostgresConversationRepository) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = $1 AND user_id = $2
	`, r.tables.Conversations)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, conversationID, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	return nil
}
