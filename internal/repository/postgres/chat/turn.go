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

// PostgresTurnRepository implements TurnRepository using PostgreSQL
type PostgresTurnRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewTurnRepository creates a new PostgresTurnRepository
func NewTurnRepository(config *postgres.RepositoryConfig) chatRepo.TurnRepository {
	return &PostgresTurnRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// CreateTurn inserts a new turn
func (r *PostgresTurnRepository) CreateTurn(ctx context.Context, turn *chatModels.Turn) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (conversation_id, sender, content, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, r.tables.Turns)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		turn.ConversationID,
		turn.Sender,
		turn.Content,
		turn.CreatedAt,
	).Scan(&turn.ID, &turn.CreatedAt)

	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("conversation %s: %w", turn.ConversationID, domain.ErrNotFound)
		}
		return fmt.Errorf("create turn: %w", err)
	}

	return nil
}

// ListTurns retrieves all turns of a conversation in causal order.
// Ties on created_at are broken by id so equal timestamps cannot invert
// insertion order.
func (r *PostgresTurnRepository) ListTurns(ctx context.Context, conversationID string) ([]chatModels.Turn, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, sender, content, created_at
		FROM %s
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, r.tables.Turns)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []chatModels.Turn
	for rows.Next() {
		var turn chatModels.Turn
		err := rows.Scan(
			&turn.ID,
			&turn.ConversationID,
			&turn.Sender,
			&turn.Content,
			&turn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	if turns == nil {
		turns = []chatModels.Turn{}
	}

	return turns, nil
}
