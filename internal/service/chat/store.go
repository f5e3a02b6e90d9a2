package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"chatrelay/internal/domain"
	chatModels "chatrelay/internal/domain/models/chat"
	"chatrelay/internal/domain/repositories"
	chatRepo "chatrelay/internal/domain/repositories/chat"
)

// Store is the conversation store service: a durable, ordered log of turns
// per conversation with one mutable updated_at per conversation.
type Store struct {
	convRepo  chatRepo.ConversationRepository
	turnRepo  chatRepo.TurnRepository
	txManager repositories.TransactionManager
	logger    *slog.Logger
}

// NewStore creates a conversation store service
func NewStore(
	convRepo chatRepo.ConversationRepository,
	turnRepo chatRepo.TurnRepository,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) *Store {
	return &Store{
		convRepo:  convRepo,
		turnRepo:  turnRepo,
		txManager: txManager,
		logger:    logger,
	}
}

// CreateConversation creates a new conversation for the user
func (s *Store) CreateConversation(ctx context.Context, userID, title string) (*chatModels.Conversation, error) {
	title = strings.TrimSpace(title)
	if err := validation.Validate(title, validation.Required, validation.Length(1, 512)); err != nil {
		return nil, fmt.Errorf("%w: title: %v", domain.ErrValidation, err)
	}

	conv := &chatModels.Conversation{
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.convRepo.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}

	s.logger.Info("conversation created",
		"id", conv.ID,
		"user_id", userID,
	)

	return conv, nil
}

// GetConversation retrieves a conversation scoped to its owner
func (s *Store) GetConversation(ctx context.Context, conversationID, userID string) (*chatModels.Conversation, error) {
	return s.convRepo.GetConversation(ctx, conversationID, userID)
}

// ListConversations retrieves the user's conversations by recency
func (s *Store) ListConversations(ctx context.Context, userID string) ([]chatModels.Conversation, error) {
	return s.convRepo.ListConversations(ctx, userID)
}

// RenameConversation updates a conversation's title
func (s *Store) RenameConversation(ctx context.Context, conversationID, userID, title string) (*chatModels.Conversation, error) {
	title = strings.TrimSpace(title)
	if err := validation.Validate(title, validation.Required, validation.Length(1, 512)); err != nil {
		return nil, fmt.Errorf("%w: title: %v", domain.ErrValidation, err)
	}

	return s.convRepo.UpdateTitle(ctx, conversationID, userID, title)
}

// DeleteConversation removes a conversation and its turns
func (s *Store) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	if err := s.convRepo.DeleteConversation(ctx, conversationID, userID); err != nil {
		return err
	}

	s.logger.Info("conversation deleted",
		"id", conversationID,
		"user_id", userID,
	)

	return nil
}

// ListTurns returns the conversation's turns in causal order, after an
// ownership check.
func (s *Store) ListTurns(ctx context.Context, conversationID, userID string) ([]chatModels.Turn, error) {
	if _, err := s.convRepo.GetConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.turnRepo.ListTurns(ctx, conversationID)
}

// History returns the conversation's turns without an ownership check.
// Callers must have validated ownership already; used to build outbound
// provider requests.
func (s *Store) History(ctx context.Context, conversationID string) ([]chatModels.Turn, error) {
	return s.turnRepo.ListTurns(ctx, conversationID)
}

// AppendTurn persists one turn and bumps the conversation's updated_at to the
// turn's created_at, in a single short transaction. The transaction never
// spans a network call.
func (s *Store) AppendTurn(ctx context.Context, conversationID, sender, content string) (*chatModels.Turn, error) {
	turn := &chatModels.Turn{
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.turnRepo.CreateTurn(txCtx, turn); err != nil {
			return err
		}
		return s.convRepo.TouchUpdatedAt(txCtx, conversationID, turn.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	return turn, nil
}
