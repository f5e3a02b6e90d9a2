package settings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"chatrelay/internal/domain"
	chatModels "chatrelay/internal/domain/models/chat"
	chatRepo "chatrelay/internal/domain/repositories/chat"
)

// Service manages the per-user settings singleton. Settings are created
// lazily with fixed defaults on first read; at most one row per user.
type Service struct {
	repo   chatRepo.SettingsRepository
	logger *slog.Logger
}

// NewService creates a settings service
func NewService(repo chatRepo.SettingsRepository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Get returns the user's settings, creating the row with defaults on first
// read.
func (s *Service) Get(ctx context.Context, userID string) (*chatModels.Settings, error) {
	settings, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if settings == nil {
		settings = chatModels.DefaultSettings(userID)
		if err := s.repo.Upsert(ctx, settings); err != nil {
			return nil, err
		}
		s.logger.Info("settings created with defaults", "user_id", userID)
	}

	return settings, nil
}

// UpdateRequest carries the full replacement settings.
type UpdateRequest struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Stream      bool    `json:"stream"`
}

// Validate checks the request fields
func (req *UpdateRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&req.MaxTokens, validation.Required, validation.Min(1)),
	)
}

// Update replaces the user's settings
func (s *Service) Update(ctx context.Context, userID string, req *UpdateRequest) (*chatModels.Settings, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	now := time.Now().UTC()
	settings := &chatModels.Settings{
		UserID:      userID,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, err
	}

	return settings, nil
}
