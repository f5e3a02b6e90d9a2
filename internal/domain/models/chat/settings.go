package chat

import (
	"time"
)

// Default sampling parameters, used when a settings row does not exist yet
// and as the final fallback for per-request overrides.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
	DefaultStream      = true
)

// Settings is the per-user singleton of default sampling parameters.
// Created lazily on first read; at most one row per user.
type Settings struct {
	UserID      string    `json:"-" db:"user_id"`
	Temperature float64   `json:"temperature" db:"temperature"`
	MaxTokens   int       `json:"max_tokens" db:"max_tokens"`
	Stream      bool      `json:"stream" db:"stream"`
	CreatedAt   time.Time `json:"-" db:"created_at"`
	UpdatedAt   time.Time `json:"-" db:"updated_at"`
}

// DefaultSettings returns a Settings value with the fixed defaults.
func DefaultSettings(userID string) *Settings {
	now := time.Now().UTC()
	return &Settings{
		UserID:      userID,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Stream:      DefaultStream,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SamplingParams are the per-request sampling parameters sent to the provider.
// Nil fields fall back to the owner's Settings, then to the fixed defaults.
type SamplingParams struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Resolve fills unset fields from the given settings.
func (p SamplingParams) Resolve(s *Settings) (temperature float64, maxTokens int) {
	temperature = DefaultTemperature
	maxTokens = DefaultMaxTokens
	if s != nil {
		temperature = s.Temperature
		maxTokens = s.MaxTokens
	}
	if p.Temperature != nil {
		temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		maxTokens = *p.MaxTokens
	}
	return temperature, maxTokens
}
