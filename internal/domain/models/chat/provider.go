package chat

import (
	"time"
)

// Provider is an OpenAI-compatible endpoint registered by a user.
// APIHost is the base URL; requests go to {APIHost}/v1/chat/completions.
type Provider struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	APIHost   string    `json:"api_host" db:"api_host"`
	APIKey    string    `json:"api_key" db:"api_key"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Model is a model name under a provider, passed verbatim to the provider API.
type Model struct {
	ID         string `json:"id" db:"id"`
	ProviderID string `json:"provider_id" db:"provider_id"`
	Name       string `json:"name" db:"name"`
}

// Endpoint is the resolved connection target for one turn submission.
type Endpoint struct {
	APIHost   string
	APIKey    string
	ModelName string
}
