// Package presets ships a small catalog of well-known OpenAI-compatible
// endpoints so the client can prefill the provider form. Purely advisory;
// providers are always stored per user.
package presets

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Preset describes one known OpenAI-compatible endpoint.
type Preset struct {
	Name    string   `yaml:"name" json:"name"`
	APIHost string   `yaml:"api_host" json:"api_host"`
	Models  []string `yaml:"models" json:"models"`
}

type catalog struct {
	Presets []Preset `yaml:"presets"`
}

// Registry holds the embedded preset catalog
type Registry struct {
	presets []Preset
	mu      sync.RWMutex
}

// NewRegistry loads the embedded catalog
func NewRegistry() (*Registry, error) {
	data, err := configFiles.ReadFile("config/providers.yaml")
	if err != nil {
		return nil, fmt.Errorf("read preset catalog: %w", err)
	}

	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal preset catalog: %w", err)
	}

	return &Registry{presets: c.Presets}, nil
}

// List returns all presets in catalog order
func (r *Registry) List() []Preset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Preset, len(r.presets))
	copy(out, r.presets)
	return out
}
