package presets

import "testing"

func TestNewRegistry_LoadsCatalog(t *testing.T) {
	registry, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}

	presets := registry.List()
	if len(presets) == 0 {
		t.Fatal("embedded catalog is empty")
	}

	byName := make(map[string]Preset, len(presets))
	for _, preset := range presets {
		if preset.Name == "" {
			t.Error("preset with empty name")
		}
		if preset.APIHost == "" {
			t.Errorf("preset %q has no api host", preset.Name)
		}
		byName[preset.Name] = preset
	}

	openai, ok := byName["OpenAI"]
	if !ok {
		t.Fatal("catalog missing the OpenAI preset")
	}
	if openai.APIHost != "https://api.openai.com" {
		t.Errorf("OpenAI host = %q", openai.APIHost)
	}
	if len(openai.Models) == 0 {
		t.Error("OpenAI preset lists no models")
	}
}
