package llmclient

import (
	"testing"

	chatModels "chatrelay/internal/domain/models/chat"
)

func TestNormalizeFrame(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "strips data prefix",
			input:    "data: {\"id\":\"1\"}",
			expected: "{\"id\":\"1\"}",
		},
		{
			name:     "strips prefix without space",
			input:    "data:{\"id\":\"1\"}",
			expected: "{\"id\":\"1\"}",
		},
		{
			name:     "done sentinel",
			input:    "data: [DONE]",
			expected: DoneSentinel,
		},
		{
			name:     "line without prefix passes through",
			input:    "{\"id\":\"1\"}",
			expected: "{\"id\":\"1\"}",
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "  data: [DONE]  ",
			expected: DoneSentinel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeFrame(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeFrame(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractDelta(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "extracts delta content",
			input:    `{"choices":[{"delta":{"content":"Hello"}}]}`,
			expected: "Hello",
		},
		{
			name:     "missing content yields empty",
			input:    `{"choices":[{"delta":{"role":"assistant"}}]}`,
			expected: "",
		},
		{
			name:     "empty choices yields empty",
			input:    `{"choices":[]}`,
			expected: "",
		},
		{
			name:     "malformed json swallowed",
			input:    `{"choices":`,
			expected: "",
		},
		{
			name:     "non-json garbage swallowed",
			input:    "not a frame",
			expected: "",
		},
		{
			name:     "whitespace content preserved",
			input:    `{"choices":[{"delta":{"content":" "}}]}`,
			expected: " ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractDelta(tt.input)
			if got != tt.expected {
				t.Errorf("ExtractDelta(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMessagesFromTurns(t *testing.T) {
	turns := []chatModels.Turn{
		{Sender: chatModels.SenderUser, Content: "hi"},
		{Sender: chatModels.SenderAssistant, Content: "hello"},
		{Sender: "system", Content: "unknown senders map to user"},
	}

	messages := MessagesFromTurns(turns)
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}

	expected := []Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "unknown senders map to user"},
	}
	for i, want := range expected {
		if messages[i] != want {
			t.Errorf("message %d = %+v, want %+v", i, messages[i], want)
		}
	}
}
