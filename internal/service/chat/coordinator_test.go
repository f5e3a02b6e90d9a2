package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"chatrelay/internal/domain"
	chatModels "chatrelay/internal/domain/models/chat"
	"chatrelay/internal/llmclient"
)

const (
	convID  = "5b7c9a2e-8f13-4d6a-9c01-2e4f6a8b0c1d"
	provID  = "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d"
	modelID = "6f5e4d3c-2b1a-4098-8765-43210fedcba9"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeConversationStore struct {
	fakeTurnStore
	conversations map[string]string // conversation ID -> owner
}

func (s *fakeConversationStore) GetConversation(ctx context.Context, conversationID, userID string) (*chatModels.Conversation, error) {
	owner, ok := s.conversations[conversationID]
	if !ok || owner != userID {
		return nil, &domain.NotFoundError{Message: "history not found: " + conversationID}
	}
	return &chatModels.Conversation{ID: conversationID, UserID: userID}, nil
}

type fakeResolver struct {
	endpoints map[string]*chatModels.Endpoint // providerID+"/"+modelID
	calls     int
}

func (r *fakeResolver) Resolve(ctx context.Context, userID, providerID, modelID string) (*chatModels.Endpoint, error) {
	r.calls++
	ep, ok := r.endpoints[providerID+"/"+modelID]
	if !ok {
		return nil, &domain.NotFoundError{Message: "model provider not found: " + providerID}
	}
	return ep, nil
}

type fakeSettings struct {
	settings *chatModels.Settings
}

func (f *fakeSettings) Get(ctx context.Context, userID string) (*chatModels.Settings, error) {
	if f.settings != nil {
		return f.settings, nil
	}
	return chatModels.DefaultSettings(userID), nil
}

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []*llmclient.Request
}

func (c *fakeCompleter) Complete(ctx context.Context, req *llmclient.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func newTestCoordinator(store *fakeConversationStore, resolver *fakeResolver, settings *fakeSettings, completer *fakeCompleter, source *fakeFrameSource) *Coordinator {
	logger := testLogger()
	relay := NewRelay(source, store, logger)
	return NewCoordinator(store, resolver, settings, completer, relay, logger)
}

func validSubmit() *SubmitRequest {
	return &SubmitRequest{
		ConversationID: convID,
		UserID:         "user-1",
		Sender:         chatModels.SenderUser,
		Content:        "hello",
		ProviderID:     provID,
		ModelID:        modelID,
	}
}

func defaultFixtures() (*fakeConversationStore, *fakeResolver, *fakeSettings, *fakeCompleter, *fakeFrameSource) {
	store := &fakeConversationStore{
		conversations: map[string]string{convID: "user-1"},
	}
	resolver := &fakeResolver{
		endpoints: map[string]*chatModels.Endpoint{
			provID + "/" + modelID: {APIHost: "http://localhost", APIKey: "k", ModelName: "m"},
		},
	}
	settings := &fakeSettings{}
	completer := &fakeCompleter{reply: "Hello back"}
	source := &fakeFrameSource{lines: []string{deltaLine("Hello back"), "data: [DONE]"}}
	return store, resolver, settings, completer, source
}

// ============================================================================
// Submit behavior
// ============================================================================

func TestSubmit_ValidationFailureWritesNothing(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
	}{
		{"missing sender", func(r *SubmitRequest) { r.Sender = "" }},
		{"missing content", func(r *SubmitRequest) { r.Content = "" }},
		{"missing provider", func(r *SubmitRequest) { r.ProviderID = "" }},
		{"missing model", func(r *SubmitRequest) { r.ModelID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, resolver, settings, completer, source := defaultFixtures()
			coordinator := newTestCoordinator(store, resolver, settings, completer, source)

			req := validSubmit()
			tt.mutate(req)

			_, err := coordinator.Submit(context.Background(), req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			if len(store.snapshot()) != 0 {
				t.Error("invalid request must write zero turns")
			}
		})
	}
}

func TestSubmit_UnknownConversationWritesNothing(t *testing.T) {
	store, resolver, settings, completer, source := defaultFixtures()
	coordinator := newTestCoordinator(store, resolver, settings, completer, source)

	req := validSubmit()
	req.ConversationID = "9e1c8f5a-0000-4000-8000-000000000000"

	_, err := coordinator.Submit(context.Background(), req)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if len(store.snapshot()) != 0 {
		t.Error("unknown conversation must write zero turns")
	}
	if resolver.calls != 0 {
		t.Error("provider resolution must not happen for unknown conversations")
	}
}

func TestSubmit_UnownedProviderWritesNothing(t *testing.T) {
	store, resolver, settings, completer, source := defaultFixtures()
	coordinator := newTestCoordinator(store, resolver, settings, completer, source)

	req := validSubmit()
	req.ProviderID = "9e1c8f5a-1111-4111-8111-111111111111"

	_, err := coordinator.Submit(context.Background(), req)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if len(store.snapshot()) != 0 {
		t.Error("unresolvable provider must write zero turns")
	}
	if source.streamCalls() != 0 || len(completer.calls) != 0 {
		t.Error("upstream must not be invoked")
	}
}

func TestSubmit_BlockingPersistsBothTurns(t *testing.T) {
	store, resolver, settings, completer, source := defaultFixtures()
	coordinator := newTestCoordinator(store, resolver, settings, completer, source)

	req := validSubmit()
	blocking := false
	req.Stream = &blocking

	result, err := coordinator.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	if result.Streaming() {
		t.Fatal("stream=false must resolve to blocking mode")
	}
	if result.UserTurn == nil || result.UserTurn.Content != "hello" {
		t.Errorf("user turn = %+v", result.UserTurn)
	}
	if result.AssistantTurn == nil || result.AssistantTurn.Content != "Hello back" {
		t.Errorf("assistant turn = %+v", result.AssistantTurn)
	}

	turns := store.snapshot()
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Sender != chatModels.SenderUser || turns[1].Sender != chatModels.SenderAssistant {
		t.Errorf("turn order wrong: %v then %v", turns[0].Sender, turns[1].Sender)
	}
	if len(completer.calls) != 1 {
		t.Fatalf("upstream invoked %d times, want 1", len(completer.calls))
	}
	if source.streamCalls() != 0 {
		t.Error("streaming client must not be used in blocking mode")
	}
}

func TestSubmit_BlockingUpstreamFailureBecomesAssistantTurn(t *testing.T) {
	store, resolver, settings, completer, source := defaultFixtures()
	completer.err = &domain.UpstreamError{Description: "upstream returned status 500: boom"}
	coordinator := newTestCoordinator(store, resolver, settings, completer, source)

	req := validSubmit()
	blocking := false
	req.Stream = &blocking

	result, err := coordinator.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("upstream failure must not fail the request: %v", err)
	}

	want := "LLM call failed: upstream returned status 500: boom"
	if result.AssistantTurn == nil || result.AssistantTurn.Content != want {
		t.Errorf("assistant turn = %+v, want content %q", result.AssistantTurn, want)
	}

	turns := store.snapshot()
	if len(turns) != 2 {
		t.Fatalf("expected user + failure turn, got %d", len(turns))
	}
}

func TestSubmit_BlockingNonUpstreamErrorPropagates(t *testing.T) {
	store, resolver, settings, completer, source := defaultFixtures()
	completer.err = errors.New("programming error")
	coordinator := newTestCoordinator(store, resolver, settings, completer, source)

	req := validSubmit()
	blocking := false
	req.Stream = &blocking

	_, err := coordinator.Submit(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "programming error") {
		t.Fatalf("error = %v, want the raw failure", err)
	}
}

func TestSubmit_StreamingReturnsRelayHandle(t *testing.T) {
	store, resolver, settings, completer, source := defaultFixtures()
	coordinator := newTestCoordinator(store, resolver, settings, completer, source)

	// Default settings stream preference is true.
	result, err := coordinator.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	if !result.Streaming() {
		t.Fatal("default settings must resolve to streaming mode")
	}
	if result.UserTurn == nil {
		t.Error("user turn must be persisted before streaming starts")
	}

	drainFrames(t, result.Relay)
	waitDone(t, result.Relay)

	if result.Relay.AssistantTurn() == nil {
		t.Fatal("relay must persist the assistant turn")
	}
	if result.Relay.AssistantTurn().Content != "Hello back" {
		t.Errorf("assistant content = %q", result.Relay.AssistantTurn().Content)
	}
}

func TestSubmit_SettingsStreamPreferenceHonored(t *testing.T) {
	store, resolver, settings, completer, source := defaultFixtures()
	settings.settings = &chatModels.Settings{
		UserID:      "user-1",
		Temperature: 0.2,
		MaxTokens:   512,
		Stream:      false,
	}
	coordinator := newTestCoordinator(store, resolver, settings, completer, source)

	// No per-request override: the stored preference decides.
	result, err := coordinator.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if result.Streaming() {
		t.Fatal("stored stream=false must resolve to blocking mode")
	}

	if len(completer.calls) != 1 {
		t.Fatalf("upstream invoked %d times, want 1", len(completer.calls))
	}
	call := completer.calls[0]
	if call.Temperature != 0.2 || call.MaxTokens != 512 {
		t.Errorf("sampling = (%v, %v), want stored settings", call.Temperature, call.MaxTokens)
	}
}

func TestSubmit_RequestParamsOverrideSettings(t *testing.T) {
	store, resolver, settings, completer, source := defaultFixtures()
	coordinator := newTestCoordinator(store, resolver, settings, completer, source)

	req := validSubmit()
	blocking := false
	temp := 1.5
	tokens := 64
	req.Stream = &blocking
	req.Temperature = &temp
	req.MaxTokens = &tokens

	if _, err := coordinator.Submit(context.Background(), req); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	call := completer.calls[0]
	if call.Temperature != 1.5 || call.MaxTokens != 64 {
		t.Errorf("sampling = (%v, %v), want request overrides", call.Temperature, call.MaxTokens)
	}
	if call.Endpoint.ModelName != "m" {
		t.Errorf("endpoint not threaded through: %+v", call.Endpoint)
	}
}
