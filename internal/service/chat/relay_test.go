package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"chatrelay/internal/domain"
	chatModels "chatrelay/internal/domain/models/chat"
	"chatrelay/internal/llmclient"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeTurnStore struct {
	mu      sync.Mutex
	turns   []chatModels.Turn
	nextID  int
	failAll bool
}

func (s *fakeTurnStore) AppendTurn(ctx context.Context, conversationID, sender, content string) (*chatModels.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, &domain.NotFoundError{Message: "conversation not found: " + conversationID}
	}
	s.nextID++
	turn := chatModels.Turn{
		ID:             fmt.Sprintf("turn-%d", s.nextID),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	s.turns = append(s.turns, turn)
	return &turn, nil
}

func (s *fakeTurnStore) History(ctx context.Context, conversationID string) ([]chatModels.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chatModels.Turn, len(s.turns))
	copy(out, s.turns)
	return out, nil
}

func (s *fakeTurnStore) snapshot() []chatModels.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chatModels.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// fakeFrameSource yields a fixed sequence of raw lines, optionally followed by
// a transport error. It records cancellation.
type fakeFrameSource struct {
	lines   []string
	lineErr error
	openErr error

	mu       sync.Mutex
	canceled bool
	requests []*llmclient.Request
}

func (s *fakeFrameSource) Stream(ctx context.Context, req *llmclient.Request) (<-chan llmclient.StreamLine, context.CancelFunc, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.openErr != nil {
		return nil, nil, s.openErr
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan llmclient.StreamLine)
	go func() {
		defer close(out)
		for _, line := range s.lines {
			select {
			case out <- llmclient.StreamLine{Line: line}:
			case <-ctx.Done():
				return
			}
		}
		if s.lineErr != nil {
			select {
			case out <- llmclient.StreamLine{Err: s.lineErr}:
			case <-ctx.Done():
			}
		}
	}()

	wrapped := func() {
		s.mu.Lock()
		s.canceled = true
		s.mu.Unlock()
		cancel()
	}
	return out, wrapped, nil
}

func (s *fakeFrameSource) wasCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

func (s *fakeFrameSource) streamCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func deltaLine(content string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`, content)
}

func drainFrames(t *testing.T, h *Handle) []string {
	t.Helper()
	var frames []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case frame, ok := <-h.Frames():
			if !ok {
				return frames
			}
			frames = append(frames, frame)
		case <-timeout:
			t.Fatalf("timed out draining frames, got %d so far", len(frames))
		}
	}
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not finish")
	}
}

// ============================================================================
// Relay behavior
// ============================================================================

func TestRelay_ForwardsFramesAndPersistsReply(t *testing.T) {
	store := &fakeTurnStore{}
	source := &fakeFrameSource{
		lines: []string{
			deltaLine("Hi"),
			deltaLine(" there"),
			"data: [DONE]",
		},
	}
	relay := NewRelay(source, store, testLogger())

	h, err := relay.Run(context.Background(), &TurnContext{
		ConversationID: "conv-1",
		Sender:         chatModels.SenderUser,
		Content:        "hello",
		Request:        &llmclient.Request{},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	frames := drainFrames(t, h)
	waitDone(t, h)

	// Delta frames forwarded verbatim (minus transport framing), plus the
	// terminal sentinel.
	want := []string{
		"data: " + `{"choices":[{"delta":{"content":"Hi"}}]}` + "\n\n",
		"data: " + `{"choices":[{"delta":{"content":" there"}}]}` + "\n\n",
		"data: [DONE]\n\n",
	}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d: %q", len(frames), len(want), frames)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("frame %d = %q, want %q", i, frames[i], want[i])
		}
	}

	turns := store.snapshot()
	if len(turns) != 2 {
		t.Fatalf("expected user + assistant turn, got %d", len(turns))
	}
	if turns[0].Sender != chatModels.SenderUser || turns[0].Content != "hello" {
		t.Errorf("user turn = %+v", turns[0])
	}
	if turns[1].Sender != chatModels.SenderAssistant || turns[1].Content != "Hi there" {
		t.Errorf("assistant turn = %+v", turns[1])
	}

	if h.UserTurn() == nil || h.UserTurn().Content != "hello" {
		t.Error("handle does not expose persisted user turn")
	}
	if h.AssistantTurn() == nil || h.AssistantTurn().Content != "Hi there" {
		t.Error("handle does not expose persisted assistant turn")
	}
	if source.streamCalls() != 1 {
		t.Errorf("upstream invoked %d times, want 1", source.streamCalls())
	}
}

func TestRelay_EmptyReplyDiscarded(t *testing.T) {
	store := &fakeTurnStore{}
	source := &fakeFrameSource{
		lines: []string{
			deltaLine(""),
			deltaLine("  "),
			"data: [DONE]",
		},
	}
	relay := NewRelay(source, store, testLogger())

	h, err := relay.Run(context.Background(), &TurnContext{
		ConversationID: "conv-1",
		Sender:         chatModels.SenderUser,
		Content:        "hello",
		Request:        &llmclient.Request{},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	drainFrames(t, h)
	waitDone(t, h)

	turns := store.snapshot()
	if len(turns) != 1 {
		t.Fatalf("expected only the user turn, got %d turns", len(turns))
	}
	if h.AssistantTurn() != nil {
		t.Error("empty reply must not produce an assistant turn")
	}
}

func TestRelay_MidStreamErrorPersistsPartial(t *testing.T) {
	store := &fakeTurnStore{}
	source := &fakeFrameSource{
		lines:   []string{deltaLine("partial")},
		lineErr: &domain.UpstreamError{Description: "connection reset"},
	}
	relay := NewRelay(source, store, testLogger())

	h, err := relay.Run(context.Background(), &TurnContext{
		ConversationID: "conv-1",
		Sender:         chatModels.SenderUser,
		Content:        "hello",
		Request:        &llmclient.Request{},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	frames := drainFrames(t, h)
	waitDone(t, h)

	if len(frames) != 3 {
		t.Fatalf("expected delta + error + [DONE], got %q", frames)
	}
	if !strings.Contains(frames[1], `"error"`) {
		t.Errorf("frame 1 = %q, want an error frame", frames[1])
	}
	if frames[2] != "data: [DONE]\n\n" {
		t.Errorf("last frame = %q, want the terminal sentinel", frames[2])
	}

	turns := store.snapshot()
	if len(turns) != 2 {
		t.Fatalf("partial text must be persisted, got %d turns", len(turns))
	}
	if turns[1].Content != "partial" {
		t.Errorf("assistant turn content = %q, want %q", turns[1].Content, "partial")
	}
}

func TestRelay_OpenErrorEmitsErrorAndDone(t *testing.T) {
	store := &fakeTurnStore{}
	source := &fakeFrameSource{
		openErr: &domain.UpstreamError{Description: "connect: connection refused"},
	}
	relay := NewRelay(source, store, testLogger())

	h, err := relay.Run(context.Background(), &TurnContext{
		ConversationID: "conv-1",
		Sender:         chatModels.SenderUser,
		Content:        "hello",
		Request:        &llmclient.Request{},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	frames := drainFrames(t, h)
	waitDone(t, h)

	if len(frames) != 2 {
		t.Fatalf("expected error + [DONE], got %q", frames)
	}
	if !strings.Contains(frames[0], "connection refused") {
		t.Errorf("frame 0 = %q, want the upstream failure", frames[0])
	}
	if frames[1] != "data: [DONE]\n\n" {
		t.Errorf("frame 1 = %q, want the terminal sentinel", frames[1])
	}

	// The user turn stays; no assistant text was accumulated.
	turns := store.snapshot()
	if len(turns) != 1 {
		t.Fatalf("expected only the user turn, got %d", len(turns))
	}
}

func TestRelay_CallerGonePersistsAnyway(t *testing.T) {
	store := &fakeTurnStore{}
	source := &fakeFrameSource{
		lines: []string{
			deltaLine("kept"),
			deltaLine(" text"),
			"data: [DONE]",
		},
	}
	relay := NewRelay(source, store, testLogger())

	h, err := relay.Run(context.Background(), &TurnContext{
		ConversationID: "conv-1",
		Sender:         chatModels.SenderUser,
		Content:        "hello",
		Request:        &llmclient.Request{},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// Read the first frame, then vanish.
	select {
	case <-h.Frames():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first frame")
	}
	h.CallerGone()
	h.CallerGone() // idempotent

	waitDone(t, h)

	if !source.wasCanceled() {
		t.Error("upstream call must be abandoned when the caller is gone")
	}

	turns := store.snapshot()
	if len(turns) != 2 {
		t.Fatalf("accumulated text must be persisted after disconnect, got %d turns", len(turns))
	}
	if turns[1].Content != "kept" && turns[1].Content != "kept text" {
		t.Errorf("assistant turn content = %q, want the accumulated prefix", turns[1].Content)
	}
}

func TestRelay_UserTurnAppendFailureStopsEverything(t *testing.T) {
	store := &fakeTurnStore{failAll: true}
	source := &fakeFrameSource{lines: []string{"data: [DONE]"}}
	relay := NewRelay(source, store, testLogger())

	_, err := relay.Run(context.Background(), &TurnContext{
		ConversationID: "missing",
		Sender:         chatModels.SenderUser,
		Content:        "hello",
		Request:        &llmclient.Request{},
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if source.streamCalls() != 0 {
		t.Error("upstream must not be invoked when the user turn fails to persist")
	}
}

func TestRelay_IncludesHistoryInRequest(t *testing.T) {
	store := &fakeTurnStore{}
	if _, err := store.AppendTurn(context.Background(), "conv-1", chatModels.SenderUser, "earlier"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AppendTurn(context.Background(), "conv-1", chatModels.SenderAssistant, "reply"); err != nil {
		t.Fatal(err)
	}

	source := &fakeFrameSource{lines: []string{"data: [DONE]"}}
	relay := NewRelay(source, store, testLogger())

	req := &llmclient.Request{}
	h, err := relay.Run(context.Background(), &TurnContext{
		ConversationID: "conv-1",
		Sender:         chatModels.SenderUser,
		Content:        "latest",
		Request:        req,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	drainFrames(t, h)
	waitDone(t, h)

	if len(req.Messages) != 3 {
		t.Fatalf("expected full history in request, got %d messages", len(req.Messages))
	}
	if req.Messages[2].Content != "latest" {
		t.Errorf("last message = %+v, want the new turn", req.Messages[2])
	}
	if req.Messages[1].Role != "assistant" {
		t.Errorf("history role mapping broken: %+v", req.Messages[1])
	}
}
