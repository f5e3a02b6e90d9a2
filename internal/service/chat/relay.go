package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	chatModels "chatrelay/internal/domain/models/chat"
	"chatrelay/internal/llmclient"
)

// TurnStore is the slice of the conversation store the relay needs.
type TurnStore interface {
	AppendTurn(ctx context.Context, conversationID, sender, content string) (*chatModels.Turn, error)
	History(ctx context.Context, conversationID string) ([]chatModels.Turn, error)
}

// FrameSource opens a streaming completion call and yields raw frame lines.
type FrameSource interface {
	Stream(ctx context.Context, req *llmclient.Request) (<-chan llmclient.StreamLine, context.CancelFunc, error)
}

// TurnContext is the explicit per-turn state passed through the relay's
// state machine: accumulated text, store handle, conversation identifiers.
// Nothing is captured in closures.
type TurnContext struct {
	ConversationID string
	Sender         string
	Content        string
	Request        *llmclient.Request

	accumulated strings.Builder
	userTurn    *chatModels.Turn
}

// Handle exposes one running relay to the transport layer: the live frame
// sequence, a disconnect signal, and the persistence outcome.
type Handle struct {
	frames     chan string
	callerGone chan struct{}
	done       chan struct{}

	// set before done is closed
	userTurn      *chatModels.Turn
	assistantTurn *chatModels.Turn
}

// Frames is the live caller-visible frame sequence. It is closed after the
// terminal [DONE] frame (or once the caller is marked gone).
func (h *Handle) Frames() <-chan string {
	return h.frames
}

// CallerGone tells the relay the inbound connection is dead: forwarding stops
// and the upstream call is abandoned, but finalization still runs. Safe to
// call multiple times.
func (h *Handle) CallerGone() {
	select {
	case <-h.callerGone:
	default:
		close(h.callerGone)
	}
}

// Done is closed once finalization (including persistence) has completed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// UserTurn returns the persisted user turn.
func (h *Handle) UserTurn() *chatModels.Turn {
	return h.userTurn
}

// AssistantTurn returns the persisted assistant turn, or nil when the
// accumulated reply was empty and discarded. Valid after Done is closed.
func (h *Handle) AssistantTurn() *chatModels.Turn {
	return h.assistantTurn
}

// Relay is the stream relay engine. It drives a single conversation turn
// through PERSIST_USER_TURN → STREAMING → FINALIZING, merging "forward frames
// to caller" with "accumulate text for persistence" over one upstream stream.
type Relay struct {
	source FrameSource
	store  TurnStore
	logger *slog.Logger
}

// NewRelay creates a stream relay engine
func NewRelay(source FrameSource, store TurnStore, logger *slog.Logger) *Relay {
	return &Relay{
		source: source,
		store:  store,
		logger: logger,
	}
}

// Run persists the caller's turn, then starts the streaming phase and returns
// a handle to the live frame sequence. Validation of conversation, provider
// and model ownership must have happened before Run is called; a failed
// append leaves no partial state.
//
// The upstream call and persistence run on a context detached from ctx so
// that an inbound disconnect cannot cancel them; ctx only bounds the
// synchronous user-turn append.
func (r *Relay) Run(ctx context.Context, tc *TurnContext) (*Handle, error) {
	userTurn, err := r.store.AppendTurn(ctx, tc.ConversationID, tc.Sender, tc.Content)
	if err != nil {
		return nil, err
	}
	tc.userTurn = userTurn

	history, err := r.store.History(ctx, tc.ConversationID)
	if err != nil {
		return nil, err
	}
	tc.Request.Messages = llmclient.MessagesFromTurns(history)

	h := &Handle{
		frames:     make(chan string, 1),
		callerGone: make(chan struct{}),
		done:       make(chan struct{}),
		userTurn:   userTurn,
	}

	go r.stream(tc, h)

	return h, nil
}

// stream is the STREAMING and FINALIZING phases. It owns the single upstream
// invocation; the caller-facing forward and the persistence accumulator share
// its one response stream.
func (r *Relay) stream(tc *TurnContext, h *Handle) {
	defer close(h.done)
	defer close(h.frames)

	// Detached from the inbound request lifecycle: persistence must run even
	// if the caller disconnects mid-stream.
	ctx := context.Background()

	lines, cancel, err := r.source.Stream(ctx, tc.Request)
	if err != nil {
		r.logger.Warn("upstream stream failed to open",
			"conversation_id", tc.ConversationID,
			"error", err,
		)
		r.forward(h, errorFrame(err))
		r.forward(h, doneFrame)
		r.finalize(ctx, tc, h)
		return
	}
	defer cancel()

consume:
	for {
		select {
		case line, ok := <-lines:
			switch {
			case !ok:
				// Upstream closed without a [DONE] sentinel; treat as end.
				break consume
			case line.Err != nil:
				r.logger.Warn("upstream stream failed mid-relay",
					"conversation_id", tc.ConversationID,
					"accumulated_bytes", tc.accumulated.Len(),
					"error", line.Err,
				)
				r.forward(h, errorFrame(line.Err))
				break consume
			default:
				residual := llmclient.NormalizeFrame(line.Line)
				if residual == llmclient.DoneSentinel {
					break consume
				}
				tc.accumulated.WriteString(llmclient.ExtractDelta(residual))
				if !r.forward(h, "data: "+residual+"\n\n") {
					// Caller disconnected: abandon upstream, keep what we have.
					cancel()
					break consume
				}
			}
		case <-h.callerGone:
			cancel()
			break consume
		}
	}

	// One unambiguous stream-end signal, even after an error frame.
	r.forward(h, doneFrame)

	r.finalize(ctx, tc, h)
}

// finalize persists the accumulated reply in its own transaction, after the
// caller-facing stream has ended. Empty replies are discarded; non-empty ones
// - including partial, error-truncated ones - are persisted.
func (r *Relay) finalize(ctx context.Context, tc *TurnContext, h *Handle) {
	text := strings.TrimSpace(tc.accumulated.String())
	if text == "" {
		r.logger.Info("relay discarded empty reply",
			"conversation_id", tc.ConversationID,
		)
		return
	}

	turn, err := r.store.AppendTurn(ctx, tc.ConversationID, chatModels.SenderAssistant, text)
	if err != nil {
		r.logger.Error("failed to persist assistant turn",
			"conversation_id", tc.ConversationID,
			"bytes", len(text),
			"error", err,
		)
		return
	}
	h.assistantTurn = turn

	r.logger.Info("relay persisted assistant turn",
		"conversation_id", tc.ConversationID,
		"turn_id", turn.ID,
		"bytes", len(text),
	)
}

// forward sends one frame to the caller without buffering beyond the channel
// slot. Returns false once the caller is gone.
func (r *Relay) forward(h *Handle, frame string) bool {
	select {
	case h.frames <- frame:
		return true
	case <-h.callerGone:
		return false
	}
}

const doneFrame = "data: [DONE]\n\n"

func errorFrame(err error) string {
	payload, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return "data: {\"error\": \"upstream failure\"}\n\n"
	}
	return fmt.Sprintf("data: %s\n\n", payload)
}
