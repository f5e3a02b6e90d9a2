package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"chatrelay/internal/domain"
	chatModels "chatrelay/internal/domain/models/chat"
	"chatrelay/internal/llmclient"
)

// ConversationStore is the slice of the store the coordinator needs.
type ConversationStore interface {
	TurnStore
	GetConversation(ctx context.Context, conversationID, userID string) (*chatModels.Conversation, error)
}

// EndpointResolver resolves a (provider, model) pair to connection parameters,
// scoped to the owner. Implemented by the provider registry.
type EndpointResolver interface {
	Resolve(ctx context.Context, userID, providerID, modelID string) (*chatModels.Endpoint, error)
}

// SettingsSource supplies the owner's default sampling parameters.
type SettingsSource interface {
	Get(ctx context.Context, userID string) (*chatModels.Settings, error)
}

// CompletionClient is the blocking half of the completion client.
type CompletionClient interface {
	Complete(ctx context.Context, req *llmclient.Request) (string, error)
}

// SubmitRequest is one caller turn submission.
type SubmitRequest struct {
	ConversationID string `json:"-"`
	UserID         string `json:"-"`
	Sender         string `json:"sender"`
	Content        string `json:"content"`
	ProviderID     string `json:"provider_id"`
	ModelID        string `json:"model_id"`
	chatModels.SamplingParams
	// Stream overrides the owner's default streaming preference when set.
	Stream *bool `json:"stream,omitempty"`
}

// Validate checks the request's own fields; ownership checks happen against
// the store and registry.
func (req *SubmitRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Sender, validation.Required),
		validation.Field(&req.Content, validation.Required),
		validation.Field(&req.ProviderID, validation.Required, is.UUID),
		validation.Field(&req.ModelID, validation.Required, is.UUID),
	)
}

// SubmitResult is either a synchronously persisted assistant turn (blocking
// mode) or a live relay handle (streaming mode); exactly one is set.
type SubmitResult struct {
	UserTurn      *chatModels.Turn
	AssistantTurn *chatModels.Turn
	Relay         *Handle
}

// Streaming reports whether the result carries a live relay.
func (res *SubmitResult) Streaming() bool {
	return res.Relay != nil
}

// Coordinator receives a caller's new message, chooses streaming vs blocking
// mode, and drives the relay engine or the blocking completion client.
// Exactly one user turn and at most one assistant turn per invocation.
type Coordinator struct {
	store    ConversationStore
	registry EndpointResolver
	settings SettingsSource
	client   CompletionClient
	relay    *Relay
	logger   *slog.Logger
}

// NewCoordinator creates a turn coordinator
func NewCoordinator(
	store ConversationStore,
	registry EndpointResolver,
	settings SettingsSource,
	client CompletionClient,
	relay *Relay,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		store:    store,
		registry: registry,
		settings: settings,
		client:   client,
		relay:    relay,
		logger:   logger,
	}
}

// Submit handles one turn submission. Validation order is load-bearing:
// conversation ownership and provider/model resolution happen before the user
// turn is written, so a bad reference produces zero new rows.
func (c *Coordinator) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if _, err := c.store.GetConversation(ctx, req.ConversationID, req.UserID); err != nil {
		return nil, err
	}

	endpoint, err := c.registry.Resolve(ctx, req.UserID, req.ProviderID, req.ModelID)
	if err != nil {
		return nil, err
	}

	settings, err := c.settings.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	temperature, maxTokens := req.SamplingParams.Resolve(settings)
	streaming := settings.Stream
	if req.Stream != nil {
		streaming = *req.Stream
	}

	llmReq := &llmclient.Request{
		Endpoint:    *endpoint,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	if streaming {
		return c.submitStreaming(ctx, req, llmReq)
	}
	return c.submitBlocking(ctx, req, llmReq)
}

func (c *Coordinator) submitStreaming(ctx context.Context, req *SubmitRequest, llmReq *llmclient.Request) (*SubmitResult, error) {
	handle, err := c.relay.Run(ctx, &TurnContext{
		ConversationID: req.ConversationID,
		Sender:         req.Sender,
		Content:        req.Content,
		Request:        llmReq,
	})
	if err != nil {
		return nil, err
	}

	return &SubmitResult{UserTurn: handle.UserTurn(), Relay: handle}, nil
}

func (c *Coordinator) submitBlocking(ctx context.Context, req *SubmitRequest, llmReq *llmclient.Request) (*SubmitResult, error) {
	userTurn, err := c.store.AppendTurn(ctx, req.ConversationID, req.Sender, req.Content)
	if err != nil {
		return nil, err
	}

	history, err := c.store.History(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	llmReq.Messages = llmclient.MessagesFromTurns(history)

	reply, err := c.client.Complete(ctx, llmReq)
	if err != nil {
		var upstream *domain.UpstreamError
		if !errors.As(err, &upstream) {
			return nil, err
		}
		// Deliberate: upstream failures are visible in-conversation, not
		// surfaced as HTTP errors.
		reply = fmt.Sprintf("LLM call failed: %s", upstream.Description)
		c.logger.Warn("blocking completion failed",
			"conversation_id", req.ConversationID,
			"error", upstream.Description,
		)
	}

	assistantTurn, err := c.store.AppendTurn(ctx, req.ConversationID, chatModels.SenderAssistant, reply)
	if err != nil {
		return nil, err
	}

	return &SubmitResult{UserTurn: userTurn, AssistantTurn: assistantTurn}, nil
}
