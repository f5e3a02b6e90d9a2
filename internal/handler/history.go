package handler

import (
	"log/slog"
	"net/http"
	"time"

	chatModels "chatrelay/internal/domain/models/chat"
	"chatrelay/internal/handler/sse"
	chatSvc "chatrelay/internal/service/chat"
	"chatrelay/internal/httputil"
)

// HistoryHandler handles conversation history HTTP requests
// Follows Clean Architecture: handlers only communicate with services, never repositories
type HistoryHandler struct {
	store       *chatSvc.Store
	coordinator *chatSvc.Coordinator
	sseConfig   *sse.Config
	logger      *slog.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(
	store *chatSvc.Store,
	coordinator *chatSvc.Coordinator,
	sseConfig *sse.Config,
	logger *slog.Logger,
) *HistoryHandler {
	return &HistoryHandler{
		store:       store,
		coordinator: coordinator,
		sseConfig:   sseConfig,
		logger:      logger,
	}
}

type titleRequest struct {
	Title string `json:"title"`
}

// CreateHistory creates a new conversation history
// POST /histories
func (h *HistoryHandler) CreateHistory(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req titleRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conversation, err := h.store.CreateConversation(r.Context(), userID, req.Title)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, conversation)
}

// ListHistories retrieves all of the caller's histories, most recently
// active first
// GET /histories
func (h *HistoryHandler) ListHistories(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	conversations, err := h.store.ListConversations(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, conversations)
}

// UpdateHistory renames a history
// PUT /histories/{id}
func (h *HistoryHandler) UpdateHistory(w http.ResponseWriter, r *http.Request) {
	historyID, ok := PathParam(w, r, "id", "History ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	var req titleRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conversation, err := h.store.RenameConversation(r.Context(), historyID, userID, req.Title)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, conversation)
}

// DeleteHistory deletes a history and all of its messages
// DELETE /histories/{id}
func (h *HistoryHandler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	historyID, ok := PathParam(w, r, "id", "History ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	if err := h.store.DeleteConversation(r.Context(), historyID, userID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetMessages retrieves a history's messages, or submits a new turn over SSE
// when stream=true
// GET /histories/{id}/messages
//
// The streaming variant exists because EventSource cannot POST: the turn
// content rides in query parameters instead of a JSON body.
func (h *HistoryHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	historyID, ok := PathParam(w, r, "id", "History ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)

	if !QueryBool(r, "stream", false) {
		turns, err := h.store.ListTurns(r.Context(), historyID, userID)
		if err != nil {
			handleError(w, err)
			return
		}
		httputil.RespondJSON(w, http.StatusOK, turns)
		return
	}

	stream := true
	req := &chatSvc.SubmitRequest{
		ConversationID: historyID,
		UserID:         userID,
		Sender:         r.URL.Query().Get("sender"),
		Content:        r.URL.Query().Get("content"),
		ProviderID:     r.URL.Query().Get("provider_id"),
		ModelID:        r.URL.Query().Get("model_id"),
		SamplingParams: chatModels.SamplingParams{
			Temperature: QueryFloat(r, "temperature"),
			MaxTokens:   QueryIntPtr(r, "max_tokens"),
		},
		Stream: &stream,
	}
	if req.Sender == "" {
		req.Sender = chatModels.SenderUser
	}

	result, err := h.coordinator.Submit(r.Context(), req)
	if err != nil {
		handleError(w, err)
		return
	}

	h.streamRelay(w, r, result.Relay)
}

// PostMessage submits a new turn. Responds over SSE when the resolved mode is
// streaming, otherwise returns the persisted assistant turn as JSON.
// POST /histories/{id}/messages
func (h *HistoryHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	historyID, ok := PathParam(w, r, "id", "History ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	var req chatSvc.SubmitRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ConversationID = historyID
	req.UserID = userID
	if req.Sender == "" {
		req.Sender = chatModels.SenderUser
	}

	result, err := h.coordinator.Submit(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	if result.Streaming() {
		h.streamRelay(w, r, result.Relay)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result.AssistantTurn)
}

// streamRelay pumps relay frames to the caller as SSE until the frame channel
// closes. A dead inbound connection marks the relay's caller gone; the relay
// still finalizes persistence on its own.
func (h *HistoryHandler) streamRelay(w http.ResponseWriter, r *http.Request, relay *chatSvc.Handle) {
	writer, err := sse.NewWriter(w)
	if err != nil {
		relay.CallerGone()
		httputil.RespondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	keepAlive := time.NewTicker(h.sseConfig.KeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case frame, ok := <-relay.Frames():
			if !ok {
				return
			}
			if err := writer.WriteFrame(frame); err != nil {
				h.logger.Debug("client write failed, abandoning stream", "error", err)
				relay.CallerGone()
				return
			}
			keepAlive.Reset(h.sseConfig.KeepAliveInterval)
		case <-r.Context().Done():
			relay.CallerGone()
			return
		case <-keepAlive.C:
			if err := writer.WriteKeepAlive(); err != nil {
				relay.CallerGone()
				return
			}
		}
	}
}

// Health reports service liveness
// GET /health
func (h *HistoryHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
