package handler

import (
	"log/slog"
	"net/http"

	"chatrelay/internal/httputil"
	"chatrelay/internal/presets"
	providerSvc "chatrelay/internal/service/provider"
)

// ProviderHandler handles model provider and model HTTP requests
type ProviderHandler struct {
	registry *providerSvc.Registry
	presets  *presets.Registry
	logger   *slog.Logger
}

// NewProviderHandler creates a new provider handler
func NewProviderHandler(
	registry *providerSvc.Registry,
	presets *presets.Registry,
	logger *slog.Logger,
) *ProviderHandler {
	return &ProviderHandler{
		registry: registry,
		presets:  presets,
		logger:   logger,
	}
}

// CreateProvider registers a new model provider for the caller
// POST /model_providers
func (h *ProviderHandler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req providerSvc.ProviderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	provider, err := h.registry.CreateProvider(r.Context(), userID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, provider)
}

// ListProviders retrieves all of the caller's providers
// GET /model_providers
func (h *ProviderHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	providers, err := h.registry.ListProviders(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, providers)
}

// UpdateProvider updates a provider's connection details
// PUT /model_providers/{id}
func (h *ProviderHandler) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	providerID, ok := PathParam(w, r, "id", "Provider ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	var req providerSvc.ProviderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	provider, err := h.registry.UpdateProvider(r.Context(), providerID, userID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, provider)
}

// DeleteProvider removes a provider and its models
// DELETE /model_providers/{id}
func (h *ProviderHandler) DeleteProvider(w http.ResponseWriter, r *http.Request) {
	providerID, ok := PathParam(w, r, "id", "Provider ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	if err := h.registry.DeleteProvider(r.Context(), providerID, userID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListPresets returns the built-in provider catalog for client pickers
// GET /model_providers/presets
func (h *ProviderHandler) ListPresets(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.presets.List())
}

// CreateModel registers a model under one of the caller's providers
// POST /model_providers/models
func (h *ProviderHandler) CreateModel(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req providerSvc.ModelRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	model, err := h.registry.CreateModel(r.Context(), userID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, model)
}

// ListModels retrieves the models of one of the caller's providers
// GET /model_providers/models?provider_id=:id
func (h *ProviderHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	providerID := r.URL.Query().Get("provider_id")
	if providerID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "provider_id query parameter is required")
		return
	}

	models, err := h.registry.ListModels(r.Context(), providerID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, models)
}

// DeleteModel removes a model
// DELETE /model_providers/models/{id}
func (h *ProviderHandler) DeleteModel(w http.ResponseWriter, r *http.Request) {
	modelID, ok := PathParam(w, r, "id", "Model ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	if err := h.registry.DeleteModel(r.Context(), modelID, userID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
