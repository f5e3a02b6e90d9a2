package handler

import (
	"log/slog"
	"net/http"

	"chatrelay/internal/httputil"
	settingsSvc "chatrelay/internal/service/settings"
)

// SettingsHandler handles per-user chat settings HTTP requests
type SettingsHandler struct {
	service *settingsSvc.Service
	logger  *slog.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(service *settingsSvc.Service, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: service,
		logger:  logger,
	}
}

// GetSettings retrieves the caller's settings, creating defaults on first read
// GET /settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	settings, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, settings)
}

// UpdateSettings replaces the caller's settings
// PUT /settings
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req settingsSvc.UpdateRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	settings, err := h.service.Update(r.Context(), userID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, settings)
}
