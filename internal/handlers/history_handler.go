package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sitesync/internal/interfaces"
	"github.com/ternarybob/sitesync/internal/models"
)

// HistoryHandler serves the sync run history for a source
type HistoryHandler struct {
	historyStorage interfaces.HistoryStorage
	logger         arbor.ILogger
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(historyStorage interfaces.HistoryStorage, logger arbor.ILogger) *HistoryHandler {
	return &HistoryHandler{
		historyStorage: historyStorage,
		logger:         logger,
	}
}

// ListHistoryHandler handles GET /api/sources/{id}/history, newest first.
func (h *HistoryHandler) ListHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/sources/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Source ID is required")
		return
	}

	page, limit := GetPaginationParams(r, 20, 100)

	entries, total, err := h.historyStorage.ListBySource(r.Context(), id, page, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("source_id", id).Msg("Failed to list sync history")
		WriteError(w, http.StatusInternalServerError, "Failed to list sync history")
		return
	}

	if entries == nil {
		entries = []*models.SyncHistoryEntry{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"history":    entries,
		"pagination": NewPaginationResponse(page, limit, total),
	})
}
