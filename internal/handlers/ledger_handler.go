package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sitesync/internal/interfaces"
	"github.com/ternarybob/sitesync/internal/models"
)

// LedgerHandler serves the per-URL sync state for a source
type LedgerHandler struct {
	ledgerStorage interfaces.LedgerStorage
	logger        arbor.ILogger
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledgerStorage interfaces.LedgerStorage, logger arbor.ILogger) *LedgerHandler {
	return &LedgerHandler{
		ledgerStorage: ledgerStorage,
		logger:        logger,
	}
}

// ListURLsHandler handles GET /api/sources/{id}/urls with optional
// status, search, page, and limit query parameters.
func (h *LedgerHandler) ListURLsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/sources/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Source ID is required")
		return
	}

	page, limit := GetPaginationParams(r, 50, 200)

	status := models.URLStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.URLStatusPending, models.URLStatusSynced, models.URLStatusFailed, models.URLStatusDeleted:
	default:
		WriteError(w, http.StatusBadRequest, "Invalid status filter")
		return
	}

	opts := &interfaces.LedgerListOptions{
		Status: status,
		Search: r.URL.Query().Get("search"),
		Page:   page,
		Limit:  limit,
	}

	entries, total, err := h.ledgerStorage.ListEntries(r.Context(), id, opts)
	if err != nil {
		h.logger.Error().Err(err).Str("source_id", id).Msg("Failed to list ledger entries")
		WriteError(w, http.StatusInternalServerError, "Failed to list URLs")
		return
	}

	if entries == nil {
		entries = []*models.LedgerEntry{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"urls":       entries,
		"pagination": NewPaginationResponse(page, limit, total),
	})
}
