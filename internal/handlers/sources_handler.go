package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sitesync/internal/models"
	"github.com/ternarybob/sitesync/internal/services/sources"
)

// SourcesHandler handles HTTP requests for source management
type SourcesHandler struct {
	sourceService *sources.Service
	logger        arbor.ILogger
}

// NewSourcesHandler creates a new SourcesHandler
func NewSourcesHandler(sourceService *sources.Service, logger arbor.ILogger) *SourcesHandler {
	return &SourcesHandler{
		sourceService: sourceService,
		logger:        logger,
	}
}

// ListSourcesHandler handles GET /api/sources
func (h *SourcesHandler) ListSourcesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	sourceList, err := h.sourceService.ListSources(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list sources")
		WriteError(w, http.StatusInternalServerError, "Failed to list sources")
		return
	}

	if sourceList == nil {
		sourceList = []*models.Source{}
	}

	WriteJSON(w, http.StatusOK, sourceList)
}

// CreateSourceHandler handles POST /api/sources
func (h *SourcesHandler) CreateSourceHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var source models.Source
	if err := json.NewDecoder(r.Body).Decode(&source); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.sourceService.CreateSource(r.Context(), &source); err != nil {
		h.logger.Warn().Err(err).Str("name", source.Name).Msg("Failed to create source")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, source)
}

// GetSourceHandler handles GET /api/sources/{id}
func (h *SourcesHandler) GetSourceHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/sources/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Source ID is required")
		return
	}

	source, err := h.sourceService.GetSource(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Source not found")
			return
		}
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to get source")
		WriteError(w, http.StatusInternalServerError, "Failed to get source")
		return
	}

	WriteJSON(w, http.StatusOK, source)
}

// UpdateSourceHandler handles PUT /api/sources/{id}
func (h *SourcesHandler) UpdateSourceHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "PUT") {
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/sources/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Source ID is required")
		return
	}

	var source models.Source
	if err := json.NewDecoder(r.Body).Decode(&source); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	source.ID = id

	if err := h.sourceService.UpdateSource(r.Context(), &source); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Source not found")
			return
		}
		h.logger.Warn().Err(err).Str("id", id).Msg("Failed to update source")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, source)
}

// DeleteSourceHandler handles DELETE /api/sources/{id}
func (h *SourcesHandler) DeleteSourceHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/sources/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Source ID is required")
		return
	}

	if err := h.sourceService.DeleteSource(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Source not found")
			return
		}
		if conflict, ok := models.AsSyncInProgress(err); ok {
			WriteJSON(w, http.StatusConflict, map[string]string{
				"status": "error",
				"error":  "Source has an active sync job",
				"job_id": conflict.JobID,
			})
			return
		}
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to delete source")
		WriteError(w, http.StatusInternalServerError, "Failed to delete source")
		return
	}

	WriteSuccess(w, "Source deleted")
}

// ToggleSyncHandler handles PATCH /api/sources/{id}/toggle-sync
func (h *SourcesHandler) ToggleSyncHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "PATCH") {
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/sources/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Source ID is required")
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	source, err := h.sourceService.ToggleSync(r.Context(), id, req.Enabled)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Source not found")
			return
		}
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to toggle sync")
		WriteError(w, http.StatusInternalServerError, "Failed to toggle sync")
		return
	}

	WriteJSON(w, http.StatusOK, source)
}

// TestConnectionHandler handles POST /api/sources/test-connection. It runs
// discovery against the given sitemap without creating anything.
func (h *SourcesHandler) TestConnectionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		SitemapURL    string `json:"sitemap_url"`
		BaseURLFilter string `json:"base_url_filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.SitemapURL == "" {
		WriteError(w, http.StatusBadRequest, "sitemap_url is required")
		return
	}

	count, err := h.sourceService.TestConnection(r.Context(), req.SitemapURL, req.BaseURLFilter)
	if err != nil {
		var discErr *models.DiscoveryError
		if errors.As(err, &discErr) {
			WriteJSON(w, http.StatusOK, map[string]interface{}{
				"success": false,
				"error":   discErr.Message,
				"kind":    string(discErr.Kind),
			})
			return
		}
		h.logger.Error().Err(err).Str("sitemap_url", req.SitemapURL).Msg("Connection test failed")
		WriteError(w, http.StatusInternalServerError, "Connection test failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"url_count": count,
	})
}
