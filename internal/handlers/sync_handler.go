package handlers

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sitesync/internal/interfaces"
	"github.com/ternarybob/sitesync/internal/models"
)

// SyncHandler handles sync triggering and job status polling
type SyncHandler struct {
	syncService interfaces.SyncService
	logger      arbor.ILogger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncService interfaces.SyncService, logger arbor.ILogger) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		logger:      logger,
	}
}

// TriggerSyncHandler handles POST /api/sources/{id}/sync. A source with an
// active job yields 409 and the active job's ID so callers can poll it.
func (h *SyncHandler) TriggerSyncHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/sources/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Source ID is required")
		return
	}

	job, err := h.syncService.TriggerSync(r.Context(), id, models.SyncTypeManual, "api")
	if err != nil {
		if conflict, ok := models.AsSyncInProgress(err); ok {
			WriteJSON(w, http.StatusConflict, map[string]string{
				"status": "error",
				"error":  "Sync already in progress",
				"job_id": conflict.JobID,
			})
			return
		}
		if errors.Is(err, models.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Source not found")
			return
		}
		h.logger.Error().Err(err).Str("source_id", id).Msg("Failed to trigger sync")
		WriteError(w, http.StatusInternalServerError, "Failed to trigger sync")
		return
	}

	WriteJSON(w, http.StatusAccepted, job)
}

// GetJobHandler handles GET /api/sync-jobs/{jobId}
func (h *SyncHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobID := extractIDFromPath(r.URL.Path, "/api/sync-jobs/")
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.syncService.GetJob(jobID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}
