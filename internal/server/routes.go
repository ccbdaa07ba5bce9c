package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Source registry
	mux.HandleFunc("/api/sources", s.handleSourcesRoute)                               // GET (list), POST (create)
	mux.HandleFunc("/api/sources/test-connection", s.app.SourcesHandler.TestConnectionHandler) // POST
	mux.HandleFunc("/api/sources/", s.handleSourceRoutes)                              // /{id} and subpaths

	// API routes - Sync jobs
	mux.HandleFunc("/api/sync-jobs/", s.app.SyncHandler.GetJobHandler) // GET /{jobId}

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleSourcesRoute routes /api/sources requests (list and create)
func (s *Server) handleSourcesRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.SourcesHandler.ListSourcesHandler(w, r)
	case "POST":
		s.app.SourcesHandler.CreateSourceHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSourceRoutes routes /api/sources/{id} requests and subpaths:
// sync, urls, history, and toggle-sync.
func (s *Server) handleSourceRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// POST /api/sources/{id}/sync
	if strings.HasSuffix(path, "/sync") {
		s.app.SyncHandler.TriggerSyncHandler(w, r)
		return
	}

	// GET /api/sources/{id}/urls
	if strings.HasSuffix(path, "/urls") {
		s.app.LedgerHandler.ListURLsHandler(w, r)
		return
	}

	// GET /api/sources/{id}/history
	if strings.HasSuffix(path, "/history") {
		s.app.HistoryHandler.ListHistoryHandler(w, r)
		return
	}

	// PATCH /api/sources/{id}/toggle-sync
	if strings.HasSuffix(path, "/toggle-sync") {
		s.app.SourcesHandler.ToggleSyncHandler(w, r)
		return
	}

	// /api/sources/{id}
	switch r.Method {
	case "GET":
		s.app.SourcesHandler.GetSourceHandler(w, r)
	case "PUT":
		s.app.SourcesHandler.UpdateSourceHandler(w, r)
	case "DELETE":
		s.app.SourcesHandler.DeleteSourceHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
