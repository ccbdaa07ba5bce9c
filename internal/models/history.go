package models

import (
	"time"
)

// SyncType identifies what started a run.
type SyncType string

const (
	SyncTypeManual    SyncType = "manual"
	SyncTypeScheduled SyncType = "scheduled"
)

// RunStatus is the terminal outcome recorded for a completed run.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
)

// DiscoveryStats summarizes the discovery and diff phases of a run.
type DiscoveryStats struct {
	TotalURLsInSitemap int `json:"total_urls_in_sitemap"`
	NewURLs            int `json:"new_urls"`
	UpdatedURLs        int `json:"updated_urls"`
	DeletedURLs        int `json:"deleted_urls"`
	UnchangedURLs      int `json:"unchanged_urls"`
}

// SyncStats summarizes the fetch phase of a run.
type SyncStats struct {
	URLsSynced int `json:"urls_synced"`
	URLsFailed int `json:"urls_failed"`
}

// FailedURL records a single per-URL failure inside a history entry.
type FailedURL struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// SyncHistoryEntry is the immutable, append-only record of one sync run
// (or one run that failed to start). Exactly one entry is written per
// terminal job state.
type SyncHistoryEntry struct {
	ID             string         `json:"id"`
	SourceID       string         `json:"source_id"`
	SyncType       SyncType       `json:"sync_type"`
	TriggeredBy    string         `json:"triggered_by,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	DurationMs     int64          `json:"duration_ms"`
	Status         RunStatus      `json:"status"`
	DiscoveryStats DiscoveryStats `json:"discovery_stats"`
	SyncStats      SyncStats      `json:"sync_stats"`
	FailedURLs     []FailedURL    `json:"failed_urls,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
}
