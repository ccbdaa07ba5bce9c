package models

import (
	"time"
)

// JobState represents the lifecycle state of a sync job.
type JobState string

const (
	JobStateWaiting   JobState = "waiting"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// JobPhase is the coarse phase the orchestrator is in while a job is active.
type JobPhase string

const (
	JobPhaseDiscovery JobPhase = "discovery"
	JobPhaseSyncing   JobPhase = "syncing"
	JobPhaseFailed    JobPhase = "failed"
)

// SyncResult is attached to a job once it reaches a terminal state.
type SyncResult struct {
	Status         RunStatus      `json:"status"`
	DiscoveryStats DiscoveryStats `json:"discovery_stats"`
	SyncStats      SyncStats      `json:"sync_stats"`
	DurationMs     int64          `json:"duration_ms"`
}

// SyncJob is the ephemeral, pollable progress snapshot for one sync run.
// It is mutated in place by the orchestrator while the job advances and
// becomes immutable once State reaches completed or failed. Not persisted
// beyond the job's bounded retention window.
type SyncJob struct {
	JobID    string   `json:"job_id"`
	SourceID string   `json:"source_id"`
	SyncType SyncType `json:"sync_type"`
	State    JobState `json:"state"`
	Phase    JobPhase `json:"phase"`

	TotalURLsInSitemap int `json:"total_urls_in_sitemap,omitempty"`
	NewURLs            int `json:"new_urls,omitempty"`
	UpdatedURLs        int `json:"updated_urls,omitempty"`
	DeletedURLs        int `json:"deleted_urls,omitempty"`

	URLsToProcess int    `json:"urls_to_process,omitempty"`
	URLsProcessed int    `json:"urls_processed"`
	URLsSynced    int    `json:"urls_synced"`
	URLsFailed    int    `json:"urls_failed"`
	CurrentURL    string `json:"current_url,omitempty"`

	Message      string      `json:"message"`
	Result       *SyncResult `json:"result,omitempty"`
	FailedReason string      `json:"failed_reason,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Terminal reports whether the job has reached a final state.
func (j *SyncJob) Terminal() bool {
	return j.State == JobStateCompleted || j.State == JobStateFailed
}
