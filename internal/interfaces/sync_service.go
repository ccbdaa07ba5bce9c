package interfaces

import (
	"context"

	"github.com/ternarybob/sitesync/internal/models"
)

// DiscoveryFetcher enumerates candidate URLs from a sitemap, following
// sitemap-index references transitively. A pure function of
// (sitemap URL, base URL filter); failures are models.DiscoveryError.
type DiscoveryFetcher interface {
	Discover(ctx context.Context, sitemapURL, baseURLFilter string) ([]string, error)
}

// ContentFetcher retrieves one page, applies include/exclude selectors, and
// normalizes the result. Failures are models.FetchError and never abort a run.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string, contentSelectors, excludeSelectors []string) (*models.ExtractedContent, error)
}

// SyncService runs source synchronizations and publishes pollable progress.
type SyncService interface {
	// TriggerSync starts a sync job for the source. Returns
	// models.ErrSyncInProgress if a job is already active for the source.
	// The returned job is a snapshot; poll GetJob for progress.
	TriggerSync(ctx context.Context, sourceID string, syncType models.SyncType, triggeredBy string) (*models.SyncJob, error)

	// GetJob returns the current progress snapshot for a job, or
	// models.ErrNotFound once the job has been retired.
	GetJob(jobID string) (*models.SyncJob, error)

	// ActiveJobs returns the IDs of jobs that have not reached a terminal
	// state, used for shutdown coordination.
	ActiveJobs() []string

	// Wait blocks until all running jobs reach a terminal state.
	Wait()
}

// SchedulerService triggers scheduled syncs for due sources.
type SchedulerService interface {
	Start() error
	Stop() error
	IsRunning() bool
}
