package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sitesync/internal/common"
	"github.com/ternarybob/sitesync/internal/interfaces"
	"github.com/ternarybob/sitesync/internal/models"
)

// Service orchestrates sync runs: discovery, diff, fetch dispatch over a
// fixed worker pool, ledger writes, and the run-boundary bookkeeping on the
// source and its history. At most one job runs per source at a time; the
// store-level lock on the source enforces that.
type Service struct {
	storage   interfaces.StorageManager
	discovery interfaces.DiscoveryFetcher
	fetcher   interfaces.ContentFetcher
	events    interfaces.EventService
	config    common.SyncConfig
	logger    arbor.ILogger
	progress  *progressTracker
	wg        sync.WaitGroup
}

// NewService creates a sync orchestrator.
func NewService(
	storage interfaces.StorageManager,
	discovery interfaces.DiscoveryFetcher,
	fetcher interfaces.ContentFetcher,
	events interfaces.EventService,
	config common.SyncConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		storage:   storage,
		discovery: discovery,
		fetcher:   fetcher,
		events:    events,
		config:    config,
		logger:    logger,
		progress:  newProgressTracker(config.ProgressRetention),
	}
}

// TriggerSync starts a sync job for the source. The source lock is acquired
// before this returns, so a success here guarantees the job is the only one
// running for the source. Returns models.ErrSyncInProgress (carrying the
// active job's ID) when the source is already being synced.
func (s *Service) TriggerSync(ctx context.Context, sourceID string, syncType models.SyncType, triggeredBy string) (*models.SyncJob, error) {
	source, err := s.storage.SourceStorage().GetSource(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("loading source %s: %w", sourceID, err)
	}

	jobID := common.NewJobID()
	if err := s.storage.SourceStorage().AcquireSyncLock(ctx, sourceID, jobID); err != nil {
		return nil, err
	}

	job := &models.SyncJob{
		JobID:     jobID,
		SourceID:  sourceID,
		SyncType:  syncType,
		State:     models.JobStateWaiting,
		Phase:     models.JobPhaseDiscovery,
		Message:   "Sync queued",
		StartedAt: time.Now(),
	}
	s.progress.Track(job)

	s.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventSyncStarted,
		Payload: map[string]interface{}{
			"source_id": sourceID,
			"job_id":    jobID,
			"sync_type": string(syncType),
		},
	})

	s.logger.Info().
		Str("source_id", sourceID).
		Str("job_id", jobID).
		Str("sync_type", string(syncType)).
		Str("triggered_by", triggeredBy).
		Msg("Sync job started")

	s.wg.Add(1)
	common.SafeGo(s.logger, "sync-"+jobID, func() {
		defer s.wg.Done()
		s.run(source, job, syncType, triggeredBy)
	})

	return s.progress.Get(jobID), nil
}

// GetJob returns the current progress snapshot for a job.
func (s *Service) GetJob(jobID string) (*models.SyncJob, error) {
	job := s.progress.Get(jobID)
	if job == nil {
		return nil, models.ErrNotFound
	}
	return job, nil
}

// ActiveJobs returns the IDs of jobs not yet in a terminal state.
func (s *Service) ActiveJobs() []string {
	return s.progress.Active()
}

// Wait blocks until all running jobs finish. Used during shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close stops background bookkeeping. Running jobs are not interrupted.
func (s *Service) Close() {
	s.progress.Close()
}

// runState aggregates fetch outcomes across the worker pool.
type runState struct {
	mu         sync.Mutex
	updated    int
	unchanged  int
	synced     int
	failed     int
	failedURLs []models.FailedURL
	infraErr   error
}

func (r *runState) recordInfraErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.infraErr == nil {
		r.infraErr = err
	}
}

func (s *Service) run(source *models.Source, job *models.SyncJob, syncType models.SyncType, triggeredBy string) {
	startedAt := time.Now()

	// A panic must still write the history entry and release the source
	// lock, or the source stays wedged until the next restart.
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s.logger.Error().
			Str("job_id", job.JobID).
			Str("panic", fmt.Sprintf("%v", r)).
			Msg("Sync job panicked")
		if snap := s.progress.Get(job.JobID); snap != nil && snap.Terminal() {
			return
		}
		s.finishFailed(source, job, syncType, triggeredBy, startedAt, nil, fmt.Errorf("panic during sync: %v", r))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
	defer cancel()
	s.progress.Update(job.JobID, func(j *models.SyncJob) {
		j.State = models.JobStateActive
		j.Message = "Discovering URLs from sitemap"
	})

	discovered, err := s.discovery.Discover(ctx, source.SitemapURL, source.BaseURLFilter)
	if err != nil {
		s.finishFailed(source, job, syncType, triggeredBy, startedAt, nil, err)
		return
	}

	entries, err := s.storage.LedgerStorage().ListBySource(ctx, source.ID)
	if err != nil {
		s.finishFailed(source, job, syncType, triggeredBy, startedAt, nil, fmt.Errorf("loading ledger: %w", err))
		return
	}

	diff := computeDiff(discovered, entries)
	discoveryStats := models.DiscoveryStats{
		TotalURLsInSitemap: len(discovered),
		NewURLs:            len(diff.NewURLs),
		DeletedURLs:        len(diff.DeletedURLs),
	}

	s.progress.Update(job.JobID, func(j *models.SyncJob) {
		j.Phase = models.JobPhaseSyncing
		j.TotalURLsInSitemap = len(discovered)
		j.NewURLs = len(diff.NewURLs)
		j.DeletedURLs = len(diff.DeletedURLs)
		j.URLsToProcess = len(diff.NewURLs) + len(diff.ExistingURLs)
		j.Message = "Syncing content"
	})

	s.logger.Info().
		Str("source_id", source.ID).
		Str("job_id", job.JobID).
		Int("total", len(discovered)).
		Int("new", len(diff.NewURLs)).
		Int("existing", len(diff.ExistingURLs)).
		Int("deleted", len(diff.DeletedURLs)).
		Msg("Discovery diff computed")

	if err := s.storage.LedgerStorage().MarkDeleted(ctx, source.ID, diff.DeletedURLs); err != nil {
		s.finishFailed(source, job, syncType, triggeredBy, startedAt, &discoveryStats, fmt.Errorf("marking deleted URLs: %w", err))
		return
	}

	// New URLs get a pending entry before any fetch so the ledger reflects
	// discovery even if the job dies mid-sync.
	for _, url := range diff.NewURLs {
		entry := &models.LedgerEntry{
			SourceID: source.ID,
			URL:      url,
			Status:   models.URLStatusPending,
		}
		if err := s.storage.LedgerStorage().SaveEntry(ctx, entry); err != nil {
			s.finishFailed(source, job, syncType, triggeredBy, startedAt, &discoveryStats, fmt.Errorf("creating ledger entry for %s: %w", url, err))
			return
		}
	}

	priorHashes := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.Status != models.URLStatusDeleted {
			priorHashes[entry.URL] = entry.ContentHash
		}
	}

	state := &runState{}
	s.syncURLs(ctx, source, job, diff, priorHashes, state)

	discoveryStats.UpdatedURLs = state.updated
	discoveryStats.UnchangedURLs = state.unchanged

	if state.infraErr != nil {
		s.finishFailed(source, job, syncType, triggeredBy, startedAt, &discoveryStats, fmt.Errorf("storage failure mid-sync, ledger may be inconsistent: %w", state.infraErr))
		return
	}
	if ctx.Err() != nil {
		s.finishFailed(source, job, syncType, triggeredBy, startedAt, &discoveryStats, fmt.Errorf("job exceeded timeout %s: %w", s.config.JobTimeout, ctx.Err()))
		return
	}

	s.finishCompleted(source, job, syncType, triggeredBy, startedAt, discoveryStats, state)
}

// syncURLs dispatches fetches over a fixed worker pool. Pool size never
// depends on how many URLs were discovered.
func (s *Service) syncURLs(ctx context.Context, source *models.Source, job *models.SyncJob, diff *diffResult, priorHashes map[string]string, state *runState) {
	tasks := make(chan string)
	var wg sync.WaitGroup

	workers := s.config.WorkerCount
	if workers < 1 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range tasks {
				if ctx.Err() != nil {
					continue // Drain remaining tasks without fetching
				}
				s.syncOne(ctx, source, job, url, priorHashes, state)
			}
		}()
	}

	for _, url := range diff.NewURLs {
		tasks <- url
	}
	for _, url := range diff.ExistingURLs {
		tasks <- url
	}
	close(tasks)
	wg.Wait()
}

// syncOne fetches one URL and records the outcome on its ledger entry. The
// ledger write happens before the progress counters move so a poller never
// sees counts ahead of durable state.
func (s *Service) syncOne(ctx context.Context, source *models.Source, job *models.SyncJob, url string, priorHashes map[string]string, state *runState) {
	s.progress.Update(job.JobID, func(j *models.SyncJob) {
		j.CurrentURL = url
	})

	priorHash, existed := priorHashes[url]

	content, fetchErr := s.fetcher.Fetch(ctx, url, source.ContentSelectors, source.ExcludeSelectors)

	entry, err := s.storage.LedgerStorage().GetEntry(ctx, source.ID, url)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			state.recordInfraErr(err)
			return
		}
		entry = &models.LedgerEntry{SourceID: source.ID, URL: url}
	}

	entry.SyncAttempts++

	if fetchErr != nil {
		entry.Status = models.URLStatusFailed
		entry.LastSyncError = fetchErr.Error()
		if err := s.storage.LedgerStorage().SaveEntry(ctx, entry); err != nil {
			state.recordInfraErr(err)
			return
		}

		state.mu.Lock()
		state.failed++
		state.failedURLs = append(state.failedURLs, models.FailedURL{URL: url, Error: fetchErr.Error()})
		state.mu.Unlock()

		s.progress.Update(job.JobID, func(j *models.SyncJob) {
			j.URLsProcessed++
			j.URLsFailed++
		})

		s.logger.Warn().
			Err(fetchErr).
			Str("source_id", source.ID).
			Str("url", url).
			Msg("URL sync failed")
		return
	}

	unchanged := existed && priorHash != "" && priorHash == content.ContentHash

	now := time.Now()
	entry.Status = models.URLStatusSynced
	entry.Title = content.Title
	entry.LastSyncedAt = &now
	entry.LastSyncError = ""
	if !unchanged {
		entry.ContentHash = content.ContentHash
		entry.WordCount = content.WordCount
	}
	if err := s.storage.LedgerStorage().SaveEntry(ctx, entry); err != nil {
		state.recordInfraErr(err)
		return
	}

	state.mu.Lock()
	state.synced++
	if existed {
		if unchanged {
			state.unchanged++
		} else {
			state.updated++
		}
	}
	state.mu.Unlock()

	s.progress.Update(job.JobID, func(j *models.SyncJob) {
		j.URLsProcessed++
		j.URLsSynced++
		if existed && !unchanged {
			j.UpdatedURLs++
		}
	})
}

// finishCompleted closes out a run whose discovery and dispatch both
// completed. The run is partial when any URL failed and success otherwise.
func (s *Service) finishCompleted(source *models.Source, job *models.SyncJob, syncType models.SyncType, triggeredBy string, startedAt time.Time, discoveryStats models.DiscoveryStats, state *runState) {
	runStatus := models.RunStatusSuccess
	if state.failed > 0 {
		runStatus = models.RunStatusPartial
		if state.synced == 0 {
			runStatus = models.RunStatusFailed
		}
	}

	errorMessage := ""
	if runStatus == models.RunStatusFailed {
		errorMessage = fmt.Sprintf("all %d fetched URLs failed", state.failed)
	}

	result := &models.SyncResult{
		Status:         runStatus,
		DiscoveryStats: discoveryStats,
		SyncStats:      models.SyncStats{URLsSynced: state.synced, URLsFailed: state.failed},
		DurationMs:     time.Since(startedAt).Milliseconds(),
	}

	s.finalize(source, job, syncType, triggeredBy, startedAt, result, state.failedURLs, errorMessage)

	s.logger.Info().
		Str("source_id", source.ID).
		Str("job_id", job.JobID).
		Str("status", string(runStatus)).
		Int("synced", state.synced).
		Int("failed", state.failed).
		Int("updated", discoveryStats.UpdatedURLs).
		Int("unchanged", discoveryStats.UnchangedURLs).
		Msg("Sync job completed")
}

// finishFailed closes out a run aborted by a fatal error: discovery failure,
// storage failure, or timeout. Already-written ledger rows stay as written.
func (s *Service) finishFailed(source *models.Source, job *models.SyncJob, syncType models.SyncType, triggeredBy string, startedAt time.Time, discoveryStats *models.DiscoveryStats, cause error) {
	stats := models.DiscoveryStats{}
	if discoveryStats != nil {
		stats = *discoveryStats
	}

	result := &models.SyncResult{
		Status:         models.RunStatusFailed,
		DiscoveryStats: stats,
		DurationMs:     time.Since(startedAt).Milliseconds(),
	}

	s.finalize(source, job, syncType, triggeredBy, startedAt, result, nil, cause.Error())

	s.logger.Error().
		Err(cause).
		Str("source_id", source.ID).
		Str("job_id", job.JobID).
		Msg("Sync job failed")
}

// finalize writes the single history entry for the run, recomputes the
// source's run-boundary summary from the ledger, releases the source lock,
// and marks the job terminal. Runs under a fresh context so a timed-out job
// can still record its outcome.
func (s *Service) finalize(source *models.Source, job *models.SyncJob, syncType models.SyncType, triggeredBy string, startedAt time.Time, result *models.SyncResult, failedURLs []models.FailedURL, errorMessage string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entry := &models.SyncHistoryEntry{
		ID:             common.NewHistoryID(),
		SourceID:       source.ID,
		SyncType:       syncType,
		TriggeredBy:    triggeredBy,
		StartedAt:      startedAt,
		DurationMs:     result.DurationMs,
		Status:         result.Status,
		DiscoveryStats: result.DiscoveryStats,
		SyncStats:      result.SyncStats,
		FailedURLs:     failedURLs,
		ErrorMessage:   errorMessage,
	}
	if err := s.storage.HistoryStorage().AppendEntry(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to write sync history entry")
	}

	s.updateSourceSummary(ctx, source.ID, result.Status, errorMessage, startedAt)

	if err := s.storage.SourceStorage().ReleaseSyncLock(ctx, source.ID, job.JobID); err != nil {
		s.logger.Warn().Err(err).Str("source_id", source.ID).Str("job_id", job.JobID).Msg("Failed to release sync lock")
	}

	finishedAt := time.Now()
	s.progress.Update(job.JobID, func(j *models.SyncJob) {
		if result.Status == models.RunStatusFailed {
			j.State = models.JobStateFailed
			j.Phase = models.JobPhaseFailed
			j.FailedReason = errorMessage
			j.Message = "Sync failed"
		} else {
			j.State = models.JobStateCompleted
			j.Message = "Sync completed"
		}
		j.CurrentURL = ""
		j.Result = result
		j.FinishedAt = &finishedAt
	})

	s.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventSyncCompleted,
		Payload: map[string]interface{}{
			"source_id": source.ID,
			"job_id":    job.JobID,
			"status":    string(result.Status),
		},
	})
}

// updateSourceSummary recomputes the source's URL counts from the ledger and
// stamps the run outcome. Counts are always derived, never incremented.
func (s *Service) updateSourceSummary(ctx context.Context, sourceID string, status models.RunStatus, errorMessage string, syncedAt time.Time) {
	source, err := s.storage.SourceStorage().GetSource(ctx, sourceID)
	if err != nil {
		s.logger.Error().Err(err).Str("source_id", sourceID).Msg("Failed to reload source for summary update")
		return
	}

	counts, err := s.storage.LedgerStorage().CountByStatus(ctx, sourceID)
	if err != nil {
		s.logger.Error().Err(err).Str("source_id", sourceID).Msg("Failed to count ledger entries")
		return
	}

	source.LastSyncAt = &syncedAt
	source.LastSyncStatus = runStatusToSyncStatus(status)
	source.LastSyncError = errorMessage
	source.SyncedURLs = counts[models.URLStatusSynced]
	source.FailedURLs = counts[models.URLStatusFailed]
	source.PendingURLs = counts[models.URLStatusPending]
	source.TotalURLs = source.SyncedURLs + source.FailedURLs + source.PendingURLs

	if err := s.storage.SourceStorage().SaveSource(ctx, source); err != nil {
		s.logger.Error().Err(err).Str("source_id", sourceID).Msg("Failed to save source summary")
	}
}

func runStatusToSyncStatus(status models.RunStatus) models.SyncStatus {
	switch status {
	case models.RunStatusSuccess:
		return models.SyncStatusSuccess
	case models.RunStatusPartial:
		return models.SyncStatusPartial
	default:
		return models.SyncStatusFailed
	}
}
