package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sitesync/internal/common"
	"github.com/ternarybob/sitesync/internal/handlers"
	"github.com/ternarybob/sitesync/internal/interfaces"
	"github.com/ternarybob/sitesync/internal/services/discovery"
	"github.com/ternarybob/sitesync/internal/services/events"
	"github.com/ternarybob/sitesync/internal/services/fetcher"
	"github.com/ternarybob/sitesync/internal/services/scheduler"
	"github.com/ternarybob/sitesync/internal/services/sources"
	"github.com/ternarybob/sitesync/internal/services/syncer"
	badgerstorage "github.com/ternarybob/sitesync/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager

	EventService interfaces.EventService

	DiscoveryFetcher interfaces.DiscoveryFetcher
	ContentFetcher   interfaces.ContentFetcher

	SourceService    *sources.Service
	SyncService      *syncer.Service
	SchedulerService interfaces.SchedulerService

	SourcesHandler *handlers.SourcesHandler
	SyncHandler    *handlers.SyncHandler
	LedgerHandler  *handlers.LedgerHandler
	HistoryHandler *handlers.HistoryHandler
	APIHandler     *handlers.APIHandler
}

// New creates and wires the application
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badgerstorage.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = storageManager

	a.EventService = events.NewService(logger)
	if err := events.SubscribeLoggerToAllEvents(a.EventService, logger); err != nil {
		return nil, fmt.Errorf("failed to subscribe event logger: %w", err)
	}

	a.DiscoveryFetcher = discovery.NewFetcher(cfg.Discovery, logger)
	a.ContentFetcher = fetcher.NewExtractor(cfg.Fetcher, logger)

	a.SourceService = sources.NewService(a.StorageManager, a.DiscoveryFetcher, a.EventService, logger)
	a.SyncService = syncer.NewService(a.StorageManager, a.DiscoveryFetcher, a.ContentFetcher, a.EventService, cfg.Sync, logger)
	a.SchedulerService = scheduler.NewService(a.StorageManager.SourceStorage(), a.SyncService, cfg.Scheduler, logger)

	a.SourcesHandler = handlers.NewSourcesHandler(a.SourceService, logger)
	a.SyncHandler = handlers.NewSyncHandler(a.SyncService, logger)
	a.LedgerHandler = handlers.NewLedgerHandler(a.StorageManager.LedgerStorage(), logger)
	a.HistoryHandler = handlers.NewHistoryHandler(a.StorageManager.HistoryStorage(), logger)
	a.APIHandler = handlers.NewAPIHandler()

	// Stale locks from a previous unclean shutdown would block syncing
	// forever, so clear them before anything can trigger a job.
	if err := a.clearStaleLocks(); err != nil {
		logger.Warn().Err(err).Msg("Failed to clear stale sync locks")
	}

	if cfg.Scheduler.Enabled {
		if err := a.SchedulerService.Start(); err != nil {
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		logger.Info().Msg("Scheduler disabled by configuration")
	}

	logger.Info().
		Int("sync_workers", cfg.Sync.WorkerCount).
		Str("job_timeout", cfg.Sync.JobTimeout.String()).
		Msg("Application initialized")

	return a, nil
}

// clearStaleLocks releases sync locks left behind by a crashed process. Jobs
// are in-memory, so after a restart no lock can correspond to a live job.
func (a *App) clearStaleLocks() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sourceList, err := a.StorageManager.SourceStorage().ListSources(ctx)
	if err != nil {
		return err
	}

	for _, source := range sourceList {
		if source.ActiveJobID == "" {
			continue
		}
		if err := a.StorageManager.SourceStorage().ReleaseSyncLock(ctx, source.ID, source.ActiveJobID); err != nil {
			return err
		}
		a.Logger.Warn().
			Str("source_id", source.ID).
			Str("stale_job_id", source.ActiveJobID).
			Msg("Cleared stale sync lock from previous run")
	}

	return nil
}

// Close shuts down the application in dependency order: scheduler first so
// nothing new is triggered, then running syncs drain, then storage closes.
func (a *App) Close() error {
	a.Logger.Info().Msg("Shutting down application")

	if a.SchedulerService != nil && a.SchedulerService.IsRunning() {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
		}
	}

	if a.SyncService != nil {
		active := a.SyncService.ActiveJobs()
		if len(active) > 0 {
			a.Logger.Info().
				Int("active_jobs", len(active)).
				Msg("Waiting for running sync jobs to finish")
		}
		a.SyncService.Wait()
		a.SyncService.Close()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}

	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}
