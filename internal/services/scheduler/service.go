package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sitesync/internal/common"
	"github.com/ternarybob/sitesync/internal/interfaces"
	"github.com/ternarybob/sitesync/internal/models"
)

// Service implements SchedulerService. On every cron tick it enqueues a
// scheduled sync for each enabled source whose interval has elapsed. A
// source already being synced is skipped; its next due tick picks it up.
type Service struct {
	sourceStorage interfaces.SourceStorage
	syncService   interfaces.SyncService
	config        common.SchedulerConfig
	cron          *cron.Cron
	logger        arbor.ILogger
	mu            sync.Mutex
	running       bool
}

// NewService creates a new scheduler service
func NewService(sourceStorage interfaces.SourceStorage, syncService interfaces.SyncService, config common.SchedulerConfig, logger arbor.ILogger) interfaces.SchedulerService {
	return &Service{
		sourceStorage: sourceStorage,
		syncService:   syncService,
		config:        config,
		cron:          cron.New(),
		logger:        logger,
	}
}

// Start begins the scheduler tick.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	schedule := s.config.Schedule
	if schedule == "" {
		schedule = "*/1 * * * *"
	}

	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", schedule).
		Msg("Scheduler started")

	return nil
}

// Stop halts the scheduler. Syncs already triggered keep running.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn().Msg("Timed out waiting for scheduler tick to finish")
	}

	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning reports whether the scheduler is active.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// tick checks every enabled source and triggers scheduled syncs for the due
// ones. One source failing to trigger never blocks the others.
func (s *Service) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sources, err := s.sourceStorage.GetEnabledSources(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduler failed to list enabled sources")
		return
	}

	now := time.Now()
	triggered := 0

	for _, source := range sources {
		if !source.SyncDue(now) {
			continue
		}

		job, err := s.syncService.TriggerSync(ctx, source.ID, models.SyncTypeScheduled, "scheduler")
		if err != nil {
			if conflict, ok := models.AsSyncInProgress(err); ok {
				s.logger.Debug().
					Str("source_id", source.ID).
					Str("active_job_id", conflict.JobID).
					Msg("Skipping scheduled sync, source already syncing")
				continue
			}
			s.logger.Error().
				Err(err).
				Str("source_id", source.ID).
				Msg("Failed to trigger scheduled sync")
			continue
		}

		triggered++
		s.logger.Info().
			Str("source_id", source.ID).
			Str("job_id", job.JobID).
			Msg("Scheduled sync triggered")
	}

	if triggered > 0 {
		s.logger.Info().
			Int("triggered", triggered).
			Int("enabled_sources", len(sources)).
			Msg("Scheduler tick completed")
	}
}
