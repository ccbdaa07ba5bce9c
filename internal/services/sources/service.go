package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sitesync/internal/common"
	"github.com/ternarybob/sitesync/internal/interfaces"
	"github.com/ternarybob/sitesync/internal/models"
)

// Service manages the source registry: validation, persistence, and the
// cascade cleanup when a source is removed.
type Service struct {
	storage      interfaces.StorageManager
	discovery    interfaces.DiscoveryFetcher
	eventService interfaces.EventService
	logger       arbor.ILogger
}

// NewService creates a new source registry service
func NewService(storage interfaces.StorageManager, discovery interfaces.DiscoveryFetcher, eventService interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		storage:      storage,
		discovery:    discovery,
		eventService: eventService,
		logger:       logger,
	}
}

// CreateSource validates and creates a new source
func (s *Service) CreateSource(ctx context.Context, source *models.Source) error {
	if source.ID == "" {
		source.ID = common.NewSourceID()
	}

	now := time.Now()
	source.CreatedAt = now
	source.UpdatedAt = now
	source.LastSyncStatus = models.SyncStatusNever
	source.ActiveJobID = ""
	if source.SyncIntervalHours == 0 {
		source.SyncIntervalHours = 24
	}

	if err := source.Validate(); err != nil {
		return err
	}

	if err := s.storage.SourceStorage().SaveSource(ctx, source); err != nil {
		return fmt.Errorf("failed to save source: %w", err)
	}

	s.logger.Info().
		Str("id", source.ID).
		Str("name", source.Name).
		Str("client_id", source.ClientID).
		Str("sitemap_url", source.SitemapURL).
		Msg("Source created")

	s.eventService.Publish(ctx, interfaces.Event{
		Type: interfaces.EventSourceCreated,
		Payload: map[string]interface{}{
			"source_id":   source.ID,
			"client_id":   source.ClientID,
			"source_name": source.Name,
		},
	})

	return nil
}

// GetSource retrieves a source by ID
func (s *Service) GetSource(ctx context.Context, id string) (*models.Source, error) {
	return s.storage.SourceStorage().GetSource(ctx, id)
}

// ListSources returns all registered sources
func (s *Service) ListSources(ctx context.Context) ([]*models.Source, error) {
	return s.storage.SourceStorage().ListSources(ctx)
}

// UpdateSource validates and updates an existing source. Run-boundary fields
// and the sync lock are preserved from the stored source; only configuration
// is caller-writable.
func (s *Service) UpdateSource(ctx context.Context, source *models.Source) error {
	existing, err := s.storage.SourceStorage().GetSource(ctx, source.ID)
	if err != nil {
		return err
	}

	source.CreatedAt = existing.CreatedAt
	source.UpdatedAt = time.Now()
	source.ActiveJobID = existing.ActiveJobID
	source.LastSyncAt = existing.LastSyncAt
	source.LastSyncStatus = existing.LastSyncStatus
	source.LastSyncError = existing.LastSyncError
	source.TotalURLs = existing.TotalURLs
	source.SyncedURLs = existing.SyncedURLs
	source.FailedURLs = existing.FailedURLs
	source.PendingURLs = existing.PendingURLs

	if err := source.Validate(); err != nil {
		return err
	}

	if err := s.storage.SourceStorage().SaveSource(ctx, source); err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}

	s.logger.Info().
		Str("id", source.ID).
		Str("name", source.Name).
		Msg("Source updated")

	s.eventService.Publish(ctx, interfaces.Event{
		Type: interfaces.EventSourceUpdated,
		Payload: map[string]interface{}{
			"source_id": source.ID,
		},
	})

	return nil
}

// DeleteSource removes a source and cascades to its ledger entries and sync
// history. A source with an active sync cannot be deleted.
func (s *Service) DeleteSource(ctx context.Context, id string) error {
	source, err := s.storage.SourceStorage().GetSource(ctx, id)
	if err != nil {
		return err
	}

	if source.ActiveJobID != "" {
		return &models.ErrSyncInProgress{SourceID: id, JobID: source.ActiveJobID}
	}

	if err := s.storage.LedgerStorage().DeleteBySource(ctx, id); err != nil {
		return fmt.Errorf("failed to delete ledger entries: %w", err)
	}
	if err := s.storage.HistoryStorage().DeleteBySource(ctx, id); err != nil {
		return fmt.Errorf("failed to delete sync history: %w", err)
	}
	if err := s.storage.SourceStorage().DeleteSource(ctx, id); err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	s.logger.Info().
		Str("id", id).
		Str("name", source.Name).
		Msg("Source deleted with ledger and history")

	s.eventService.Publish(ctx, interfaces.Event{
		Type: interfaces.EventSourceDeleted,
		Payload: map[string]interface{}{
			"source_id": id,
		},
	})

	return nil
}

// ToggleSync sets scheduled syncing for a source to the requested value and
// returns the updated source. Setting the value a source already has is a
// no-op write, so retried requests are safe.
func (s *Service) ToggleSync(ctx context.Context, id string, enabled bool) (*models.Source, error) {
	source, err := s.storage.SourceStorage().GetSource(ctx, id)
	if err != nil {
		return nil, err
	}

	source.SyncEnabled = enabled
	source.UpdatedAt = time.Now()

	if err := s.storage.SourceStorage().SaveSource(ctx, source); err != nil {
		return nil, fmt.Errorf("failed to toggle sync: %w", err)
	}

	s.logger.Info().
		Str("id", id).
		Bool("sync_enabled", source.SyncEnabled).
		Msg("Source sync toggled")

	return source, nil
}

// TestConnection runs discovery against a sitemap URL without touching the
// ledger. Returns how many URLs the sitemap yields after filtering.
func (s *Service) TestConnection(ctx context.Context, sitemapURL, baseURLFilter string) (int, error) {
	urls, err := s.discovery.Discover(ctx, sitemapURL, baseURLFilter)
	if err != nil {
		return 0, err
	}
	return len(urls), nil
}
