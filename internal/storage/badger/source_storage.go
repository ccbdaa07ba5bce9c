package badger

import (
	"context"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitesync/internal/interfaces"
	"github.com/ternarybob/sitesync/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SourceStorage implements the SourceStorage interface for Badger
type SourceStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSourceStorage creates a new SourceStorage instance
func NewSourceStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SourceStorage {
	return &SourceStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SourceStorage) SaveSource(ctx context.Context, source *models.Source) error {
	if source.ID == "" {
		return fmt.Errorf("source ID is required")
	}

	now := time.Now()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	source.UpdatedAt = now

	if err := s.db.Store().Upsert(source.ID, source); err != nil {
		return fmt.Errorf("failed to save source: %w", err)
	}
	return nil
}

func (s *SourceStorage) GetSource(ctx context.Context, id string) (*models.Source, error) {
	var source models.Source
	if err := s.db.Store().Get(id, &source); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("source %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return &source, nil
}

func (s *SourceStorage) ListSources(ctx context.Context) ([]*models.Source, error) {
	var sources []models.Source
	if err := s.db.Store().Find(&sources, nil); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	result := make([]*models.Source, len(sources))
	for i := range sources {
		result[i] = &sources[i]
	}
	return result, nil
}

func (s *SourceStorage) GetEnabledSources(ctx context.Context) ([]*models.Source, error) {
	var sources []models.Source
	if err := s.db.Store().Find(&sources, badgerhold.Where("SyncEnabled").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to get enabled sources: %w", err)
	}

	result := make([]*models.Source, len(sources))
	for i := range sources {
		result[i] = &sources[i]
	}
	return result, nil
}

func (s *SourceStorage) DeleteSource(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Source{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("source %s: %w", id, models.ErrNotFound)
		}
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return nil
}

// AcquireSyncLock performs the single-flight compare-and-set on
// ActiveJobID inside one Badger transaction. Two concurrent triggers for
// the same source serialize here; the loser gets ErrSyncInProgress
// carrying the winner's job ID.
func (s *SourceStorage) AcquireSyncLock(ctx context.Context, sourceID, jobID string) error {
	var err error
	// Contending transactions surface ErrConflict; retrying lets the loser
	// re-read and report the winner's job ID instead.
	for attempt := 0; attempt < 3; attempt++ {
		err = s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
			var source models.Source
			if err := s.db.Store().TxGet(tx, sourceID, &source); err != nil {
				if err == badgerhold.ErrNotFound {
					return fmt.Errorf("source %s: %w", sourceID, models.ErrNotFound)
				}
				return fmt.Errorf("failed to get source: %w", err)
			}

			if source.ActiveJobID != "" {
				return &models.ErrSyncInProgress{SourceID: sourceID, JobID: source.ActiveJobID}
			}

			source.ActiveJobID = jobID
			source.UpdatedAt = time.Now()
			return s.db.Store().TxUpdate(tx, sourceID, &source)
		})
		if err != badgerdb.ErrConflict {
			break
		}
	}
	if err != nil {
		if _, ok := models.AsSyncInProgress(err); ok {
			return err
		}
		return fmt.Errorf("failed to acquire sync lock: %w", err)
	}

	s.logger.Debug().
		Str("source_id", sourceID).
		Str("job_id", jobID).
		Msg("Sync lock acquired")

	return nil
}

// ReleaseSyncLock clears ActiveJobID only if jobID still holds it. A lock
// already released or taken over by a newer job is left untouched.
func (s *SourceStorage) ReleaseSyncLock(ctx context.Context, sourceID, jobID string) error {
	err := s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
		var source models.Source
		if err := s.db.Store().TxGet(tx, sourceID, &source); err != nil {
			if err == badgerhold.ErrNotFound {
				// Source deleted while the job ran; nothing to release.
				return nil
			}
			return fmt.Errorf("failed to get source: %w", err)
		}

		if source.ActiveJobID != jobID {
			s.logger.Warn().
				Str("source_id", sourceID).
				Str("job_id", jobID).
				Str("active_job_id", source.ActiveJobID).
				Msg("Sync lock not held by releasing job")
			return nil
		}

		source.ActiveJobID = ""
		source.UpdatedAt = time.Now()
		return s.db.Store().TxUpdate(tx, sourceID, &source)
	})
	if err != nil {
		return fmt.Errorf("failed to release sync lock: %w", err)
	}
	return nil
}
