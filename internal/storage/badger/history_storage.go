package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitesync/internal/interfaces"
	"github.com/ternarybob/sitesync/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// HistoryStorage implements the HistoryStorage interface for Badger.
// History entries are append-only; nothing updates them after the write.
type HistoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewHistoryStorage creates a new HistoryStorage instance
func NewHistoryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.HistoryStorage {
	return &HistoryStorage{
		db:     db,
		logger: logger,
	}
}

func (s *HistoryStorage) AppendEntry(ctx context.Context, entry *models.SyncHistoryEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("history entry ID is required")
	}
	if entry.SourceID == "" {
		return fmt.Errorf("history entry source ID is required")
	}

	if err := s.db.Store().Insert(entry.ID, entry); err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

func (s *HistoryStorage) ListBySource(ctx context.Context, sourceID string, page, limit int) ([]*models.SyncHistoryEntry, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if page < 0 {
		page = 0
	}

	count, err := s.db.Store().Count(&models.SyncHistoryEntry{}, badgerhold.Where("SourceID").Eq(sourceID))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count history entries: %w", err)
	}

	var entries []models.SyncHistoryEntry
	query := badgerhold.Where("SourceID").Eq(sourceID).
		SortBy("StartedAt").Reverse().
		Skip(page * limit).Limit(limit)
	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, 0, fmt.Errorf("failed to list history entries: %w", err)
	}

	result := make([]*models.SyncHistoryEntry, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result, int(count), nil
}

func (s *HistoryStorage) DeleteBySource(ctx context.Context, sourceID string) error {
	if err := s.db.Store().DeleteMatching(&models.SyncHistoryEntry{}, badgerhold.Where("SourceID").Eq(sourceID)); err != nil {
		return fmt.Errorf("failed to delete history entries: %w", err)
	}
	return nil
}
