package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitesync/internal/interfaces"
	"github.com/ternarybob/sitesync/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// LedgerStorage implements the LedgerStorage interface for Badger.
// Entries are keyed by sourceID + "|" + url.
type LedgerStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewLedgerStorage creates a new LedgerStorage instance
func NewLedgerStorage(db *BadgerDB, logger arbor.ILogger) interfaces.LedgerStorage {
	return &LedgerStorage{
		db:     db,
		logger: logger,
	}
}

func (s *LedgerStorage) SaveEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.SourceID == "" || entry.URL == "" {
		return fmt.Errorf("ledger entry requires source ID and URL")
	}

	now := time.Now()
	if entry.FirstSeenAt.IsZero() {
		entry.FirstSeenAt = now
	}
	entry.UpdatedAt = now

	if err := s.db.Store().Upsert(entry.Key(), entry); err != nil {
		return fmt.Errorf("failed to save ledger entry: %w", err)
	}
	return nil
}

func (s *LedgerStorage) GetEntry(ctx context.Context, sourceID, url string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := s.db.Store().Get(models.LedgerKey(sourceID, url), &entry); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("ledger entry %s: %w", url, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return &entry, nil
}

func (s *LedgerStorage) ListBySource(ctx context.Context, sourceID string) ([]*models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := s.db.Store().Find(&entries, badgerhold.Where("SourceID").Eq(sourceID)); err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	result := make([]*models.LedgerEntry, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result, nil
}

// ListEntries applies the status filter at the store level and the substring
// search in memory, then paginates. Total reflects the filtered count.
func (s *LedgerStorage) ListEntries(ctx context.Context, sourceID string, opts *interfaces.LedgerListOptions) ([]*models.LedgerEntry, int, error) {
	query := badgerhold.Where("SourceID").Eq(sourceID)
	if opts != nil && opts.Status != "" {
		query = query.And("Status").Eq(opts.Status)
	}

	var entries []models.LedgerEntry
	if err := s.db.Store().Find(&entries, query.SortBy("URL")); err != nil {
		return nil, 0, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	filtered := make([]*models.LedgerEntry, 0, len(entries))
	for i := range entries {
		if opts != nil && opts.Search != "" {
			needle := strings.ToLower(opts.Search)
			if !strings.Contains(strings.ToLower(entries[i].URL), needle) &&
				!strings.Contains(strings.ToLower(entries[i].Title), needle) {
				continue
			}
		}
		filtered = append(filtered, &entries[i])
	}

	total := len(filtered)

	page, limit := 0, 50
	if opts != nil {
		if opts.Page > 0 {
			page = opts.Page
		}
		if opts.Limit > 0 {
			limit = opts.Limit
		}
	}

	start := page * limit
	if start >= total {
		return []*models.LedgerEntry{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}

	return filtered[start:end], total, nil
}

func (s *LedgerStorage) MarkDeleted(ctx context.Context, sourceID string, urls []string) error {
	now := time.Now()
	for _, url := range urls {
		var entry models.LedgerEntry
		if err := s.db.Store().Get(models.LedgerKey(sourceID, url), &entry); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return fmt.Errorf("failed to get ledger entry for %s: %w", url, err)
		}

		entry.Status = models.URLStatusDeleted
		entry.UpdatedAt = now
		if err := s.db.Store().Upsert(entry.Key(), &entry); err != nil {
			return fmt.Errorf("failed to mark %s deleted: %w", url, err)
		}
	}

	if len(urls) > 0 {
		s.logger.Debug().
			Str("source_id", sourceID).
			Int("count", len(urls)).
			Msg("Ledger entries marked deleted")
	}

	return nil
}

func (s *LedgerStorage) CountByStatus(ctx context.Context, sourceID string) (map[models.URLStatus]int, error) {
	entries, err := s.ListBySource(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	counts := make(map[models.URLStatus]int)
	for _, entry := range entries {
		counts[entry.Status]++
	}
	return counts, nil
}

func (s *LedgerStorage) DeleteBySource(ctx context.Context, sourceID string) error {
	if err := s.db.Store().DeleteMatching(&models.LedgerEntry{}, badgerhold.Where("SourceID").Eq(sourceID)); err != nil {
		return fmt.Errorf("failed to delete ledger entries: %w", err)
	}
	return nil
}
