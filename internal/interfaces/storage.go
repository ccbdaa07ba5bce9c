package interfaces

import (
	"context"

	"github.com/ternarybob/sitesync/internal/models"
)

// LedgerListOptions filters and paginates ledger queries.
type LedgerListOptions struct {
	Status models.URLStatus // Empty means all statuses
	Search string           // Substring match on URL or title
	Page   int              // 0-indexed
	Limit  int
}

// SourceStorage - interface for source registry persistence
type SourceStorage interface {
	SaveSource(ctx context.Context, source *models.Source) error
	GetSource(ctx context.Context, id string) (*models.Source, error)
	ListSources(ctx context.Context) ([]*models.Source, error)
	GetEnabledSources(ctx context.Context) ([]*models.Source, error)
	DeleteSource(ctx context.Context, id string) error

	// AcquireSyncLock atomically sets ActiveJobID on the source if and only
	// if no job currently holds it. Returns models.ErrSyncInProgress when
	// another job is active. This is the single-flight guarantee: the
	// compare-and-set runs inside a single store transaction.
	AcquireSyncLock(ctx context.Context, sourceID, jobID string) error

	// ReleaseSyncLock clears ActiveJobID if it is still held by jobID.
	ReleaseSyncLock(ctx context.Context, sourceID, jobID string) error
}

// LedgerStorage - interface for per-URL sync state persistence
type LedgerStorage interface {
	SaveEntry(ctx context.Context, entry *models.LedgerEntry) error
	GetEntry(ctx context.Context, sourceID, url string) (*models.LedgerEntry, error)

	// ListBySource returns every ledger entry for a source, including
	// soft-deleted rows.
	ListBySource(ctx context.Context, sourceID string) ([]*models.LedgerEntry, error)

	// ListEntries returns a filtered, paginated page plus the total count
	// matching the filter.
	ListEntries(ctx context.Context, sourceID string, opts *LedgerListOptions) ([]*models.LedgerEntry, int, error)

	// MarkDeleted soft-deletes the given URLs for a source.
	MarkDeleted(ctx context.Context, sourceID string, urls []string) error

	// CountByStatus returns entry counts per status for a source.
	CountByStatus(ctx context.Context, sourceID string) (map[models.URLStatus]int, error)

	// DeleteBySource physically purges all ledger rows for a source. Only
	// called when the source itself is deleted.
	DeleteBySource(ctx context.Context, sourceID string) error
}

// HistoryStorage - interface for the append-only sync history log
type HistoryStorage interface {
	AppendEntry(ctx context.Context, entry *models.SyncHistoryEntry) error

	// ListBySource returns a page of history entries, newest first, plus the
	// total count for the source.
	ListBySource(ctx context.Context, sourceID string, page, limit int) ([]*models.SyncHistoryEntry, int, error)

	DeleteBySource(ctx context.Context, sourceID string) error
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	SourceStorage() SourceStorage
	LedgerStorage() LedgerStorage
	HistoryStorage() HistoryStorage
	DB() interface{}
	Close() error
}
