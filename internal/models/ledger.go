package models

import (
	"time"
)

// URLStatus represents the sync state of a single tracked URL.
type URLStatus string

const (
	URLStatusPending URLStatus = "pending"
	URLStatusSynced  URLStatus = "synced"
	URLStatusFailed  URLStatus = "failed"
	URLStatusDeleted URLStatus = "deleted"
)

// LedgerEntry is the durable per-URL sync state for a source. Entries are
// keyed by (source ID, URL) and soft-deleted when a URL disappears from a
// later discovery, never physically removed until the source is deleted.
type LedgerEntry struct {
	SourceID      string     `json:"source_id"`
	URL           string     `json:"url"`
	Status        URLStatus  `json:"status"`
	Title         string     `json:"title,omitempty"`
	ContentHash   string     `json:"content_hash,omitempty"`
	WordCount     int        `json:"word_count,omitempty"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`
	LastSyncError string     `json:"last_sync_error,omitempty"`

	// SyncAttempts increments on every fetch attempt and never resets.
	SyncAttempts int `json:"sync_attempts"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LedgerKey builds the badgerhold key for a ledger entry.
func LedgerKey(sourceID, url string) string {
	return sourceID + "|" + url
}

// Key returns the storage key for this entry.
func (e *LedgerEntry) Key() string {
	return LedgerKey(e.SourceID, e.URL)
}
