package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// SourceType constants
const (
	SourceTypeSitemap    = "sitemap"
	SourceTypeHelpCenter = "help_center"
)

// SyncStatus represents the outcome of the most recent sync run for a source.
type SyncStatus string

const (
	SyncStatusNever   SyncStatus = "never"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusPartial SyncStatus = "partial"
	SyncStatusFailed  SyncStatus = "failed"
)

// Source represents a registered external content origin: a sitemap plus
// extraction rules feeding one client's knowledge base.
type Source struct {
	ID            string `json:"id"`
	ClientID      string `json:"client_id" validate:"required"`
	Name          string `json:"name" validate:"required"`
	SourceType    string `json:"source_type"`
	SitemapURL    string `json:"sitemap_url" validate:"required,url"`
	BaseURLFilter string `json:"base_url_filter,omitempty"`
	Category      string `json:"category"`

	// Extraction rules applied by the content fetcher.
	ContentSelectors []string `json:"content_selectors,omitempty"`
	ExcludeSelectors []string `json:"exclude_selectors,omitempty"`

	SyncEnabled       bool `json:"sync_enabled"`
	SyncIntervalHours int  `json:"sync_interval_hours" validate:"min=1"`

	// ActiveJobID is the single-flight guard: set atomically when a job
	// acquires the source, cleared when the job reaches a terminal state.
	ActiveJobID string `json:"active_job_id,omitempty"`

	// Run-boundary summary. Recomputed from the ledger at the end of each
	// run, never incremented piecemeal.
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	LastSyncStatus SyncStatus `json:"last_sync_status"`
	LastSyncError  string     `json:"last_sync_error,omitempty"`
	TotalURLs      int        `json:"total_urls"`
	SyncedURLs     int        `json:"synced_urls"`
	FailedURLs     int        `json:"failed_urls"`
	PendingURLs    int        `json:"pending_urls"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var sourceValidator = validator.New()

// Validate validates the source configuration
func (s *Source) Validate() error {
	if s.SourceType == "" {
		s.SourceType = SourceTypeSitemap
	}

	validTypes := map[string]bool{
		SourceTypeSitemap:    true,
		SourceTypeHelpCenter: true,
	}
	if !validTypes[s.SourceType] {
		return fmt.Errorf("invalid source type: %s", s.SourceType)
	}

	if err := sourceValidator.Struct(s); err != nil {
		return fmt.Errorf("source validation failed: %w", err)
	}

	if s.BaseURLFilter != "" && !strings.HasPrefix(s.BaseURLFilter, "http") {
		return fmt.Errorf("base URL filter must be an absolute URL prefix")
	}

	for i, sel := range s.ContentSelectors {
		if strings.TrimSpace(sel) == "" {
			return fmt.Errorf("content selector %d cannot be empty", i)
		}
	}
	for i, sel := range s.ExcludeSelectors {
		if strings.TrimSpace(sel) == "" {
			return fmt.Errorf("exclude selector %d cannot be empty", i)
		}
	}

	return nil
}

// SyncDue reports whether a scheduled sync should be enqueued for this
// source at the given time. Sources that never synced are always due.
func (s *Source) SyncDue(now time.Time) bool {
	if !s.SyncEnabled {
		return false
	}
	if s.LastSyncAt == nil {
		return true
	}
	interval := time.Duration(s.SyncIntervalHours) * time.Hour
	return !now.Before(s.LastSyncAt.Add(interval))
}
