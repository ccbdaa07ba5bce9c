package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validSource() *Source {
	return &Source{
		ID:                "src_1",
		ClientID:          "client-1",
		Name:              "Docs",
		SitemapURL:        "https://a.com/sitemap.xml",
		SyncEnabled:       true,
		SyncIntervalHours: 24,
	}
}

func TestSourceValidate(t *testing.T) {
	source := validSource()
	assert.NoError(t, source.Validate())
	assert.Equal(t, SourceTypeSitemap, source.SourceType, "empty type defaults to sitemap")
}

func TestSourceValidate_Rejections(t *testing.T) {
	source := validSource()
	source.ClientID = ""
	assert.Error(t, source.Validate())

	source = validSource()
	source.SitemapURL = "not a url"
	assert.Error(t, source.Validate())

	source = validSource()
	source.SourceType = "rss"
	assert.Error(t, source.Validate())

	source = validSource()
	source.SyncIntervalHours = 0
	assert.Error(t, source.Validate())

	source = validSource()
	source.BaseURLFilter = "/docs"
	assert.Error(t, source.Validate(), "filter must be an absolute URL prefix")

	source = validSource()
	source.ContentSelectors = []string{"article", "  "}
	assert.Error(t, source.Validate())
}

func TestLedgerKey(t *testing.T) {
	entry := &LedgerEntry{SourceID: "src_1", URL: "https://a.com/page"}
	assert.Equal(t, "src_1|https://a.com/page", entry.Key())
	assert.Equal(t, entry.Key(), LedgerKey("src_1", "https://a.com/page"))
}

func TestSyncJobTerminal(t *testing.T) {
	job := &SyncJob{State: JobStateActive}
	assert.False(t, job.Terminal())

	job.State = JobStateCompleted
	assert.True(t, job.Terminal())

	job.State = JobStateFailed
	assert.True(t, job.Terminal())
}

func TestErrSyncInProgress(t *testing.T) {
	err := &ErrSyncInProgress{SourceID: "src_1", JobID: "job_1"}

	conflict, ok := AsSyncInProgress(err)
	assert.True(t, ok)
	assert.Equal(t, "job_1", conflict.JobID)

	_, ok = AsSyncInProgress(ErrNotFound)
	assert.False(t, ok)
}

func TestSyncDue(t *testing.T) {
	now := time.Now()
	source := validSource()

	assert.True(t, source.SyncDue(now), "never-synced sources are always due")

	past := now.Add(-25 * time.Hour)
	source.LastSyncAt = &past
	assert.True(t, source.SyncDue(now))

	recent := now.Add(-23 * time.Hour)
	source.LastSyncAt = &recent
	assert.False(t, source.SyncDue(now))

	source.SyncEnabled = false
	source.LastSyncAt = &past
	assert.False(t, source.SyncDue(now))
}
