package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sitesync/internal/common"
	"github.com/ternarybob/sitesync/internal/interfaces"
	"github.com/ternarybob/sitesync/internal/models"
)

func newTestManager(t *testing.T) interfaces.StorageManager {
	t.Helper()
	manager, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func ledgerEntry(sourceID, url string, status models.URLStatus) *models.LedgerEntry {
	return &models.LedgerEntry{SourceID: sourceID, URL: url, Status: status}
}

func TestLedgerSaveAndGet(t *testing.T) {
	manager := newTestManager(t)
	ledger := manager.LedgerStorage()
	ctx := context.Background()

	entry := ledgerEntry("src_1", "https://a.com/page", models.URLStatusSynced)
	entry.Title = "Page"
	entry.ContentHash = "abc123"
	require.NoError(t, ledger.SaveEntry(ctx, entry))

	assert.False(t, entry.FirstSeenAt.IsZero())
	assert.False(t, entry.UpdatedAt.IsZero())

	loaded, err := ledger.GetEntry(ctx, "src_1", "https://a.com/page")
	require.NoError(t, err)
	assert.Equal(t, "abc123", loaded.ContentHash)
	assert.Equal(t, models.URLStatusSynced, loaded.Status)
}

func TestLedgerGetMissing(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.LedgerStorage().GetEntry(context.Background(), "src_1", "https://a.com/nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLedgerEntriesScopedToSource(t *testing.T) {
	manager := newTestManager(t)
	ledger := manager.LedgerStorage()
	ctx := context.Background()

	require.NoError(t, ledger.SaveEntry(ctx, ledgerEntry("src_1", "https://a.com/1", models.URLStatusSynced)))
	require.NoError(t, ledger.SaveEntry(ctx, ledgerEntry("src_2", "https://a.com/1", models.URLStatusFailed)))

	entries, err := ledger.ListBySource(ctx, "src_1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.URLStatusSynced, entries[0].Status)
}

func TestLedgerListEntries_StatusFilter(t *testing.T) {
	manager := newTestManager(t)
	ledger := manager.LedgerStorage()
	ctx := context.Background()

	require.NoError(t, ledger.SaveEntry(ctx, ledgerEntry("src_1", "https://a.com/1", models.URLStatusSynced)))
	require.NoError(t, ledger.SaveEntry(ctx, ledgerEntry("src_1", "https://a.com/2", models.URLStatusFailed)))
	require.NoError(t, ledger.SaveEntry(ctx, ledgerEntry("src_1", "https://a.com/3", models.URLStatusSynced)))

	entries, total, err := ledger.ListEntries(ctx, "src_1", &interfaces.LedgerListOptions{Status: models.URLStatusSynced})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, entries, 2)
}

func TestLedgerListEntries_Search(t *testing.T) {
	manager := newTestManager(t)
	ledger := manager.LedgerStorage()
	ctx := context.Background()

	install := ledgerEntry("src_1", "https://a.com/docs/install", models.URLStatusSynced)
	install.Title = "Installation Guide"
	require.NoError(t, ledger.SaveEntry(ctx, install))

	pricing := ledgerEntry("src_1", "https://a.com/pricing", models.URLStatusSynced)
	pricing.Title = "Pricing"
	require.NoError(t, ledger.SaveEntry(ctx, pricing))

	entries, total, err := ledger.ListEntries(ctx, "src_1", &interfaces.LedgerListOptions{Search: "INSTALL"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://a.com/docs/install", entries[0].URL)

	// Title matches too.
	entries, total, err = ledger.ListEntries(ctx, "src_1", &interfaces.LedgerListOptions{Search: "pricing"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, entries, 1)
}

func TestLedgerListEntries_Pagination(t *testing.T) {
	manager := newTestManager(t)
	ledger := manager.LedgerStorage()
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		url := fmt.Sprintf("https://a.com/page-%02d", i)
		require.NoError(t, ledger.SaveEntry(ctx, ledgerEntry("src_1", url, models.URLStatusSynced)))
	}

	page0, total, err := ledger.ListEntries(ctx, "src_1", &interfaces.LedgerListOptions{Page: 0, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Len(t, page0, 10)

	page2, total, err := ledger.ListEntries(ctx, "src_1", &interfaces.LedgerListOptions{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Len(t, page2, 5)

	// Past the end yields an empty page, not an error.
	page9, total, err := ledger.ListEntries(ctx, "src_1", &interfaces.LedgerListOptions{Page: 9, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Empty(t, page9)
}

func TestLedgerMarkDeleted(t *testing.T) {
	manager := newTestManager(t)
	ledger := manager.LedgerStorage()
	ctx := context.Background()

	require.NoError(t, ledger.SaveEntry(ctx, ledgerEntry("src_1", "https://a.com/1", models.URLStatusSynced)))
	require.NoError(t, ledger.SaveEntry(ctx, ledgerEntry("src_1", "https://a.com/2", models.URLStatusSynced)))

	// Unknown URLs are skipped, not errors.
	require.NoError(t, ledger.MarkDeleted(ctx, "src_1", []string{"https://a.com/1", "https://a.com/ghost"}))

	one, err := ledger.GetEntry(ctx, "src_1", "https://a.com/1")
	require.NoError(t, err)
	assert.Equal(t, models.URLStatusDeleted, one.Status)

	two, err := ledger.GetEntry(ctx, "src_1", "https://a.com/2")
	require.NoError(t, err)
	assert.Equal(t, models.URLStatusSynced, two.Status)
}

func TestLedgerCountByStatus(t *testing.T) {
	manager := newTestManager(t)
	ledger := manager.LedgerStorage()
	ctx := context.Background()

	require.NoError(t, ledger.SaveEntry(ctx, ledgerEntry("src_1", "https://a.com/1", models.URLStatusSynced)))
	require.NoError(t, ledger.SaveEntry(ctx, ledgerEntry("src_1", "https://a.com/2", models.URLStatusSynced)))
	require.NoError(t, ledger.SaveEntry(ctx, ledgerEntry("src_1", "https://a.com/3", models.URLStatusFailed)))
	require.NoError(t, ledger.SaveEntry(ctx, ledgerEntry("src_1", "https://a.com/4", models.URLStatusDeleted)))

	counts, err := ledger.CountByStatus(ctx, "src_1")
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.URLStatusSynced])
	assert.Equal(t, 1, counts[models.URLStatusFailed])
	assert.Equal(t, 1, counts[models.URLStatusDeleted])
}

func TestLedgerDeleteBySource(t *testing.T) {
	manager := newTestManager(t)
	ledger := manager.LedgerStorage()
	ctx := context.Background()

	require.NoError(t, ledger.SaveEntry(ctx, ledgerEntry("src_1", "https://a.com/1", models.URLStatusSynced)))
	require.NoError(t, ledger.SaveEntry(ctx, ledgerEntry("src_2", "https://b.com/1", models.URLStatusSynced)))

	require.NoError(t, ledger.DeleteBySource(ctx, "src_1"))

	gone, err := ledger.ListBySource(ctx, "src_1")
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := ledger.ListBySource(ctx, "src_2")
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}
