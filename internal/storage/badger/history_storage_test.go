package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/sitesync/internal/models"
)

func historyEntry(id, sourceID string, startedAt time.Time, status models.RunStatus) *models.SyncHistoryEntry {
	return &models.SyncHistoryEntry{
		ID:        id,
		SourceID:  sourceID,
		SyncType:  models.SyncTypeManual,
		StartedAt: startedAt,
		Status:    status,
	}
}

func TestHistoryAppendAndList(t *testing.T) {
	manager := newTestManager(t)
	history := manager.HistoryStorage()
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	require.NoError(t, history.AppendEntry(ctx, historyEntry("hist_1", "src_1", base, models.RunStatusSuccess)))
	require.NoError(t, history.AppendEntry(ctx, historyEntry("hist_2", "src_1", base.Add(10*time.Minute), models.RunStatusFailed)))
	require.NoError(t, history.AppendEntry(ctx, historyEntry("hist_3", "src_1", base.Add(20*time.Minute), models.RunStatusPartial)))
	require.NoError(t, history.AppendEntry(ctx, historyEntry("hist_x", "src_other", base, models.RunStatusSuccess)))

	entries, total, err := history.ListBySource(ctx, "src_1", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, entries, 3)

	// Newest first.
	assert.Equal(t, "hist_3", entries[0].ID)
	assert.Equal(t, "hist_2", entries[1].ID)
	assert.Equal(t, "hist_1", entries[2].ID)
}

func TestHistoryAppendIsInsertOnly(t *testing.T) {
	manager := newTestManager(t)
	history := manager.HistoryStorage()
	ctx := context.Background()

	entry := historyEntry("hist_1", "src_1", time.Now(), models.RunStatusSuccess)
	require.NoError(t, history.AppendEntry(ctx, entry))
	assert.Error(t, history.AppendEntry(ctx, entry), "duplicate ID must be rejected")
}

func TestHistoryPagination(t *testing.T) {
	manager := newTestManager(t)
	history := manager.HistoryStorage()
	ctx := context.Background()

	base := time.Now().Add(-24 * time.Hour)
	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("hist_%d", i)
		require.NoError(t, history.AppendEntry(ctx, historyEntry(id, "src_1", base.Add(time.Duration(i)*time.Hour), models.RunStatusSuccess)))
	}

	page0, total, err := history.ListBySource(ctx, "src_1", 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, page0, 3)
	assert.Equal(t, "hist_6", page0[0].ID)

	page2, total, err := history.ListBySource(ctx, "src_1", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, page2, 1)
	assert.Equal(t, "hist_0", page2[0].ID)
}

func TestHistoryDeleteBySource(t *testing.T) {
	manager := newTestManager(t)
	history := manager.HistoryStorage()
	ctx := context.Background()

	require.NoError(t, history.AppendEntry(ctx, historyEntry("hist_1", "src_1", time.Now(), models.RunStatusSuccess)))
	require.NoError(t, history.AppendEntry(ctx, historyEntry("hist_2", "src_2", time.Now(), models.RunStatusSuccess)))

	require.NoError(t, history.DeleteBySource(ctx, "src_1"))

	_, total, err := history.ListBySource(ctx, "src_1", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	_, total, err = history.ListBySource(ctx, "src_2", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
