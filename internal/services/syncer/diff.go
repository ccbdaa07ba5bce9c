package syncer

import (
	"github.com/ternarybob/sitesync/internal/models"
)

// diffResult partitions a discovery result against the ledger. Updated vs
// unchanged for existing URLs is decided later, after fetching, by comparing
// content hashes; the diff only decides what to fetch and what to soft-delete.
type diffResult struct {
	// NewURLs are discovered URLs with no live ledger entry. A URL whose
	// entry was previously soft-deleted and which reappears in the sitemap
	// counts as new again.
	NewURLs []string

	// ExistingURLs are discovered URLs with a live ledger entry. They are
	// fetched and hash-compared to classify as updated or unchanged.
	ExistingURLs []string

	// DeletedURLs are live ledger URLs absent from this discovery.
	DeletedURLs []string
}

// computeDiff compares discovered URLs against the source's ledger entries.
// Soft-deleted entries are not live: they neither suppress re-addition nor
// get re-deleted.
func computeDiff(discovered []string, entries []*models.LedgerEntry) *diffResult {
	result := &diffResult{}

	live := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.Status != models.URLStatusDeleted {
			live[entry.URL] = true
		}
	}

	inSitemap := make(map[string]bool, len(discovered))
	for _, url := range discovered {
		inSitemap[url] = true
		if live[url] {
			result.ExistingURLs = append(result.ExistingURLs, url)
		} else {
			result.NewURLs = append(result.NewURLs, url)
		}
	}

	for _, entry := range entries {
		if entry.Status != models.URLStatusDeleted && !inSitemap[entry.URL] {
			result.DeletedURLs = append(result.DeletedURLs, entry.URL)
		}
	}

	return result
}
