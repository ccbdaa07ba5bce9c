package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitesync/internal/common"
	"github.com/ternarybob/sitesync/internal/interfaces"
	"github.com/ternarybob/sitesync/internal/models"
)

// maxSitemapSize caps how much XML we will read from a single sitemap
// document. Sitemaps larger than this are almost certainly not sitemaps.
const maxSitemapSize = 50 * 1024 * 1024

// sitemapURLSet is the <urlset> document form.
type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// sitemapIndex is the <sitemapindex> document form, referencing child sitemaps.
type sitemapIndex struct {
	XMLName  xml.Name         `xml:"sitemapindex"`
	Sitemaps []sitemapIndexEntry `xml:"sitemap"`
}

type sitemapIndexEntry struct {
	Loc string `xml:"loc"`
}

// Fetcher retrieves sitemaps over HTTP and enumerates the URLs they contain,
// following sitemap-index references up to a fixed depth.
type Fetcher struct {
	client *http.Client
	config common.DiscoveryConfig
	logger arbor.ILogger
}

// NewFetcher creates a discovery fetcher.
func NewFetcher(config common.DiscoveryConfig, logger arbor.ILogger) interfaces.DiscoveryFetcher {
	return &Fetcher{
		client: &http.Client{Timeout: config.RequestTimeout},
		config: config,
		logger: logger,
	}
}

// Discover fetches the sitemap at sitemapURL and returns all page URLs it
// (transitively) lists, deduplicated, in document order. When baseURLFilter is
// non-empty, only URLs with that prefix are returned. An empty result is not
// an error.
func (f *Fetcher) Discover(ctx context.Context, sitemapURL, baseURLFilter string) ([]string, error) {
	seen := make(map[string]struct{})
	visited := make(map[string]struct{})

	urls, err := f.discover(ctx, sitemapURL, baseURLFilter, 0, seen, visited)
	if err != nil {
		return nil, err
	}

	f.logger.Info().
		Str("sitemap_url", sitemapURL).
		Int("url_count", len(urls)).
		Msg("Sitemap discovery completed")

	return urls, nil
}

func (f *Fetcher) discover(ctx context.Context, sitemapURL, baseURLFilter string, depth int, seen, visited map[string]struct{}) ([]string, error) {
	if depth > f.config.MaxIndexDepth {
		return nil, models.NewDiscoveryError(models.DiscoveryInvalidXML,
			fmt.Sprintf("sitemap index nesting exceeds depth %d at %s", f.config.MaxIndexDepth, sitemapURL), nil)
	}
	if _, ok := visited[sitemapURL]; ok {
		// Cycle in the index graph, already enumerated.
		return nil, nil
	}
	visited[sitemapURL] = struct{}{}

	body, err := f.fetchWithRetry(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	// A sitemap document is either a <urlset> or a <sitemapindex>. Try the
	// urlset form first since it is the common case.
	var urlSet sitemapURLSet
	if err := xml.Unmarshal(body, &urlSet); err == nil && urlSet.XMLName.Local == "urlset" {
		var urls []string
		for _, entry := range urlSet.URLs {
			loc := strings.TrimSpace(entry.Loc)
			if loc == "" {
				continue
			}
			if baseURLFilter != "" && !strings.HasPrefix(loc, baseURLFilter) {
				continue
			}
			if _, ok := seen[loc]; ok {
				continue
			}
			seen[loc] = struct{}{}
			urls = append(urls, loc)
		}
		return urls, nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && index.XMLName.Local == "sitemapindex" {
		var urls []string
		for _, child := range index.Sitemaps {
			loc := strings.TrimSpace(child.Loc)
			if loc == "" {
				continue
			}
			childURLs, err := f.discover(ctx, loc, baseURLFilter, depth+1, seen, visited)
			if err != nil {
				// A failed child sitemap aborts the whole run; partial
				// enumeration would be misread as mass deletion.
				return nil, err
			}
			urls = append(urls, childURLs...)
		}
		return urls, nil
	}

	return nil, models.NewDiscoveryError(models.DiscoveryInvalidXML,
		fmt.Sprintf("response from %s is not a sitemap or sitemap index", sitemapURL), nil)
}

// fetchWithRetry retrieves one sitemap document, retrying transient failures
// with exponential backoff before surfacing an unreachable error.
func (f *Fetcher) fetchWithRetry(ctx context.Context, sitemapURL string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= f.config.RetryAttempts; attempt++ {
		if attempt > 1 {
			backoff := f.config.RetryBackoff * time.Duration(1<<(attempt-2))
			f.logger.Debug().
				Str("sitemap_url", sitemapURL).
				Int("attempt", attempt).
				Str("backoff", backoff.String()).
				Msg("Retrying sitemap fetch")
			select {
			case <-ctx.Done():
				return nil, models.NewDiscoveryError(models.DiscoveryUnreachable,
					fmt.Sprintf("fetching %s canceled", sitemapURL), ctx.Err())
			case <-time.After(backoff):
			}
		}

		body, err := f.fetchOnce(ctx, sitemapURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		f.logger.Warn().
			Err(err).
			Str("sitemap_url", sitemapURL).
			Int("attempt", attempt).
			Int("max_attempts", f.config.RetryAttempts).
			Msg("Sitemap fetch attempt failed")
	}

	return nil, models.NewDiscoveryError(models.DiscoveryUnreachable,
		fmt.Sprintf("failed to fetch %s after %d attempts", sitemapURL, f.config.RetryAttempts), lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, sitemapURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapSize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return body, nil
}
