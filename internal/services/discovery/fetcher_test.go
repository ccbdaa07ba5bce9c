package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/sitesync/internal/common"
	"github.com/ternarybob/sitesync/internal/models"
)

func testConfig() common.DiscoveryConfig {
	return common.DiscoveryConfig{
		RequestTimeout: 5 * time.Second,
		RetryAttempts:  2,
		RetryBackoff:   10 * time.Millisecond,
		MaxIndexDepth:  3,
	}
}

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	return NewFetcher(testConfig(), arbor.NewLogger()).(*Fetcher)
}

const urlSetXML = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://a.com/docs/x</loc><lastmod>2025-01-01</lastmod></url>
  <url><loc>https://a.com/blog/y</loc></url>
  <url><loc>https://a.com/docs/z</loc></url>
</urlset>`

func TestDiscover_URLSet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(urlSetXML))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)
	urls, err := fetcher.Discover(context.Background(), server.URL+"/sitemap.xml", "")

	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.com/docs/x", "https://a.com/blog/y", "https://a.com/docs/z"}, urls)
}

func TestDiscover_BaseURLFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(urlSetXML))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)
	urls, err := fetcher.Discover(context.Background(), server.URL+"/sitemap.xml", "https://a.com/docs")

	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.com/docs/x", "https://a.com/docs/z"}, urls)
}

func TestDiscover_EmptySitemap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"></urlset>`))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)
	urls, err := fetcher.Discover(context.Background(), server.URL+"/sitemap.xml", "")

	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestDiscover_SitemapIndex(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>` + server.URL + `/sitemap-a.xml</loc></sitemap>
  <sitemap><loc>` + server.URL + `/sitemap-b.xml</loc></sitemap>
</sitemapindex>`))
	})
	mux.HandleFunc("/sitemap-a.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://a.com/p1</loc></url>
  <url><loc>https://a.com/p2</loc></url>
</urlset>`))
	})
	mux.HandleFunc("/sitemap-b.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://a.com/p2</loc></url>
  <url><loc>https://a.com/p3</loc></url>
</urlset>`))
	})

	fetcher := newTestFetcher(t)
	urls, err := fetcher.Discover(context.Background(), server.URL+"/sitemap.xml", "")

	require.NoError(t, err)
	// p2 appears in both children and must be deduplicated.
	assert.Equal(t, []string{"https://a.com/p1", "https://a.com/p2", "https://a.com/p3"}, urls)
}

func TestDiscover_ChildSitemapFailureIsFatal(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>` + server.URL + `/missing.xml</loc></sitemap>
</sitemapindex>`))
	})
	mux.HandleFunc("/missing.xml", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	fetcher := newTestFetcher(t)
	_, err := fetcher.Discover(context.Background(), server.URL+"/sitemap.xml", "")

	var discErr *models.DiscoveryError
	require.ErrorAs(t, err, &discErr)
	assert.Equal(t, models.DiscoveryUnreachable, discErr.Kind)
}

func TestDiscover_IndexCycleTerminates(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>` + server.URL + `/sitemap.xml</loc></sitemap>
</sitemapindex>`))
	})

	fetcher := newTestFetcher(t)
	urls, err := fetcher.Discover(context.Background(), server.URL+"/sitemap.xml", "")

	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestDiscover_InvalidXML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>not a sitemap</body></html>`))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)
	_, err := fetcher.Discover(context.Background(), server.URL+"/sitemap.xml", "")

	var discErr *models.DiscoveryError
	require.ErrorAs(t, err, &discErr)
	assert.Equal(t, models.DiscoveryInvalidXML, discErr.Kind)
}

func TestDiscover_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)
	_, err := fetcher.Discover(context.Background(), server.URL+"/sitemap.xml", "")

	var discErr *models.DiscoveryError
	require.ErrorAs(t, err, &discErr)
	assert.Equal(t, models.DiscoveryUnreachable, discErr.Kind)
}

func TestDiscover_RetriesBeforeFailing(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(urlSetXML))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)
	urls, err := fetcher.Discover(context.Background(), server.URL+"/sitemap.xml", "")

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Len(t, urls, 3)
}
