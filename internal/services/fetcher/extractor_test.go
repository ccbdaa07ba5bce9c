package fetcher

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

func testConfig() common.FetcherConfig {
	return common.FetcherConfig{
		UserAgent:      "sitesync-test",
		RequestTimeout: 5 * time.Second,
		RetryAttempts:  2,
		RetryBackoff:   10 * time.Millisecond,
		RequestsPerSec: 1000,
		MaxBodySize:    10 * 1024 * 1024,
	}
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	return NewExtractor(testConfig(), arbor.NewLogger()).(*Extractor)
}

const pageHTML = `<!DOCTYPE html>
<html>
<head><title>Install Guide</title></head>
<body>
  <nav class="sidebar">Navigation links</nav>
  <article class="docs-content">
    <h1>Installation</h1>
    <p>Run the installer and follow the prompts.</p>
    <div class="ad-banner">Buy now!</div>
  </article>
  <footer>Copyright</footer>
</body>
</html>`

func TestFetch_AppliesSelectors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sitesync-test", r.Header.Get("User-Agent"))
		w.Write([]byte(pageHTML))
	}))
	defer server.Close()

	extractor := newTestExtractor(t)
	content, err := extractor.Fetch(context.Background(), server.URL+"/docs/install",
		[]string{"article.docs-content"}, []string{".ad-banner"})

	require.NoError(t, err)
	assert.Equal(t, "Install Guide", content.Title)
	assert.Contains(t, content.Content, "Installation")
	assert.Contains(t, content.Content, "Run the installer")
	assert.NotContains(t, content.Content, "Navigation links")
	assert.NotContains(t, content.Content, "Buy now")
	assert.NotContains(t, content.Content, "Copyright")
	assert.NotEmpty(t, content.ContentHash)
	assert.Greater(t, content.WordCount, 0)
}

func TestFetch_NoSelectorsUsesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pageHTML))
	}))
	defer server.Close()

	extractor := newTestExtractor(t)
	content, err := extractor.Fetch(context.Background(), server.URL+"/docs/install", nil, nil)

	require.NoError(t, err)
	assert.Contains(t, content.Content, "Installation")
	assert.Contains(t, content.Content, "Navigation links")
}

func TestFetch_HashStableAcrossWhitespaceChanges(t *testing.T) {
	pages := []string{
		"<html><body><article><p>Same content here.</p></article></body></html>",
		"<html><body><article>\n\n  <p>Same content here.</p>\n\n\n</article></body></html>",
	}
	var hashes []string
	for _, page := range pages {
		page := page
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(page))
		}))
		extractor := newTestExtractor(t)
		content, err := extractor.Fetch(context.Background(), server.URL, []string{"article"}, nil)
		server.Close()
		require.NoError(t, err)
		hashes = append(hashes, content.ContentHash)
	}
	assert.Equal(t, hashes[0], hashes[1])
}

func TestFetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	extractor := newTestExtractor(t)
	_, err := extractor.Fetch(context.Background(), server.URL+"/gone", nil, nil)

	var fetchErr *models.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, models.FetchHTTPError, fetchErr.Kind)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(pageHTML))
	}))
	defer server.Close()

	extractor := newTestExtractor(t)
	content, err := extractor.Fetch(context.Background(), server.URL, []string{"article.docs-content"}, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Contains(t, content.Content, "Installation")
}

func TestFetch_NoRetryOnClientError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	extractor := newTestExtractor(t)
	_, err := extractor.Fetch(context.Background(), server.URL, nil, nil)

	var fetchErr *models.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, models.FetchHTTPError, fetchErr.Kind)
	assert.Equal(t, 1, attempts)
}

func TestFetch_ExtractionEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>text outside the selector</p></body></html>`))
	}))
	defer server.Close()

	extractor := newTestExtractor(t)
	_, err := extractor.Fetch(context.Background(), server.URL, []string{"article.missing"}, nil)

	var fetchErr *models.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, models.FetchExtractionEmpty, fetchErr.Kind)
}

func TestFetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(pageHTML))
	}))
	defer server.Close()

	config := testConfig()
	config.RequestTimeout = 50 * time.Millisecond
	config.RetryAttempts = 1
	extractor := NewExtractor(config, arbor.NewLogger()).(*Extractor)

	_, err := extractor.Fetch(context.Background(), server.URL, nil, nil)

	var fetchErr *models.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, models.FetchTimeout, fetchErr.Kind)
}

func TestNormalizeMarkdown(t *testing.T) {
	input := "# Title   \n\n\n\nBody line.  \n\n\n"
	assert.Equal(t, "# Title\n\nBody line.", normalizeMarkdown(input))
}
