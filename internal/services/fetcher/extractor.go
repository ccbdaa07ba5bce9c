package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/sitesync/internal/common"
	"github.com/ternarybob/sitesync/internal/interfaces"
	"github.com/ternarybob/sitesync/internal/models"
)

// noiseSelectors are stripped from every page before extraction regardless of
// source configuration.
const noiseSelectors = "script, style, noscript, iframe"

var multiBlankLines = regexp.MustCompile(`\n{3,}`)

// Extractor fetches a page, applies the source's include/exclude selectors,
// and normalizes the remaining content to markdown. All outbound requests
// share one rate limiter so the worker pool cannot stampede a site.
type Extractor struct {
	client  *http.Client
	limiter *rate.Limiter
	retry   *retryPolicy
	config  common.FetcherConfig
	logger  arbor.ILogger
}

// NewExtractor creates a content extractor.
func NewExtractor(config common.FetcherConfig, logger arbor.ILogger) interfaces.ContentFetcher {
	rps := config.RequestsPerSec
	if rps <= 0 {
		rps = 4
	}
	return &Extractor{
		client:  &http.Client{Timeout: config.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retry:   newRetryPolicy(config),
		config:  config,
		logger:  logger,
	}
}

// Fetch retrieves url, applies contentSelectors (include) and excludeSelectors
// (remove), and returns markdown content with its hash. Every failure mode is
// a *models.FetchError so callers can record it without aborting the run.
func (e *Extractor) Fetch(ctx context.Context, url string, contentSelectors, excludeSelectors []string) (*models.ExtractedContent, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, models.NewFetchError(models.FetchTimeout, url, "canceled waiting for rate limiter", err)
	}

	html, err := e.fetchHTML(ctx, url)
	if err != nil {
		return nil, err
	}

	content, err := e.extract(url, html, contentSelectors, excludeSelectors)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("url", url).
		Int("word_count", content.WordCount).
		Str("content_hash", content.ContentHash).
		Msg("Page content extracted")

	return content, nil
}

func (e *Extractor) fetchHTML(ctx context.Context, url string) (string, error) {
	var body []byte

	statusCode, err := e.retry.execute(ctx, e.logger, url, func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("User-Agent", e.config.UserAgent)
		req.Header.Set("Accept", "text/html, application/xhtml+xml")

		resp, err := e.client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, e.config.MaxBodySize))
		if err != nil {
			return resp.StatusCode, fmt.Errorf("reading response: %w", err)
		}
		return resp.StatusCode, nil
	})

	if err != nil {
		if isTimeout(err) {
			return "", models.NewFetchError(models.FetchTimeout, url,
				fmt.Sprintf("request timed out after %d attempts", e.retry.maxAttempts), err)
		}
		if statusCode > 0 {
			return "", models.NewFetchError(models.FetchHTTPError, url,
				fmt.Sprintf("server returned status %d", statusCode), err)
		}
		return "", models.NewFetchError(models.FetchHTTPError, url, "request failed", err)
	}

	return string(body), nil
}

// extract applies selectors and converts the selected HTML to markdown.
func (e *Extractor) extract(url, html string, contentSelectors, excludeSelectors []string) (*models.ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, models.NewFetchError(models.FetchExtractionEmpty, url, "failed to parse HTML", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find(noiseSelectors).Remove()
	for _, selector := range excludeSelectors {
		if selector = strings.TrimSpace(selector); selector != "" {
			doc.Find(selector).Remove()
		}
	}

	selectedHTML, err := e.selectContent(doc, contentSelectors)
	if err != nil {
		return nil, models.NewFetchError(models.FetchExtractionEmpty, url, "failed to read selected content", err)
	}

	converter := md.NewConverter(url, true, nil)
	markdown, err := converter.ConvertString(selectedHTML)
	if err != nil {
		return nil, models.NewFetchError(models.FetchExtractionEmpty, url, "markdown conversion failed", err)
	}

	markdown = normalizeMarkdown(markdown)
	if markdown == "" {
		return nil, models.NewFetchError(models.FetchExtractionEmpty, url, "no content after selector extraction", nil)
	}

	return &models.ExtractedContent{
		URL:         url,
		Title:       title,
		Content:     markdown,
		ContentHash: hashContent(markdown),
		WordCount:   len(strings.Fields(markdown)),
	}, nil
}

// selectContent returns the HTML of the include-selector matches, or the whole
// body when no selectors are configured. Matches are concatenated in document
// order.
func (e *Extractor) selectContent(doc *goquery.Document, contentSelectors []string) (string, error) {
	selectors := make([]string, 0, len(contentSelectors))
	for _, s := range contentSelectors {
		if s = strings.TrimSpace(s); s != "" {
			selectors = append(selectors, s)
		}
	}

	if len(selectors) == 0 {
		return doc.Find("body").Html()
	}

	var parts []string
	var htmlErr error
	doc.Find(strings.Join(selectors, ", ")).Each(func(_ int, s *goquery.Selection) {
		part, err := goquery.OuterHtml(s)
		if err != nil {
			htmlErr = err
			return
		}
		parts = append(parts, part)
	})
	if htmlErr != nil {
		return "", htmlErr
	}

	return strings.Join(parts, "\n"), nil
}

// normalizeMarkdown trims trailing whitespace per line and collapses runs of
// blank lines so that cosmetic-only upstream changes do not alter the hash.
func normalizeMarkdown(markdown string) string {
	lines := strings.Split(markdown, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	normalized := strings.Join(lines, "\n")
	normalized = multiBlankLines.ReplaceAllString(normalized, "\n\n")
	return strings.TrimSpace(normalized)
}

// hashContent returns the hex SHA-256 of the normalized content.
func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
