package models

// ExtractedContent is the result of fetching and extracting one URL: the
// normalized markdown representation plus the deterministic hash used for
// change detection.
type ExtractedContent struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Content     string `json:"content"` // Normalized markdown
	ContentHash string `json:"content_hash"`
	WordCount   int    `json:"word_count"`
}
