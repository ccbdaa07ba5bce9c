package models

import (
	"errors"
	"fmt"
)

// DiscoveryErrorKind classifies discovery-phase failures. Unreachable and
// invalid XML abort the run; an empty sitemap is not an error.
type DiscoveryErrorKind string

const (
	DiscoveryUnreachable DiscoveryErrorKind = "unreachable"
	DiscoveryInvalidXML  DiscoveryErrorKind = "invalid_xml"
)

// DiscoveryError is a fatal-to-run failure from the discovery fetcher.
type DiscoveryError struct {
	Kind    DiscoveryErrorKind
	Message string
	Err     error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("discovery %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("discovery %s: %s", e.Kind, e.Message)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// NewDiscoveryError creates a DiscoveryError with the given kind.
func NewDiscoveryError(kind DiscoveryErrorKind, message string, err error) *DiscoveryError {
	return &DiscoveryError{Kind: kind, Message: message, Err: err}
}

// FetchErrorKind classifies per-URL fetch failures. None of these abort a
// run; the orchestrator records them and continues.
type FetchErrorKind string

const (
	FetchHTTPError       FetchErrorKind = "http_error"
	FetchTimeout         FetchErrorKind = "timeout"
	FetchExtractionEmpty FetchErrorKind = "extraction_empty"
)

// FetchError is a per-URL failure from the content fetcher.
type FetchError struct {
	Kind    FetchErrorKind
	URL     string
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Kind, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a FetchError with the given kind.
func NewFetchError(kind FetchErrorKind, url, message string, err error) *FetchError {
	return &FetchError{Kind: kind, URL: url, Message: message, Err: err}
}

// ErrSyncInProgress is returned by a trigger when the source already has an
// active job. It carries the existing job ID so callers can poll it instead.
type ErrSyncInProgress struct {
	SourceID string
	JobID    string
}

func (e *ErrSyncInProgress) Error() string {
	return fmt.Sprintf("sync already in progress for source %s (job %s)", e.SourceID, e.JobID)
}

// AsSyncInProgress extracts an ErrSyncInProgress from an error chain.
func AsSyncInProgress(err error) (*ErrSyncInProgress, bool) {
	var conflict *ErrSyncInProgress
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}

// ErrNotFound is the sentinel for missing sources, jobs, and ledger rows.
var ErrNotFound = errors.New("not found")
