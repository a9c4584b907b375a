package funnelpages

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a requested page or version does not exist.
var ErrNotFound = sql.ErrNoRows

// ErrKind classifies every failure this package reports. Handlers map kinds
// to HTTP statuses and the log sink keys off them.
type ErrKind string

const (
	KindNoContent           ErrKind = "no_content"
	KindIncompleteStructure ErrKind = "incomplete_structure"
	KindRenderTimeout       ErrKind = "render_timeout"
	KindRenderFailure       ErrKind = "render_failure"
	KindFetchError          ErrKind = "fetch_error"
	KindNotFound            ErrKind = "not_found"
	KindRestoreFailed       ErrKind = "restore_failed"
)

// PageError is the structured error for page and version operations. It
// carries enough context (page id, version id, kind) for an external log
// sink to act without ever including HTML payloads.
type PageError struct {
	Kind      ErrKind
	PageID    string
	VersionID string
	Err       error
}

func (e *PageError) Error() string {
	msg := "funnelpages: " + string(e.Kind)
	if e.PageID != "" {
		msg += " page=" + e.PageID
	}
	if e.VersionID != "" {
		msg += " version=" + e.VersionID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PageError) Unwrap() error { return e.Err }

// IsKind reports whether err is a PageError of the given kind.
func IsKind(err error, kind ErrKind) bool {
	var pe *PageError
	return errors.As(err, &pe) && pe.Kind == kind
}

// pageErr builds a PageError wrapping cause, which may be nil.
func pageErr(kind ErrKind, pageID, versionID string, cause error) *PageError {
	return &PageError{Kind: kind, PageID: pageID, VersionID: versionID, Err: cause}
}

// fetchErr wraps a transport or non-2xx failure from the version API.
func fetchErr(pageID string, cause error) *PageError {
	return pageErr(KindFetchError, pageID, "", cause)
}

// restoreErr wraps a failed restore. The page's current content is left
// untouched whenever this is returned.
func restoreErr(pageID, versionID string, cause error) *PageError {
	return pageErr(KindRestoreFailed, pageID, versionID, cause)
}
