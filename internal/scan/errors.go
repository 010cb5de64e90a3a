package scan

import (
	"fmt"
)

// SourceError marks the input stream itself as unreadable or corrupt.
// It is fatal: the coordinator aborts the run when the source surfaces one.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source: %v", e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// FetchErrorKind distinguishes terminal fetch failure modes.
type FetchErrorKind string

// Fetch failure kinds.
const (
	KindTimeout           FetchErrorKind = "timeout"
	KindConnectionRefused FetchErrorKind = "connection_refused"
	KindHTTPStatus        FetchErrorKind = "http_status"
	KindParseFailure      FetchErrorKind = "parse_failure"
)

// FetchError is a per-identifier failure surfaced after the retry budget is
// exhausted (or immediately for non-transient failures). It is never fatal
// to the run; the coordinator records it and moves on.
type FetchError struct {
	ID       Identifier
	Kind     FetchErrorKind
	Status   int
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d, %d attempts): %v", e.ID, e.Kind, e.Status, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s (%d attempts): %v", e.ID, e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// SinkError marks a durable-write failure. Fatal: once an append fails the
// report's integrity can no longer be guaranteed, so the run aborts.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink: %v", e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// ResumeError marks an existing report that could not be read back at
// startup. Fatal only when the caller explicitly requested resume.
type ResumeError struct {
	Path string
	Err  error
}

func (e *ResumeError) Error() string {
	return fmt.Sprintf("resume load %s: %v", e.Path, e.Err)
}

func (e *ResumeError) Unwrap() error {
	return e.Err
}
