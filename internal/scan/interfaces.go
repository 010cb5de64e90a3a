package scan

import (
	"context"
	"time"
)

// Source lazily produces identifiers from the input dump. Next returns
// io.EOF once the stream is exhausted and a *SourceError if the stream
// itself is unreadable. Single-pass: a fresh Source must be constructed to
// re-scan. Implementations release the underlying handle on exhaustion or
// error; Close is idempotent.
type Source interface {
	Next(ctx context.Context) (Identifier, error)
	Close() error
}

// Fetcher resolves one identifier to its classification flag. Safe for
// concurrent use; a failed fetch returns a *FetchError and must not affect
// any other invocation.
type Fetcher interface {
	Fetch(ctx context.Context, id Identifier) (Flag, error)
}

// Sink appends completed rows to the durable report. Only the coordinator's
// writer goroutine may call Append; that single-writer rule is what keeps
// the at-most-once row invariant intact under concurrency.
type Sink interface {
	Append(row Row) error
	Close() error
}

// Classifier decides the flag from a fetched page body.
type Classifier interface {
	Classify(body []byte) (Flag, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
