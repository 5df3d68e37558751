// Package fetch retrieves one diagnostic kind for a document and turns it
// into decoration candidates on a requested snapshot.
package fetch

import (
	"context"
	"errors"

	"squiggle/internal/coalesce"
	"squiggle/internal/decor"
	"squiggle/internal/diag"
	"squiggle/internal/source"
	"squiggle/internal/trace"
)

// ErrClosed is returned by fetchers used after Close.
var ErrClosed = errors.New("fetcher closed")

// Request selects the snapshot and ranges a pass wants decorations for.
type Request struct {
	Snapshot *source.Snapshot
	// Ranges limits results to candidates intersecting at least one span.
	// Empty means the whole snapshot.
	Ranges            []source.Span
	IncludeSuppressed bool
}

func (r Request) cover() source.Span {
	if len(r.Ranges) == 0 {
		return r.Snapshot.Span()
	}
	c := r.Ranges[0]
	for _, s := range r.Ranges[1:] {
		c = c.Cover(s)
	}
	return c
}

// Batch is one kind's result for one request.
type Batch struct {
	Kind        diag.Kind
	Snapshot    *source.Snapshot
	Decorations []decor.Decoration
	// Skipped counts diagnostics dropped because their location did not fit.
	Skipped int
	// Fallbacks counts push locations read on the current snapshot because
	// their origin snapshot was unknown or unusable.
	Fallbacks int
	// Truncated is set when the diagnostic limit cut the batch short.
	Truncated bool
}

// Fetcher produces decorations for exactly one kind.
type Fetcher interface {
	Kind() diag.Kind
	Fetch(ctx context.Context, req Request) (Batch, error)
	// Watch streams DiagnosticsChanged signals for doc until ctx is done.
	Watch(ctx context.Context, doc source.DocumentID) <-chan coalesce.Signal
	Close() error
}

// Buffers is the slice of the buffer host fetchers need.
type Buffers interface {
	IsOpen(doc source.DocumentID) bool
	CurrentSnapshot(doc source.DocumentID) (*source.Snapshot, bool)
}

// Options are shared by pull and push fetchers.
type Options struct {
	Classify decor.Classifier
	// Limiter rate-limits out-of-range reports; nil reports every skip.
	Limiter *trace.Limiter
	// MaxDiagnostics caps decorations per batch; 0 means no cap.
	MaxDiagnostics int
}
