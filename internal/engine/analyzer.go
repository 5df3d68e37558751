package engine

import (
	"context"

	"squiggle/internal/diag"
	"squiggle/internal/source"
)

// Analyzer inspects one snapshot and reports findings of a single kind.
// Implementations must be safe for concurrent use on different snapshots.
type Analyzer interface {
	Name() string
	Kind() diag.Kind
	Analyze(ctx context.Context, snap *source.Snapshot, r diag.Reporter) error
}

// DefaultLineWidth is the display width past which lines are reported.
const DefaultLineWidth = 100

// DefaultAnalyzers returns one analyzer for every kind.
func DefaultAnalyzers(lineWidth int) []Analyzer {
	return []Analyzer{
		Brackets{},
		Whitespace{MaxWidth: lineWidth},
		Bindings{},
		Markers{},
	}
}

func location(snap *source.Snapshot, start, end int) diag.Location {
	return diag.Location{Document: snap.Document(), Span: source.NewSpan(start, end)}
}
