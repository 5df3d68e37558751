package engine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sourcegraph/conc/panics"

	"squiggle/internal/diag"
	"squiggle/internal/source"
)

// nolintMarker silences every finding whose primary location starts on a line
// carrying it in a comment.
const nolintMarker = "nolint"

// Owner returns the owner identity of analyzer a running over doc.
func Owner(doc source.DocumentID, a Analyzer) diag.OwnerID {
	return diag.OwnerID(string(doc) + "/" + a.Name())
}

// nolintLines returns the 1-based lines whose comments contain nolintMarker.
func nolintLines(snap *source.Snapshot, classes []byteClass) map[int]bool {
	content := snap.Content()
	var lines map[int]bool
	for off := 0; ; {
		idx := bytes.Index(content[off:], []byte(nolintMarker))
		if idx < 0 {
			return lines
		}
		at := off + idx
		off = at + len(nolintMarker)
		if classes[at] != classComment {
			continue
		}
		if lines == nil {
			lines = make(map[int]bool)
		}
		lines[snap.LineOf(source.NewSpan(at, at).Start)] = true
	}
}

// collect runs a over snap and returns its findings deduplicated, sorted and
// stamped with the analyzer's owner. A panicking analyzer is reported as an
// error.
func collect(ctx context.Context, snap *source.Snapshot, a Analyzer, limit int) ([]diag.Diagnostic, error) {
	silenced := nolintLines(snap, classify(snap.Content()))
	bag := diag.NewBag(limit)
	reporter := diag.SuppressReporter{
		Next: diag.NewDedupReporter(diag.BagReporter{Bag: bag}),
		Suppressed: func(loc diag.Location) bool {
			return silenced[snap.LineOf(loc.Span.Start)]
		},
	}

	var err error
	if rec := panics.Try(func() { err = a.Analyze(ctx, snap, reporter) }); rec != nil {
		err = rec.AsError()
	}
	if err != nil {
		return nil, fmt.Errorf("analyzer %s: %w", a.Name(), err)
	}
	bag.Dedup()
	bag.Sort()
	bag.Stamp(Owner(snap.Document(), a))
	return bag.Items(), nil
}
