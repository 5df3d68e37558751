// Package testkit holds checks shared by tests of several packages.
package testkit

import (
	"fmt"

	"squiggle/internal/decor"
	"squiggle/internal/diag"
)

// CheckDecorations verifies the shape of a published set:
//  1. every span lies within the snapshot and is not inverted
//  2. no item renders as RenderNone
//  3. no diagnostic ID appears twice for the same kind and span
func CheckDecorations(set decor.Set) error {
	if len(set.Items) > 0 && set.Snapshot == nil {
		return fmt.Errorf("%d decorations without a snapshot", len(set.Items))
	}
	size := set.Snapshot.Len()
	type key struct {
		kind diag.Kind
		id   diag.ID
		s, e uint32
	}
	seen := make(map[key]struct{}, len(set.Items))
	for _, d := range set.Items {
		if d.Span.End < d.Span.Start {
			return fmt.Errorf("inverted span %s (%s)", d.Span, d.Diagnostic)
		}
		if d.Span.End > size {
			return fmt.Errorf("span %s beyond %s (length %d)", d.Span, set.Snapshot, size)
		}
		if d.Payload.Render == decor.RenderNone {
			return fmt.Errorf("decoration %s renders as none", d.Diagnostic)
		}
		k := key{kind: d.Kind, id: d.Diagnostic, s: d.Span.Start, e: d.Span.End}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("duplicate decoration %s at %s", d.Diagnostic, d.Span)
		}
		seen[k] = struct{}{}
	}
	return nil
}
