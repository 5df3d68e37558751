package diag

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"squiggle/internal/source"
)

type goldenDiagnostic struct {
	Severity string
	Code     string
	Path     string
	Line     uint32
	Column   uint32
	Message  string
}

// SnapshotLookup resolves the snapshot a document's offsets refer to.
type SnapshotLookup func(doc source.DocumentID) (*source.Snapshot, bool)

// FormatShortDiagnostics renders diagnostics into a stable, single-line-per-entry
// representation used by golden tests and plain CLI output. Paths are shown
// relative to base when possible. Suppressed diagnostics are prefixed with "~".
func FormatShortDiagnostics(diags []Diagnostic, lookup SnapshotLookup, base string, includeAdditional bool) string {
	if lookup == nil || len(diags) == 0 {
		return ""
	}

	rendered := make([]goldenDiagnostic, 0, len(diags))
	for i := range diags {
		rendered = appendDiagnostic(rendered, &diags[i], lookup, base, includeAdditional)
	}

	sort.SliceStable(rendered, func(i, j int) bool {
		di, dj := rendered[i], rendered[j]
		if di.Path != dj.Path {
			return di.Path < dj.Path
		}
		if di.Line != dj.Line {
			return di.Line < dj.Line
		}
		if di.Column != dj.Column {
			return di.Column < dj.Column
		}
		if di.Severity != dj.Severity {
			return di.Severity < dj.Severity
		}
		if di.Code != dj.Code {
			return di.Code < dj.Code
		}
		return di.Message < dj.Message
	})

	var b strings.Builder
	for i, d := range rendered {
		fmt.Fprintf(&b, "%s %s %s:%d:%d %s", d.Severity, d.Code, d.Path, d.Line, d.Column, d.Message)
		if i < len(rendered)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func appendDiagnostic(out []goldenDiagnostic, d *Diagnostic, lookup SnapshotLookup, base string, includeAdditional bool) []goldenDiagnostic {
	label := d.Severity.Label()
	if d.Suppressed {
		label = "~" + label
	}
	if loc, ok := resolveLocation(lookup, d.Location, base); ok {
		out = append(out, goldenDiagnostic{
			Severity: label,
			Code:     d.Code.ID(),
			Path:     loc.Path,
			Line:     loc.Line,
			Column:   loc.Column,
			Message:  sanitizeMessage(d.Message),
		})
	}

	if includeAdditional {
		for _, extra := range d.Additional {
			loc, ok := resolveLocation(lookup, extra, base)
			if !ok {
				continue
			}
			out = append(out, goldenDiagnostic{
				Severity: "note",
				Code:     d.Code.ID(),
				Path:     loc.Path,
				Line:     loc.Line,
				Column:   loc.Column,
				Message:  "related location",
			})
		}
	}

	return out
}

type resolvedSpan struct {
	Path   string
	Line   uint32
	Column uint32
}

func resolveLocation(lookup SnapshotLookup, loc Location, base string) (resolvedSpan, bool) {
	snap, ok := lookup(loc.Document)
	if !ok || snap == nil || loc.Span.Start > snap.Len() {
		return resolvedSpan{}, false
	}
	start := snap.Resolve(loc.Span.Start)
	return resolvedSpan{
		Path:   relativePath(string(loc.Document), base),
		Line:   start.Line,
		Column: start.Col,
	}, true
}

func relativePath(p, base string) string {
	if base == "" {
		return p
	}
	base = strings.TrimSuffix(path.Clean(base), "/") + "/"
	return strings.TrimPrefix(p, base)
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\r", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
