package render

import (
	"path/filepath"
	"sort"
	"strings"

	"squiggle/internal/decor"
	"squiggle/internal/source"
)

// reportSchema is bumped whenever Report changes shape.
const reportSchema uint16 = 1

// Position is a 1-based line and column (columns count bytes).
type Position struct {
	Line uint32 `json:"line" msgpack:"line"`
	Col  uint32 `json:"col" msgpack:"col"`
}

// Entry is one decoration in structured output.
type Entry struct {
	Kind       string   `json:"kind" msgpack:"kind"`
	Render     string   `json:"render" msgpack:"render"`
	Severity   string   `json:"severity" msgpack:"severity"`
	Code       string   `json:"code" msgpack:"code"`
	Message    string   `json:"message" msgpack:"message"`
	StartByte  uint32   `json:"start_byte" msgpack:"start_byte"`
	EndByte    uint32   `json:"end_byte" msgpack:"end_byte"`
	Start      Position `json:"start" msgpack:"start"`
	End        Position `json:"end" msgpack:"end"`
	Suppressed bool     `json:"suppressed,omitempty" msgpack:"suppressed,omitempty"`
	Diagnostic string   `json:"diagnostic,omitempty" msgpack:"diagnostic,omitempty"`
}

// KindReport summarises one kind's last pass.
type KindReport struct {
	Kind        string `json:"kind" msgpack:"kind"`
	Outcome     string `json:"outcome" msgpack:"outcome"`
	Error       string `json:"error,omitempty" msgpack:"error,omitempty"`
	Decorations int    `json:"decorations" msgpack:"decorations"`
	Skipped     int    `json:"skipped,omitempty" msgpack:"skipped,omitempty"`
	ElapsedMS   int64  `json:"elapsed_ms" msgpack:"elapsed_ms"`
}

// Report is a published decoration set in structured form.
type Report struct {
	Schema      uint16       `json:"schema" msgpack:"schema"`
	Document    string       `json:"document" msgpack:"document"`
	Version     uint64       `json:"version" msgpack:"version"`
	Decorations []Entry      `json:"decorations" msgpack:"decorations"`
	Count       int          `json:"count" msgpack:"count"`
	Kinds       []KindReport `json:"kinds,omitempty" msgpack:"kinds,omitempty"`
}

// Sorted returns items ordered by span, then kind, then code.
func Sorted(items []decor.Decoration) []decor.Decoration {
	out := append([]decor.Decoration(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		if a.Span.End != b.Span.End {
			return a.Span.End < b.Span.End
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Payload.Code < b.Payload.Code
	})
	return out
}

// BuildReport converts set without serialising it.
func BuildReport(set decor.Set, kinds []KindReport, opts ReportOpts) Report {
	items := Sorted(set.Items)
	if opts.Max > 0 && opts.Max < len(items) {
		items = items[:opts.Max]
	}
	rep := Report{
		Schema:      reportSchema,
		Decorations: make([]Entry, 0, len(items)),
		Kinds:       kinds,
	}
	if set.Snapshot != nil {
		rep.Document = formatPath(string(set.Snapshot.Document()), opts.PathMode, opts.BaseDir)
		rep.Version = uint64(set.Snapshot.Version())
	}
	for _, d := range items {
		e := Entry{
			Kind:       d.Kind.String(),
			Render:     d.Payload.Render.String(),
			Severity:   d.Payload.Severity.Label(),
			Code:       d.Payload.Code.ID(),
			Message:    d.Payload.Message,
			StartByte:  d.Span.Start,
			EndByte:    d.Span.End,
			Suppressed: d.Payload.Suppressed,
			Diagnostic: string(d.Diagnostic),
		}
		if set.Snapshot != nil {
			e.Start = position(set.Snapshot.Resolve(d.Span.Start))
			e.End = position(set.Snapshot.Resolve(d.Span.End))
		}
		rep.Decorations = append(rep.Decorations, e)
	}
	rep.Count = len(rep.Decorations)
	return rep
}

func position(lc source.LineCol) Position {
	return Position{Line: lc.Line, Col: lc.Col}
}

func formatPath(path string, mode PathMode, base string) string {
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	case PathModeBasename:
		return filepath.Base(path)
	case PathModeRelative, PathModeAuto:
		if base == "" {
			return path
		}
		rel, err := filepath.Rel(base, path)
		if err != nil || (mode == PathModeAuto && strings.HasPrefix(rel, "..")) {
			return path
		}
		return rel
	}
	return path
}
