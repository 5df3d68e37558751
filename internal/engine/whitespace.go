package engine

import (
	"context"
	"fmt"

	"github.com/mattn/go-runewidth"

	"squiggle/internal/diag"
	"squiggle/internal/source"
)

// Whitespace reports trailing blanks and lines wider than MaxWidth display
// columns. A MaxWidth of zero or less disables the width check.
type Whitespace struct {
	MaxWidth int
}

func (Whitespace) Name() string    { return "whitespace" }
func (Whitespace) Kind() diag.Kind { return diag.KindSyntaxPlugin }

func (w Whitespace) Analyze(ctx context.Context, snap *source.Snapshot, r diag.Reporter) error {
	for line := 1; line <= snap.LineCount(); line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		span, ok := snap.LineSpan(line)
		if !ok {
			break
		}
		text := snap.Text(span)
		trimmed := len(text)
		for trimmed > 0 && (text[trimmed-1] == ' ' || text[trimmed-1] == '\t') {
			trimmed--
		}
		start := int(span.Start)
		if trimmed < len(text) {
			diag.ReportWarning(r, diag.StyTrailingWhitespace,
				location(snap, start+trimmed, start+len(text)),
				"trailing whitespace").Emit()
		}
		if w.MaxWidth > 0 {
			if width := runewidth.StringWidth(text[:trimmed]); width > w.MaxWidth {
				diag.ReportInfo(r, diag.StyLongLine, location(snap, start, start+trimmed),
					fmt.Sprintf("line is %d columns wide (limit %d)", width, w.MaxWidth)).Emit()
			}
		}
	}
	return nil
}
