package engine

import (
	"bytes"
	"context"
	"strings"

	"squiggle/internal/diag"
	"squiggle/internal/source"
)

var markerCodes = []struct {
	word []byte
	code diag.Code
}{
	{[]byte("TODO"), diag.MrkTodo},
	{[]byte("FIXME"), diag.MrkFixme},
}

// Markers reports TODO and FIXME words inside comments.
type Markers struct{}

func (Markers) Name() string    { return "markers" }
func (Markers) Kind() diag.Kind { return diag.KindSemanticPlugin }

func (Markers) Analyze(ctx context.Context, snap *source.Snapshot, r diag.Reporter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	content := snap.Content()
	classes := classify(content)
	for _, m := range markerCodes {
		for off := 0; ; {
			idx := bytes.Index(content[off:], m.word)
			if idx < 0 {
				break
			}
			start := off + idx
			end := start + len(m.word)
			off = end
			if classes[start] != classComment {
				continue
			}
			if (start > 0 && isIdentPart(content[start-1])) || (end < len(content) && isIdentPart(content[end])) {
				continue
			}
			lineEnd := bytes.IndexByte(content[end:], '\n')
			if lineEnd < 0 {
				lineEnd = len(content) - end
			}
			note := strings.TrimSpace(strings.TrimLeft(string(content[end:end+lineEnd]), ": "))
			msg := string(m.word)
			if note != "" {
				msg += ": " + note
			}
			diag.ReportInfo(r, m.code, location(snap, start, end), msg).Emit()
		}
	}
	return nil
}
