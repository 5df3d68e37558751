package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"squiggle/internal/decor"
	"squiggle/internal/source"
)

type palette struct {
	enabled bool
	kinds   map[decor.RenderKind]*color.Color
	path    *color.Color
	gutter  *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		enabled: enabled,
		kinds: map[decor.RenderKind]*color.Color{
			decor.RenderError:   color.New(color.FgRed, color.Bold),
			decor.RenderWarning: color.New(color.FgYellow, color.Bold),
			decor.RenderInfo:    color.New(color.FgCyan, color.Bold),
			decor.RenderFade:    color.New(color.Faint),
		},
		path:   color.New(color.Bold),
		gutter: color.New(color.FgBlue),
	}
	for _, c := range p.all() {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) all() []*color.Color {
	out := []*color.Color{p.path, p.gutter}
	for _, c := range p.kinds {
		out = append(out, c)
	}
	return out
}

func (p palette) kind(k decor.RenderKind, s string) string {
	if c, ok := p.kinds[k]; ok {
		return c.Sprint(s)
	}
	return s
}

// Pretty prints every decoration of set as
//
//	<path>:<line>:<col>: <RENDER> <CODE>: <message>
//
// followed by the source line and a caret underline of the span.
func Pretty(w io.Writer, set decor.Set, opts PrettyOpts) error {
	if set.Snapshot == nil {
		return nil
	}
	pal := newPalette(opts.Color)
	snap := set.Snapshot
	path := formatPath(string(snap.Document()), opts.PathMode, opts.BaseDir)
	tab := opts.TabWidth
	if tab <= 0 {
		tab = 4
	}

	for _, d := range Sorted(set.Items) {
		start := snap.Resolve(d.Span.Start)
		label := strings.ToUpper(d.Payload.Render.String())
		if d.Payload.Suppressed {
			label += " (suppressed)"
		}
		if _, err := fmt.Fprintf(w, "%s: %s %s: %s\n",
			pal.path.Sprintf("%s:%d:%d", path, start.Line, start.Col),
			pal.kind(d.Payload.Render, label),
			d.Payload.Code.ID(),
			d.Payload.Message,
		); err != nil {
			return err
		}
		if err := writeExcerpt(w, snap, d, int(start.Line), tab, opts.Width, pal); err != nil {
			return err
		}
	}
	return nil
}

func writeExcerpt(w io.Writer, snap *source.Snapshot, d decor.Decoration, line, tab, width int, pal palette) error {
	lineSpan, ok := snap.LineSpan(line)
	if !ok {
		return nil
	}
	text := snap.Text(lineSpan)
	startInLine := int(d.Span.Start - lineSpan.Start)
	endInLine := int(min(d.Span.End, lineSpan.End) - lineSpan.Start)
	endInLine = max(endInLine, startInLine)

	expand := func(s string) string { return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tab)) }
	shown := expand(text)
	if width > 0 && runewidth.StringWidth(shown) > width {
		shown = runewidth.Truncate(shown, width, "...")
	}
	pad := runewidth.StringWidth(expand(text[:startInLine]))
	underline := max(runewidth.StringWidth(expand(text[startInLine:endInLine])), 1)

	gutter := fmt.Sprintf("%4d | ", line)
	blank := strings.Repeat(" ", 5) + "| "
	if _, err := fmt.Fprintf(w, "%s%s\n", pal.gutter.Sprint(gutter), shown); err != nil {
		return err
	}
	marker := "^" + strings.Repeat("~", underline-1)
	_, err := fmt.Fprintf(w, "%s%s%s\n", pal.gutter.Sprint(blank), strings.Repeat(" ", pad), pal.kind(d.Payload.Render, marker))
	return err
}

// Short prints one line per decoration: "<render> <CODE> <path>:<line>:<col> <message>".
func Short(w io.Writer, set decor.Set, opts PrettyOpts) error {
	if set.Snapshot == nil {
		return nil
	}
	path := formatPath(string(set.Snapshot.Document()), opts.PathMode, opts.BaseDir)
	for _, d := range Sorted(set.Items) {
		pos := set.Snapshot.Resolve(d.Span.Start)
		label := d.Payload.Render.String()
		if d.Payload.Suppressed {
			label = "~" + label
		}
		if _, err := fmt.Fprintf(w, "%s %s %s:%d:%d %s\n", label, d.Payload.Code.ID(), path, pos.Line, pos.Col, d.Payload.Message); err != nil {
			return err
		}
	}
	return nil
}
