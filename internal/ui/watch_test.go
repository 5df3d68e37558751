package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"squiggle/internal/aggregate"
	"squiggle/internal/decor"
	"squiggle/internal/diag"
	"squiggle/internal/pipeline"
	"squiggle/internal/source"
)

func TestNewFrame(t *testing.T) {
	snap := source.NewBuffer("a.sq", []byte("ab\n)"), 0).Current()
	set := decor.Set{Snapshot: snap, Items: []decor.Decoration{{
		Span:    source.Span{Start: 3, End: 4},
		Kind:    diag.KindSyntax,
		Payload: decor.Payload{Render: decor.RenderError, Code: diag.SynUnmatchedClose, Message: "unmatched ')'"},
	}}}
	status := []pipeline.KindStatus{
		{Kind: diag.KindSyntax, Decorations: 1},
		{Kind: diag.KindSemantic, Outcome: aggregate.OutcomeFailed, Err: errors.New("engine down")},
	}
	f := NewFrame("a.sq", set, status)
	if f.Snapshot != "v1" || len(f.Lines) != 1 || f.Lines[0].Pos != "2:1" {
		t.Fatalf("frame %+v", f)
	}
	if f.Kinds[1].Err != "engine down" || f.busy() {
		t.Fatalf("kinds %+v", f.Kinds)
	}
}

func TestWatchModelView(t *testing.T) {
	frames := make(chan Frame, 1)
	m := NewWatchModel("a.sq", frames).(*watchModel)

	m.Update(frameMsg(Frame{
		Title: "a.sq",
		Kinds: []KindLine{
			{Kind: "syntax", Decorations: 1},
			{Kind: "semantic", Outcome: aggregate.OutcomeFailed, Err: "engine down"},
		},
		Lines: []Line{{Render: decor.RenderError, Pos: "2:1", Code: "SYN1002", Message: "unmatched ')'"}},
	}))
	view := m.View()
	for _, want := range []string{"syntax", "failed", "engine down", "SYN1002", "unmatched ')'"} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q:\n%s", want, view)
		}
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil || !m.done {
		t.Fatalf("q must quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("q did not produce QuitMsg")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("日本語テキスト", 7); got != "日本..." {
		t.Fatalf("got %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
}
