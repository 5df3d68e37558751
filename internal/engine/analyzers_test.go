package engine

import (
	"context"
	"testing"

	"squiggle/internal/diag"
	"squiggle/internal/source"
)

func runGolden(t *testing.T, a Analyzer, content string, includeAdditional bool) (string, []diag.Diagnostic) {
	t.Helper()
	dir := source.NewDirectory(0)
	snap := dir.Open("a.sq", []byte(content))
	items, err := collect(context.Background(), snap, a, 0)
	if err != nil {
		t.Fatalf("%s: %v", a.Name(), err)
	}
	return diag.FormatShortDiagnostics(items, dir.CurrentSnapshot, "", includeAdditional), items
}

func TestBracketsGolden(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unmatched and unclosed",
			content: "f(a[1])\n)\n{ \"}\" // }\n",
			want: "error SYN1002 a.sq:2:1 unmatched ')'\n" +
				"error SYN1001 a.sq:3:1 '{' is never closed",
		},
		{
			name:    "mismatch",
			content: "(]",
			want: "note SYN1003 a.sq:1:1 related location\n" +
				"error SYN1003 a.sq:1:2 expected ')' to close '(', found ']'",
		},
		{name: "balanced", content: "{ [ ( ) ] }\n", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := runGolden(t, Brackets{}, tt.content, true)
			if got != tt.want {
				t.Fatalf("want:\n%s\n\ngot:\n%s", tt.want, got)
			}
		})
	}
}

func TestWhitespaceGolden(t *testing.T) {
	// ширина считается в колонках, а не в байтах
	got, _ := runGolden(t, Whitespace{MaxWidth: 5}, "日本語\nx\t\nshort\n", false)
	want := "info STY2002 a.sq:1:1 line is 6 columns wide (limit 5)\n" +
		"warning STY2001 a.sq:2:2 trailing whitespace"
	if got != want {
		t.Fatalf("want:\n%s\n\ngot:\n%s", want, got)
	}
}

func TestBindingsGolden(t *testing.T) {
	content := "let used = 1\n" +
		"var unused = 2\n" +
		"print(used)\n" +
		"{\n" +
		"  let x = 1\n" +
		"  let x = 2\n" +
		"  print(x)\n" +
		"}\n" +
		"let _skip = 0\n"
	got, items := runGolden(t, Bindings{}, content, false)
	want := "hidden SEM3001 a.sq:2:1 'unused' is declared but never used\n" +
		"error SEM3002 a.sq:6:7 'x' is already declared in this block"
	if got != want {
		t.Fatalf("want:\n%s\n\ngot:\n%s", want, got)
	}

	var unused *diag.Diagnostic
	for i := range items {
		if items[i].Code == diag.SemUnusedBinding {
			unused = &items[i]
		}
	}
	if unused == nil {
		t.Fatalf("unused binding not reported")
	}
	if unused.Location.Span != (source.Span{Start: 13, End: 27}) {
		t.Errorf("declaration span %s, want [13,27)", unused.Location.Span)
	}
	if len(unused.Additional) != 1 || unused.Additional[0].Span != (source.Span{Start: 17, End: 23}) {
		t.Errorf("additional locations %+v", unused.Additional)
	}
	if !unused.HasTag(diag.TagUnnecessary) {
		t.Errorf("missing unnecessary tag")
	}
	if idx, ok := unused.UnnecessaryIndices(); !ok || len(idx) != 1 || idx[0] != 0 {
		t.Errorf("unnecessary indices %v %v", idx, ok)
	}
	if unused.ID != "a.sq/bindings:SEM3001:13-27" {
		t.Errorf("id %q", unused.ID)
	}
}

func TestMarkersGolden(t *testing.T) {
	content := "x := 1 // TODO: tidy up\n// FIXME\n\"TODO\"\nTODOS // TODOS\n"
	got, _ := runGolden(t, Markers{}, content, false)
	want := "info MRK4001 a.sq:1:11 TODO: tidy up\n" +
		"info MRK4002 a.sq:2:4 FIXME"
	if got != want {
		t.Fatalf("want:\n%s\n\ngot:\n%s", want, got)
	}
}

func TestNolintMarksSuppressed(t *testing.T) {
	got, items := runGolden(t, Brackets{}, "(\n) ) // nolint\n", false)
	if want := "~error SYN1002 a.sq:2:3 unmatched ')'"; got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
	if len(items) != 1 || !items[0].Suppressed {
		t.Fatalf("items %+v", items)
	}
}

type panicky struct{}

func (panicky) Name() string    { return "panicky" }
func (panicky) Kind() diag.Kind { return diag.KindSemanticPlugin }
func (panicky) Analyze(context.Context, *source.Snapshot, diag.Reporter) error {
	panic("boom")
}

func TestCollectRecoversPanics(t *testing.T) {
	snap := source.NewBuffer("a.sq", []byte("x"), 0).Current()
	if _, err := collect(context.Background(), snap, panicky{}, 0); err == nil {
		t.Fatalf("expected error from panicking analyzer")
	}
}
