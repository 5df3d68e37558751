package diag

import (
	"testing"

	"squiggle/internal/source"
)

func TestFormatShortDiagnostics(t *testing.T) {
	dir := source.NewDirectory(0)
	snap := dir.Open("/workspace/sample.sq", []byte("a\nb\n"))
	doc := snap.Document()

	diags := []Diagnostic{
		New(SevError, SynUnclosedOpen, Location{Document: doc, Span: source.Span{Start: 0, End: 1}}, "first line\nsecond").
			WithAdditional(Location{Document: doc, Span: source.Span{Start: 2, End: 3}}),
		New(SevWarning, StyTrailingWhitespace, Location{Document: doc, Span: source.Span{Start: 2, End: 3}}, "another").
			WithSuppressed(true),
		New(SevInfo, MrkTodo, Location{Document: doc, Span: source.Span{Start: 90, End: 91}}, "out of range"),
	}

	expected := "error SYN1001 sample.sq:1:1 first line second\n" +
		"note SYN1001 sample.sq:2:1 related location\n" +
		"~warning STY2001 sample.sq:2:1 another"

	if got := FormatShortDiagnostics(diags, dir.CurrentSnapshot, "/workspace", true); got != expected {
		t.Fatalf("unexpected short diagnostics:\nwant:\n%s\n\ngot:\n%s", expected, got)
	}
}
