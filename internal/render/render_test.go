package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"squiggle/internal/decor"
	"squiggle/internal/diag"
	"squiggle/internal/source"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		sev    diag.Severity
		tags   []string
		want   decor.RenderKind
		wantOK bool
	}{
		{"error", diag.SevError, nil, decor.RenderError, true},
		{"warning", diag.SevWarning, nil, decor.RenderWarning, true},
		{"info", diag.SevInfo, nil, decor.RenderInfo, true},
		{"hidden", diag.SevHidden, nil, decor.RenderNone, false},
		{"unnecessary wins", diag.SevHidden, []string{diag.TagUnnecessary}, decor.RenderFade, true},
		{"build error", diag.SevHidden, []string{diag.TagBuildError}, decor.RenderError, true},
		{"both tags", diag.SevError, []string{diag.TagBuildError, diag.TagUnnecessary}, decor.RenderFade, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.sev, tt.tags)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("got (%s, %v), want (%s, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func sampleSet() decor.Set {
	snap := source.NewBuffer("/work/src/main.sq", []byte("let 日本 = 1\n\tx )\n"), 0).Current()
	return decor.Set{
		Snapshot: snap,
		Items: []decor.Decoration{
			{
				Span: source.Span{Start: 18, End: 19},
				Kind: diag.KindSyntax,
				Payload: decor.Payload{
					Render: decor.RenderError, Severity: diag.SevError,
					Code: diag.SynUnmatchedClose, Message: "unmatched ')'",
				},
			},
			{
				Span: source.Span{Start: 4, End: 10},
				Kind: diag.KindSemantic,
				Payload: decor.Payload{
					Render: decor.RenderFade, Severity: diag.SevHidden,
					Code: diag.SemUnusedBinding, Message: "'日本' is declared but never used",
				},
				Diagnostic: "main.sq/bindings:SEM3001:0-14",
			},
		},
	}
}

func TestPrettyAlignsCaretByWidth(t *testing.T) {
	var buf bytes.Buffer
	if err := Pretty(&buf, sampleSet(), PrettyOpts{PathMode: PathModeRelative, BaseDir: "/work"}); err != nil {
		t.Fatalf("pretty: %v", err)
	}
	want := "src/main.sq:1:5: FADE SEM3001: '日本' is declared but never used\n" +
		"   1 | let 日本 = 1\n" +
		"     |     ^~~~\n" +
		"src/main.sq:2:4: ERROR SYN1002: unmatched ')'\n" +
		"   2 |     x )\n" +
		"     |       ^\n"
	if got := buf.String(); got != want {
		t.Fatalf("want:\n%s\ngot:\n%s", want, got)
	}
}

func TestShort(t *testing.T) {
	var buf bytes.Buffer
	if err := Short(&buf, sampleSet(), PrettyOpts{PathMode: PathModeBasename}); err != nil {
		t.Fatalf("short: %v", err)
	}
	want := "fade SEM3001 main.sq:1:5 '日本' is declared but never used\n" +
		"error SYN1002 main.sq:2:4 unmatched ')'\n"
	if got := buf.String(); got != want {
		t.Fatalf("want:\n%s\ngot:\n%s", want, got)
	}
}

func TestReportEncodings(t *testing.T) {
	rep := BuildReport(sampleSet(), []KindReport{{Kind: "syntax", Outcome: "ok", Decorations: 1}}, ReportOpts{PathMode: PathModeRelative, BaseDir: "/work"})
	if rep.Count != 2 || rep.Document != "src/main.sq" || rep.Version != 1 {
		t.Fatalf("report %+v", rep)
	}
	first := rep.Decorations[0]
	if first.Code != "SEM3001" || first.Render != "fade" || first.Start != (Position{Line: 1, Col: 5}) {
		t.Fatalf("first entry %+v", first)
	}

	var js bytes.Buffer
	if err := JSON(&js, rep); err != nil {
		t.Fatalf("json: %v", err)
	}
	var back Report
	if err := json.Unmarshal(js.Bytes(), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Count != 2 || back.Decorations[1].Message != "unmatched ')'" {
		t.Fatalf("json round trip %+v", back)
	}
	if !strings.Contains(js.String(), `"start_byte": 4`) {
		t.Fatalf("json output:\n%s", js.String())
	}

	var mp bytes.Buffer
	if err := Msgpack(&mp, rep); err != nil {
		t.Fatalf("msgpack: %v", err)
	}
	decoded, err := DecodeMsgpack(&mp)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Schema != reportSchema || len(decoded.Kinds) != 1 || decoded.Decorations[0].Diagnostic != first.Diagnostic {
		t.Fatalf("msgpack round trip %+v", decoded)
	}

	if capped := BuildReport(sampleSet(), nil, ReportOpts{Max: 1}); capped.Count != 1 {
		t.Fatalf("max: %d", capped.Count)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("MsgPack"); err != nil || f != FormatMsgpack {
		t.Fatalf("got %s %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("xml accepted")
	}
}
