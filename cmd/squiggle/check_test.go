package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"squiggle/internal/config"
	"squiggle/internal/observ"
	"squiggle/internal/render"
	"squiggle/internal/source"
)

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.sq")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func syntaxOnly(mode string) config.Config {
	cfg := config.Default()
	cfg.Mode = mode
	cfg.Kinds = []string{"syntax"}
	return cfg
}

func TestCheckFile(t *testing.T) {
	path := writeSource(t, "let a = 1\n)\nlet b = 2\n")
	for _, mode := range []string{"pull", "push"} {
		t.Run(mode, func(t *testing.T) {
			var out bytes.Buffer
			opts := checkOptions{format: render.FormatShort, pathMode: render.PathModeBasename}
			errs, err := checkFile(context.Background(), syntaxOnly(mode), path, opts, &out)
			if err != nil {
				t.Fatalf("check: %v", err)
			}
			if errs != 1 {
				t.Errorf("errors = %d, want 1", errs)
			}
			want := "error SYN1002 a.sq:2:1 unmatched ')'\n"
			if out.String() != want {
				t.Errorf("output %q, want %q", out.String(), want)
			}
		})
	}
}

func TestCheckFileSuppressedLines(t *testing.T) {
	path := writeSource(t, "let a = 1\n)\nlet b = 2\n")
	var out bytes.Buffer
	opts := checkOptions{format: render.FormatShort, pathMode: render.PathModeBasename, suppress: []string{"2"}}
	errs, err := checkFile(context.Background(), syntaxOnly("pull"), path, opts, &out)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if errs != 0 || out.Len() != 0 {
		t.Fatalf("errors %d, output %q", errs, out.String())
	}
}

func TestCheckFileJSON(t *testing.T) {
	path := writeSource(t, "(\n")
	var out bytes.Buffer
	opts := checkOptions{format: render.FormatJSON, pathMode: render.PathModeBasename}
	if _, err := checkFile(context.Background(), syntaxOnly("pull"), path, opts, &out); err != nil {
		t.Fatalf("check: %v", err)
	}
	for _, want := range []string{`"document": "a.sq"`, `"code": "SYN1001"`, `"outcome": "ok"`} {
		if !bytes.Contains(out.Bytes(), []byte(want)) {
			t.Errorf("json lacks %s:\n%s", want, out.String())
		}
	}
}

func TestCheckFileTimings(t *testing.T) {
	path := writeSource(t, "(\n")
	opts := checkOptions{format: render.FormatShort, timer: observ.NewTimer()}
	if _, err := checkFile(context.Background(), syntaxOnly("push"), path, opts, io.Discard); err != nil {
		t.Fatalf("check: %v", err)
	}
	var names []string
	for _, p := range opts.timer.Phases() {
		names = append(names, p.Name)
	}
	want := []string{"load", "analyze", "refresh", "fetch syntax", "render"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("phases %v, want %v", names, want)
	}
}

func TestParseLineRanges(t *testing.T) {
	snap := source.NewBuffer("a.sq", []byte("ab\ncd\nef"), 0).Current()

	set, err := parseLineRanges([]string{"2", "2-9"}, snap)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []source.Span{{Start: 3, End: 6}, {Start: 3, End: 8}}
	if len(set.Spans) != len(want) {
		t.Fatalf("spans %v", set.Spans)
	}
	for i := range want {
		if set.Spans[i] != want[i] {
			t.Errorf("span %d = %s, want %s", i, set.Spans[i], want[i])
		}
	}
	if set.Snapshot != snap {
		t.Errorf("set must be expressed on the parsed snapshot")
	}

	for _, bad := range []string{"0", "3-2", "x", "1-y", "7"} {
		if _, err := parseLineRanges([]string{bad}, snap); err == nil {
			t.Errorf("%q: expected an error", bad)
		}
	}
}

func TestReadUIMode(t *testing.T) {
	if m, err := readUIMode("OFF"); err != nil || m != uiModeOff {
		t.Fatalf("got %v, %v", m, err)
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Fatalf("expected an error")
	}
}
