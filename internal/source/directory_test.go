package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDirectoryLifecycle(t *testing.T) {
	dir := NewDirectory(0)
	var changes []ChangeKind
	unsubscribe := dir.Subscribe(func(c Change) { changes = append(changes, c.Kind) })

	first := dir.Open("a.sq", []byte("abc"))
	if !dir.IsOpen("a.sq") {
		t.Fatalf("document should be open")
	}
	if _, err := dir.Apply("a.sq", Edit{Span: Span{Start: 3, End: 3}, Text: "d"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	// повторный Open сохраняет буфер
	again := dir.Open("a.sq", []byte("abcde"))
	if !again.SameBuffer(first) {
		t.Fatalf("reopening an open document must keep the buffer")
	}
	if !dir.Close("a.sq") {
		t.Fatalf("close reported not open")
	}
	reopened := dir.Open("a.sq", []byte("abcde"))
	if reopened.SameBuffer(first) || reopened.Buffer() == first.Buffer() {
		t.Fatalf("close+open must yield a new buffer identity")
	}

	unsubscribe()
	dir.Close("a.sq")

	want := []ChangeKind{ChangeOpened, ChangeEdited, ChangeEdited, ChangeClosed, ChangeOpened}
	if len(changes) != len(want) {
		t.Fatalf("changes %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Fatalf("changes %v, want %v", changes, want)
		}
	}
}

func TestDirectoryNotOpen(t *testing.T) {
	dir := NewDirectory(0)
	if _, err := dir.Apply("missing.sq"); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("apply: got %v, want ErrNotOpen", err)
	}
	if _, err := dir.Replace("missing.sq", nil); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("replace: got %v, want ErrNotOpen", err)
	}
	if _, ok := dir.CurrentSnapshot("missing.sq"); ok {
		t.Fatalf("snapshot for closed document")
	}
}

func TestDirectoryLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.sq")
	if err := os.WriteFile(path, []byte("a\r\nb\r\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	dir := NewDirectory(0)
	snap, err := dir.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(snap.Content()) != "a\nb\n" {
		t.Fatalf("content %q", snap.Content())
	}
	if snap.Document() != PathDocument(path) {
		t.Fatalf("document %q, want %q", snap.Document(), PathDocument(path))
	}
	if docs := dir.Documents(); len(docs) != 1 || docs[0] != PathDocument(path) {
		t.Fatalf("documents %v", docs)
	}
}
