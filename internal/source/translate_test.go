package source

import (
	"errors"
	"testing"
)

func TestTranslateInsertAtStart(t *testing.T) {
	b := NewBuffer("a.sq", []byte("let x = 1\n"), 0)
	s0 := b.Current()
	span := Span{Start: 4, End: 5} // "x"

	s1, err := b.Apply(Edit{Span: Span{Start: 4, End: 4}, Text: "yy"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := Translate(span, s0, s1, EdgeExclusive)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	want := Span{Start: 6, End: 7}
	if got != want {
		t.Fatalf("exclusive: got %s, want %s", got, want)
	}
	if s1.Text(got) != "x" {
		t.Fatalf("exclusive span text %q, want %q", s1.Text(got), "x")
	}

	got, err = Translate(span, s0, s1, EdgeInclusive)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	want = Span{Start: 4, End: 7}
	if got != want {
		t.Fatalf("inclusive: got %s, want %s", got, want)
	}
}

func TestTranslateInsertAtEnd(t *testing.T) {
	b := NewBuffer("a.sq", []byte("abcdef"), 0)
	s0 := b.Current()
	span := Span{Start: 1, End: 3}
	s1, err := b.Apply(Edit{Span: Span{Start: 3, End: 3}, Text: "ZZ"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	tests := []struct {
		mode Tracking
		want Span
	}{
		{EdgeExclusive, Span{Start: 1, End: 3}},
		{EdgeInclusive, Span{Start: 1, End: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			got, err := Translate(span, s0, s1, tt.mode)
			if err != nil {
				t.Fatalf("translate: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTranslateAcrossVersions(t *testing.T) {
	b := NewBuffer("a.sq", []byte("0123456789"), 0)
	s0 := b.Current()
	span := Span{Start: 4, End: 6} // "45"

	// удаление перед спаном и вставка после
	if _, err := b.Apply(
		Edit{Span: Span{Start: 0, End: 2}},
		Edit{Span: Span{Start: 8, End: 8}, Text: "xyz"},
	); err != nil {
		t.Fatalf("apply 1: %v", err)
	}
	s2, err := b.Apply(Edit{Span: Span{Start: 0, End: 0}, Text: "---"})
	if err != nil {
		t.Fatalf("apply 2: %v", err)
	}

	got, err := Translate(span, s0, s2, EdgeExclusive)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if text := s2.Text(got); text != "45" {
		t.Fatalf("translated text %q, want %q (span %s in %q)", text, "45", got, s2.Content())
	}
}

func TestTranslateDeletedSpanCollapses(t *testing.T) {
	b := NewBuffer("a.sq", []byte("abcdef"), 0)
	s0 := b.Current()
	s1, err := b.Apply(Edit{Span: Span{Start: 1, End: 5}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, err := Translate(Span{Start: 2, End: 4}, s0, s1, EdgeExclusive)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if !got.Empty() || got.Start != 1 {
		t.Fatalf("got %s, want empty span at 1", got)
	}
}

func TestTranslateErrors(t *testing.T) {
	b := NewBuffer("a.sq", []byte("abc"), 0)
	s0 := b.Current()
	s1, err := b.Apply(Edit{Span: Span{Start: 0, End: 0}, Text: "x"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if _, err := Translate(Span{}, s1, s0, EdgeExclusive); !errors.Is(err, ErrBackward) {
		t.Errorf("backward: got %v, want ErrBackward", err)
	}

	other := NewBuffer("a.sq", []byte("abc"), 0)
	if _, err := Translate(Span{}, s0, other.Current(), EdgeExclusive); !errors.Is(err, ErrForeignSnapshot) {
		t.Errorf("foreign: got %v, want ErrForeignSnapshot", err)
	}
	if _, err := Translate(Span{}, nil, s0, EdgeExclusive); !errors.Is(err, ErrForeignSnapshot) {
		t.Errorf("nil: got %v, want ErrForeignSnapshot", err)
	}

	small := NewBuffer("b.sq", []byte("abc"), 2)
	first := small.Current()
	for i := 0; i < 3; i++ {
		if _, err := small.Apply(Edit{Span: Span{Start: 0, End: 0}, Text: "x"}); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}
	if _, err := Translate(Span{}, first, small.Current(), EdgeExclusive); !errors.Is(err, ErrHistoryPruned) {
		t.Errorf("pruned: got %v, want ErrHistoryPruned", err)
	}
}

func TestTranslateClampsOrigin(t *testing.T) {
	b := NewBuffer("a.sq", []byte("abc"), 0)
	s0 := b.Current()
	got, err := Translate(Span{Start: 2, End: 100}, s0, s0, EdgeExclusive)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if got != (Span{Start: 2, End: 3}) {
		t.Fatalf("got %s, want [2,3)", got)
	}
}
