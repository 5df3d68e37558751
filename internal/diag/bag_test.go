package diag

import (
	"testing"

	"squiggle/internal/source"
)

func loc(start, end uint32) Location {
	return Location{Document: "a.sq", Span: source.Span{Start: start, End: end}}
}

func TestBagLimitSortStamp(t *testing.T) {
	bag := NewBag(3)
	r := NewDedupReporter(BagReporter{Bag: bag})

	ReportInfo(r, MrkTodo, loc(10, 14), "todo").Emit()
	ReportError(r, SynUnclosedOpen, loc(2, 3), "unclosed").Emit()
	ReportError(r, SynUnclosedOpen, loc(2, 3), "unclosed").Emit() // дубликат
	ReportWarning(r, StyTrailingWhitespace, loc(2, 3), "spaces").Emit()
	ReportHidden(r, SemUnusedBinding, loc(20, 25), "unused").Emit()

	if bag.Len() != 3 || bag.Dropped() != 1 {
		t.Fatalf("len %d dropped %d, want 3 and 1", bag.Len(), bag.Dropped())
	}
	if !bag.HasErrors() {
		t.Fatalf("expected errors")
	}

	bag.Sort()
	bag.Stamp("a.sq/syntax")
	items := bag.Items()
	wantCodes := []Code{SynUnclosedOpen, StyTrailingWhitespace, MrkTodo}
	for i, want := range wantCodes {
		if items[i].Code != want {
			t.Fatalf("item %d: code %s, want %s", i, items[i].Code.ID(), want.ID())
		}
		if items[i].Owner != "a.sq/syntax" {
			t.Fatalf("item %d: owner %q", i, items[i].Owner)
		}
	}
	if items[0].ID != "a.sq/syntax:SYN1001:2-3" {
		t.Fatalf("id %q", items[0].ID)
	}
}

func TestBagDedupAndFilter(t *testing.T) {
	bag := NewBag(0)
	bag.Add(New(SevInfo, MrkTodo, loc(1, 2), "a"))
	bag.Add(New(SevInfo, MrkTodo, loc(1, 2), "b"))
	bag.Add(New(SevInfo, MrkFixme, loc(1, 2), "c").WithSuppressed(true))
	bag.Dedup()
	if bag.Len() != 2 {
		t.Fatalf("dedup len %d, want 2", bag.Len())
	}
	visible := bag.Filter(func(d *Diagnostic) bool { return !d.Suppressed })
	if len(visible) != 1 || visible[0].Message != "a" {
		t.Fatalf("filter: %+v", visible)
	}
}

func TestSuppressReporter(t *testing.T) {
	bag := NewBag(0)
	r := SuppressReporter{
		Next:       BagReporter{Bag: bag},
		Suppressed: func(l Location) bool { return l.Span.Start < 5 },
	}
	ReportInfo(r, MrkTodo, loc(1, 2), "early").Emit()
	ReportInfo(r, MrkTodo, loc(8, 9), "late").Emit()
	items := bag.Items()
	if !items[0].Suppressed || items[1].Suppressed {
		t.Fatalf("suppressed flags: %v %v", items[0].Suppressed, items[1].Suppressed)
	}
}
