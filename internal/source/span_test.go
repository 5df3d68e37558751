package source

import "testing"

func TestSpanIntersects(t *testing.T) {
	tests := []struct {
		name string
		a, b Span
		want bool
	}{
		{"equal", Span{2, 5}, Span{2, 5}, true},
		{"overlap", Span{2, 5}, Span{4, 8}, true},
		{"adjacent", Span{2, 5}, Span{5, 8}, false},
		{"disjoint", Span{0, 1}, Span{3, 4}, false},
		{"empty inside", Span{3, 3}, Span{2, 5}, true},
		{"empty on boundary", Span{5, 5}, Span{2, 5}, true},
		{"empty outside", Span{6, 6}, Span{2, 5}, false},
		{"both empty", Span{4, 4}, Span{4, 4}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Intersects(tt.b); got != tt.want {
				t.Errorf("%s.Intersects(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := tt.b.Intersects(tt.a); got != tt.want {
				t.Errorf("%s.Intersects(%s) = %v, want %v", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestSpanClampAndCover(t *testing.T) {
	if got := (Span{Start: 8, End: 20}).Clamp(10); got != (Span{Start: 8, End: 10}) {
		t.Errorf("clamp: %s", got)
	}
	if got := (Span{Start: 12, End: 20}).Clamp(10); got != (Span{Start: 10, End: 10}) {
		t.Errorf("clamp past end: %s", got)
	}
	if got := (Span{Start: 3, End: 5}).Cover(Span{Start: 1, End: 4}); got != (Span{Start: 1, End: 5}) {
		t.Errorf("cover: %s", got)
	}
	if got := NewSpan(-3, 2); got != (Span{Start: 0, End: 2}) {
		t.Errorf("NewSpan negative: %s", got)
	}
	if !(Span{Start: 9, End: 9}).IntersectsAny(nil) {
		t.Errorf("empty range list must match everything")
	}
}
