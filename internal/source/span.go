package source

import (
	"fmt"

	"fortio.org/safecast"
)

type Span struct {
	Start uint32 // в байтах включительно
	End   uint32 // в байтах не включительно
}

// NewSpan builds a span from int offsets, flooring negatives at zero and
// saturating values that do not fit into uint32.
func NewSpan(start, end int) Span {
	s := Span{Start: toOffset(start), End: toOffset(end)}
	if s.End < s.Start {
		s.End = s.Start
	}
	return s
}

func toOffset(n int) uint32 {
	if n < 0 {
		return 0
	}
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return ^uint32(0)
	}
	return v
}

func (s Span) Empty() bool {
	return s.Start == s.End
}

func (s Span) Len() uint32 {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

func (s Span) Cover(other Span) Span {
	if other.Start < s.Start {
		s.Start = other.Start
	}
	if other.End > s.End {
		s.End = other.End
	}
	return s
}

// Contains reports whether offset lies inside the half-open span.
func (s Span) Contains(offset uint32) bool {
	return s.Start <= offset && offset < s.End
}

// Intersects reports whether two spans overlap. Non-empty spans must share at
// least one byte; an empty span intersects a span that contains it or has it
// on a boundary.
func (s Span) Intersects(other Span) bool {
	if s.Empty() {
		return other.Start <= s.Start && s.Start <= other.End
	}
	if other.Empty() {
		return s.Start <= other.Start && other.Start <= s.End
	}
	return s.Start < other.End && other.Start < s.End
}

// Clamp restricts the span to [0, limit].
func (s Span) Clamp(limit uint32) Span {
	if s.Start > limit {
		s.Start = limit
	}
	if s.End > limit {
		s.End = limit
	}
	if s.End < s.Start {
		s.End = s.Start
	}
	return s
}

// IntersectsAny reports whether s intersects at least one of spans. An empty
// list matches everything.
func (s Span) IntersectsAny(spans []Span) bool {
	if len(spans) == 0 {
		return true
	}
	for _, other := range spans {
		if s.Intersects(other) {
			return true
		}
	}
	return false
}
