// Package snapmap places diagnostic locations onto snapshots.
package snapmap

import (
	"errors"
	"fmt"

	"squiggle/internal/diag"
	"squiggle/internal/source"
)

// ErrOutOfRange indicates a location whose start lies past the end of the
// snapshot it is placed on.
var ErrOutOfRange = errors.New("location out of range")

// Clamp restricts span to the bounds of snap. It never fails.
func Clamp(span source.Span, snap *source.Snapshot) source.Span {
	return span.Clamp(snap.Len())
}

// Resolve interprets span as already expressed on target. A start past the
// end is ErrOutOfRange; an end past the end is clamped.
func Resolve(span source.Span, target *source.Snapshot) (source.Span, error) {
	if target == nil {
		return source.Span{}, fmt.Errorf("%w: no snapshot", ErrOutOfRange)
	}
	if span.Start > target.Len() {
		return source.Span{}, fmt.Errorf("%w: %s on %d bytes", ErrOutOfRange, span, target.Len())
	}
	return Clamp(span, target), nil
}

// Map translates span between two known snapshots of one buffer and clamps
// the result to target.
func Map(span source.Span, from, to *source.Snapshot, mode source.Tracking) (source.Span, error) {
	out, err := source.Translate(span, from, to, mode)
	if err != nil {
		return source.Span{}, err
	}
	return Clamp(out, to), nil
}

// Placement reports how Anchor positioned a location.
type Placement uint8

const (
	// Direct means the location was taken as-is on the target.
	Direct Placement = iota
	// Translated means the location was mapped from its origin snapshot.
	Translated
	// Fallback means the origin was unusable and the location was read as if
	// computed on the target.
	Fallback
)

func (p Placement) String() string {
	switch p {
	case Direct:
		return "direct"
	case Translated:
		return "translated"
	case Fallback:
		return "fallback"
	}
	return "unknown"
}

// Anchor places loc, computed against origin (nil when unknown), onto target.
// Translation is edge-exclusive. An origin of another buffer, a pruned
// history or a newer origin falls back to reading loc on target.
func Anchor(loc diag.Location, origin, target *source.Snapshot) (source.Span, Placement, error) {
	if origin == nil {
		span, err := Resolve(loc.Span, target)
		return span, Direct, err
	}
	if origin.SameBuffer(target) {
		if loc.Span.Start > origin.Len() {
			return source.Span{}, Translated, fmt.Errorf("%w: %s on origin %s", ErrOutOfRange, loc.Span, origin)
		}
		if span, err := Map(loc.Span, origin, target, source.EdgeExclusive); err == nil {
			return span, Translated, nil
		}
	}
	span, err := Resolve(loc.Span, target)
	return span, Fallback, err
}
