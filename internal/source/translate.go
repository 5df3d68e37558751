package source

import "errors"

var (
	// ErrForeignSnapshot indicates snapshots of different buffers (or a nil one).
	ErrForeignSnapshot = errors.New("snapshots belong to different buffers")
	// ErrBackward indicates a translation from a newer to an older snapshot.
	ErrBackward = errors.New("cannot translate to an older snapshot")
	// ErrHistoryPruned indicates the origin version fell out of the retained history.
	ErrHistoryPruned = errors.New("snapshot history pruned")
)

type pointTracking uint8

const (
	trackNegative pointTracking = iota // stays before text inserted at the point
	trackPositive                      // moves after text inserted at the point
)

func edgeTracking(mode Tracking) (start, end pointTracking) {
	if mode == EdgeInclusive {
		return trackNegative, trackPositive
	}
	return trackPositive, trackNegative
}

// Translate maps span from one snapshot onto a newer snapshot of the same
// buffer. The span is clamped to the origin snapshot first.
func Translate(span Span, from, to *Snapshot, mode Tracking) (Span, error) {
	if !from.SameBuffer(to) {
		return Span{}, ErrForeignSnapshot
	}
	span = span.Clamp(from.Len())
	if from.version == to.version {
		return span, nil
	}
	if from.version > to.version {
		return Span{}, ErrBackward
	}
	sets, err := from.buffer.changesBetween(from.version, to.version)
	if err != nil {
		return Span{}, err
	}
	startTrack, endTrack := edgeTracking(mode)
	for _, cs := range sets {
		span.Start = cs.translatePoint(span.Start, startTrack)
		span.End = cs.translatePoint(span.End, endTrack)
		if span.End < span.Start {
			span.End = span.Start
		}
	}
	return span, nil
}

// translatePoint walks edits from last to first so that each comparison is
// still made in the older version's coordinates.
func (cs changeSet) translatePoint(p uint32, track pointTracking) uint32 {
	for i := len(cs.edits) - 1; i >= 0; i-- {
		p = translateThrough(p, cs.edits[i], track)
	}
	return p
}

func translateThrough(p uint32, e Edit, track pointTracking) uint32 {
	s, end := e.Span.Start, e.Span.End
	n := toOffset(len(e.Text))
	switch {
	case p < s:
		return p
	case s == end && p == s:
		if track == trackPositive {
			return p + n
		}
		return p
	case p >= end:
		return p - (end - s) + n
	default:
		// p lies at the start of or inside replaced text
		if track == trackPositive {
			return s + n
		}
		return s
	}
}
