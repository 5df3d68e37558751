package source

type (
	// DocumentID identifies a source document independent of any open buffer.
	DocumentID string
	// BufferID identifies one opened buffer instance. Closing and reopening a
	// document yields a new BufferID.
	BufferID uint64
	// Version orders snapshots of one buffer.
	Version uint64
)

// LineCol represents a human-readable position in a snapshot.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based, in bytes
}

// Tracking selects how a translated span reacts to edits at its edges.
type Tracking uint8

const (
	// EdgeExclusive keeps text inserted exactly at a boundary outside the span.
	EdgeExclusive Tracking = iota
	// EdgeInclusive grows the span when text is inserted exactly at a boundary.
	EdgeInclusive
)

func (t Tracking) String() string {
	switch t {
	case EdgeExclusive:
		return "edge-exclusive"
	case EdgeInclusive:
		return "edge-inclusive"
	}
	return "unknown"
}
