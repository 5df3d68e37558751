package source

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	// ErrEditRange indicates an edit that does not fit the current snapshot.
	ErrEditRange = errors.New("edit out of range")
	// ErrEditOverlap indicates two edits of one change touching the same text.
	ErrEditOverlap = errors.New("overlapping edits")
)

// DefaultHistoryLimit bounds the number of change sets a buffer retains for
// snapshot translation.
const DefaultHistoryLimit = 1024

var bufferIDs atomic.Uint64

// Edit replaces Span (expressed on the snapshot the edit is applied to) with Text.
type Edit struct {
	Span Span
	Text string
}

// changeSet moves a buffer from one version to the next. Edits are sorted,
// non-overlapping and expressed in the coordinates of the older version.
type changeSet struct {
	edits []Edit
}

// Buffer is the mutable, versioned text of one open document.
type Buffer struct {
	id  BufferID
	doc DocumentID

	mu      sync.RWMutex
	current *Snapshot
	history []changeSet // history[i] moves first+i to first+i+1
	first   Version
	limit   int
}

// NewBuffer opens a buffer for doc with a fresh identity. A non-positive
// historyLimit selects DefaultHistoryLimit.
func NewBuffer(doc DocumentID, content []byte, historyLimit int) *Buffer {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	b := &Buffer{
		id:    BufferID(bufferIDs.Add(1)),
		doc:   doc,
		first: 1,
		limit: historyLimit,
	}
	b.current = newSnapshot(b, 1, append([]byte(nil), content...))
	return b
}

func (b *Buffer) ID() BufferID { return b.id }

func (b *Buffer) Document() DocumentID { return b.doc }

// Current returns the latest snapshot.
func (b *Buffer) Current() *Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Apply applies edits expressed against the current snapshot atomically and
// returns the new snapshot.
func (b *Buffer) Apply(edits ...Edit) (*Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.applyLocked(edits)
}

// Replace swaps the whole content, recording it as a single minimal edit so
// spans outside the changed region translate cleanly. Identical content
// leaves the buffer untouched.
func (b *Buffer) Replace(content []byte) (*Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	old := b.current.content
	prefix, suffix := commonAffixes(old, content)
	if prefix == len(old) && prefix == len(content) {
		return b.current, nil
	}
	edit := Edit{
		Span: NewSpan(prefix, len(old)-suffix),
		Text: string(content[prefix : len(content)-suffix]),
	}
	return b.applyLocked([]Edit{edit})
}

func (b *Buffer) applyLocked(edits []Edit) (*Snapshot, error) {
	if len(edits) == 0 {
		return b.current, nil
	}
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Span.Start < sorted[j].Span.Start })

	old := b.current.content
	size := b.current.Len()
	grow := 0
	for i, e := range sorted {
		if e.Span.End < e.Span.Start || e.Span.End > size {
			return nil, fmt.Errorf("%w: %s on %d bytes", ErrEditRange, e.Span, size)
		}
		if i > 0 && sorted[i-1].Span.End > e.Span.Start {
			return nil, fmt.Errorf("%w: %s and %s", ErrEditOverlap, sorted[i-1].Span, e.Span)
		}
		grow += len(e.Text) - int(e.Span.Len())
	}

	out := make([]byte, 0, max(len(old)+grow, 0))
	var pos uint32
	for _, e := range sorted {
		out = append(out, old[pos:e.Span.Start]...)
		out = append(out, e.Text...)
		pos = e.Span.End
	}
	out = append(out, old[pos:]...)

	b.history = append(b.history, changeSet{edits: sorted})
	if drop := len(b.history) - b.limit; drop > 0 {
		b.history = append([]changeSet(nil), b.history[drop:]...)
		b.first += Version(drop)
	}
	b.current = newSnapshot(b, b.current.version+1, out)
	return b.current, nil
}

// changesBetween returns the change sets moving from one version to another.
func (b *Buffer) changesBetween(from, to Version) ([]changeSet, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if from < b.first {
		return nil, fmt.Errorf("%w: version %d, oldest retained %d", ErrHistoryPruned, from, b.first)
	}
	lo := int(from - b.first)
	hi := int(to - b.first)
	if hi > len(b.history) {
		return nil, fmt.Errorf("%w: version %d not reached", ErrBackward, to)
	}
	return b.history[lo:hi], nil
}
