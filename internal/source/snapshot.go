package source

import (
	"fmt"
	"sort"
)

// Snapshot is an immutable view of a buffer's content at one version.
type Snapshot struct {
	buffer  *Buffer
	version Version
	content []byte
	lineIdx []uint32
}

func newSnapshot(b *Buffer, version Version, content []byte) *Snapshot {
	return &Snapshot{
		buffer:  b,
		version: version,
		content: content,
		lineIdx: buildLineIndex(content),
	}
}

// Buffer returns the identity of the buffer this snapshot belongs to.
func (s *Snapshot) Buffer() BufferID {
	if s == nil || s.buffer == nil {
		return 0
	}
	return s.buffer.id
}

// Document returns the document the owning buffer was opened for.
func (s *Snapshot) Document() DocumentID {
	if s == nil || s.buffer == nil {
		return ""
	}
	return s.buffer.doc
}

func (s *Snapshot) Version() Version {
	if s == nil {
		return 0
	}
	return s.version
}

// Len returns the content length in bytes.
func (s *Snapshot) Len() uint32 {
	if s == nil {
		return 0
	}
	return toOffset(len(s.content))
}

// Content returns the snapshot bytes. Callers must not modify the slice.
func (s *Snapshot) Content() []byte {
	if s == nil {
		return nil
	}
	return s.content
}

// Span returns the span covering the whole snapshot.
func (s *Snapshot) Span() Span {
	return Span{Start: 0, End: s.Len()}
}

// SameBuffer reports whether both snapshots come from one buffer instance.
func (s *Snapshot) SameBuffer(other *Snapshot) bool {
	return s != nil && other != nil && s.buffer != nil && s.buffer == other.buffer
}

func (s *Snapshot) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%d@%d", s.Document(), s.Buffer(), s.version)
}

// Text returns the text under span, clamped to the snapshot.
func (s *Snapshot) Text(span Span) string {
	span = span.Clamp(s.Len())
	return string(s.content[span.Start:span.End])
}

// Resolve converts an offset into a 1-based line and column. Offsets past the
// end resolve to the end of the snapshot.
func (s *Snapshot) Resolve(offset uint32) LineCol {
	if offset > s.Len() {
		offset = s.Len()
	}
	return toLineCol(s.lineIdx, offset)
}

// LineCount returns the number of lines, counting a trailing partial line.
func (s *Snapshot) LineCount() int {
	if s == nil {
		return 0
	}
	return len(s.lineIdx) + 1
}

// LineSpan returns the span of a 1-based line without its terminating newline.
func (s *Snapshot) LineSpan(line int) (Span, bool) {
	if s == nil || line < 1 || line > s.LineCount() {
		return Span{}, false
	}
	var start uint32
	if line > 1 {
		start = s.lineIdx[line-2] + 1
	}
	end := s.Len()
	if line-1 < len(s.lineIdx) {
		end = s.lineIdx[line-1]
	}
	return Span{Start: start, End: end}, true
}

// LineOf returns the 1-based line containing offset.
func (s *Snapshot) LineOf(offset uint32) int {
	return sort.Search(len(s.lineIdx), func(i int) bool { return s.lineIdx[i] >= offset }) + 1
}
