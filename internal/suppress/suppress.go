// Package suppress keeps caller-declared suppressed regions per document and
// filters decorations against them.
package suppress

import (
	"sync"

	"squiggle/internal/decor"
	"squiggle/internal/snapmap"
	"squiggle/internal/source"
)

// Set is a list of suppressed spans expressed on Snapshot. A nil Snapshot
// means the spans are read on whatever snapshot is being filtered.
type Set struct {
	Snapshot *source.Snapshot
	Spans    []source.Span
}

func (s Set) clone() Set {
	return Set{Snapshot: s.Snapshot, Spans: append([]source.Span(nil), s.Spans...)}
}

// Registry holds at most one Set per document. Reads return copies, so the
// caller may keep mutating its own slices after Attach.
type Registry struct {
	mu   sync.RWMutex
	sets map[source.DocumentID]Set
}

func NewRegistry() *Registry {
	return &Registry{sets: make(map[source.DocumentID]Set)}
}

// Attach replaces the set for doc.
func (r *Registry) Attach(doc source.DocumentID, set Set) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[doc] = set.clone()
}

// Detach removes the set for doc and reports whether one was attached.
func (r *Registry) Detach(doc source.DocumentID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sets[doc]
	delete(r.sets, doc)
	return ok
}

// Get returns a copy of the set attached to doc.
func (r *Registry) Get(doc source.DocumentID) (Set, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.sets[doc]
	if !ok {
		return Set{}, false
	}
	return set.clone(), true
}

// Filter drops items on snap whose span intersects any region of set.
// Regions recorded on an older snapshot of the same buffer are carried
// forward edge-inclusive; otherwise they are read on snap directly.
func Filter(items []decor.Decoration, snap *source.Snapshot, set Set) []decor.Decoration {
	if len(set.Spans) == 0 || len(items) == 0 {
		return items
	}
	regions := make([]source.Span, 0, len(set.Spans))
	for _, span := range set.Spans {
		if set.Snapshot != nil && set.Snapshot.SameBuffer(snap) {
			if mapped, err := snapmap.Map(span, set.Snapshot, snap, source.EdgeInclusive); err == nil {
				regions = append(regions, mapped)
				continue
			}
		}
		regions = append(regions, snapmap.Clamp(span, snap))
	}
	out := make([]decor.Decoration, 0, len(items))
	for _, it := range items {
		if intersectsAny(it.Span, regions) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func intersectsAny(span source.Span, regions []source.Span) bool {
	for _, r := range regions {
		if span.Intersects(r) {
			return true
		}
	}
	return false
}
