// Package gate decides whether a recomputed decoration set differs from the
// last published one.
package gate

import (
	"sync"

	"squiggle/internal/decor"
	"squiggle/internal/diag"
)

// Equal compares two decoration lists as multisets of (kind, payload).
// Spans are ignored so pure text shifts do not count as changes.
func Equal(a, b []decor.Decoration) bool {
	if len(a) != len(b) {
		return false
	}
	type key struct {
		kind    diag.Kind
		payload decor.Payload
	}
	counts := make(map[key]int, len(a))
	for i := range a {
		counts[key{a[i].Kind, a[i].Payload}]++
	}
	for i := range b {
		k := key{b[i].Kind, b[i].Payload}
		if counts[k] == 0 {
			return false
		}
		counts[k]--
	}
	return true
}

// Delta summarises a change between two sets.
type Delta struct {
	Added   int
	Removed int
}

// Changed reports whether anything was added or removed.
func (d Delta) Changed() bool { return d.Added > 0 || d.Removed > 0 }

// Diff counts payloads present only in next (Added) or only in prev (Removed).
func Diff(prev, next []decor.Decoration) Delta {
	type key struct {
		kind    diag.Kind
		payload decor.Payload
	}
	counts := make(map[key]int, len(prev))
	for i := range prev {
		counts[key{prev[i].Kind, prev[i].Payload}]++
	}
	var d Delta
	for i := range next {
		k := key{next[i].Kind, next[i].Payload}
		if counts[k] > 0 {
			counts[k]--
			continue
		}
		d.Added++
	}
	for _, n := range counts {
		d.Removed += n
	}
	return d
}

// Gate remembers the last published set per key.
type Gate[K comparable] struct {
	mu   sync.Mutex
	last map[K][]decor.Decoration
}

func New[K comparable]() *Gate[K] {
	return &Gate[K]{last: make(map[K][]decor.Decoration)}
}

// Offer records next for key and returns the delta against the previous set.
// The first offer for a key compares against an empty set.
func (g *Gate[K]) Offer(key K, next []decor.Decoration) Delta {
	g.mu.Lock()
	defer g.mu.Unlock()
	prev := g.last[key]
	g.last[key] = next
	return Diff(prev, next)
}

// Last returns the last offered set for key.
func (g *Gate[K]) Last(key K) []decor.Decoration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last[key]
}

// Forget drops the remembered set for key.
func (g *Gate[K]) Forget(key K) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.last, key)
}
