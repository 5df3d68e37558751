package engine

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"squiggle/internal/diag"
	"squiggle/internal/source"
)

// Options tune analysis result collection.
type Options struct {
	// MaxDiagnostics caps findings per analyzer run; zero means unlimited.
	MaxDiagnostics int
}

type cacheKey struct {
	doc  source.DocumentID
	kind diag.Kind
}

type cacheEntry struct {
	buffer  source.BufferID
	version source.Version
	items   []diag.Diagnostic
}

// Engine is the pull-model analysis engine. Results are computed on demand
// and cached per document and kind for the most recently analysed snapshot.
type Engine struct {
	opts Options

	mu        sync.Mutex
	analyzers []Analyzer
	cache     map[cacheKey]cacheEntry
	subs      map[int]func(source.DocumentID, diag.KindSet)
	nextSub   int
	runs      atomic.Int64
}

func New(opts Options, analyzers ...Analyzer) *Engine {
	return &Engine{
		opts:      opts,
		analyzers: append([]Analyzer(nil), analyzers...),
		cache:     make(map[cacheKey]cacheEntry),
		subs:      make(map[int]func(source.DocumentID, diag.KindSet)),
	}
}

// Analyzers returns the registered analyzers.
func (e *Engine) Analyzers() []Analyzer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Analyzer(nil), e.analyzers...)
}

// Kinds returns the set of kinds some analyzer produces.
func (e *Engine) Kinds() diag.KindSet {
	var set diag.KindSet
	for _, a := range e.Analyzers() {
		set = set.With(a.Kind())
	}
	return set
}

// Runs reports how many analyzer passes the engine has executed.
func (e *Engine) Runs() int64 { return e.runs.Load() }

// Register adds analyzers and announces a change of every kind they produce
// for each document with cached results.
func (e *Engine) Register(analyzers ...Analyzer) {
	var kinds diag.KindSet
	for _, a := range analyzers {
		kinds = kinds.With(a.Kind())
	}
	e.mu.Lock()
	e.analyzers = append(e.analyzers, analyzers...)
	docs := e.dropLocked("", kinds)
	e.mu.Unlock()
	for _, doc := range docs {
		e.notify(doc, kinds)
	}
}

// FetchDiagnostics implements fetch.Engine.
func (e *Engine) FetchDiagnostics(ctx context.Context, snap *source.Snapshot, span source.Span, kind diag.Kind, includeSuppressed bool) ([]diag.Diagnostic, error) {
	items, err := e.Analyze(ctx, snap, kind)
	if err != nil {
		return nil, err
	}
	out := make([]diag.Diagnostic, 0, len(items))
	for i := range items {
		d := &items[i]
		if d.Suppressed && !includeSuppressed {
			continue
		}
		if !d.Location.Span.Intersects(span) {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

// Analyze returns every finding of kind for snap, reusing the cached result
// when snap is the snapshot it was computed for.
func (e *Engine) Analyze(ctx context.Context, snap *source.Snapshot, kind diag.Kind) ([]diag.Diagnostic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := cacheKey{doc: snap.Document(), kind: kind}
	e.mu.Lock()
	if entry, ok := e.cache[key]; ok && entry.buffer == snap.Buffer() && entry.version == snap.Version() {
		e.mu.Unlock()
		return entry.items, nil
	}
	var selected []Analyzer
	for _, a := range e.analyzers {
		if a.Kind() == kind {
			selected = append(selected, a)
		}
	}
	e.mu.Unlock()

	var items []diag.Diagnostic
	for _, a := range selected {
		found, err := e.run(ctx, snap, a)
		if err != nil {
			return nil, err
		}
		items = append(items, found...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if prev, ok := e.cache[key]; !ok || prev.buffer != snap.Buffer() || prev.version <= snap.Version() {
		e.cache[key] = cacheEntry{buffer: snap.Buffer(), version: snap.Version(), items: items}
	}
	e.mu.Unlock()
	return items, nil
}

func (e *Engine) run(ctx context.Context, snap *source.Snapshot, a Analyzer) ([]diag.Diagnostic, error) {
	e.runs.Add(1)
	return collect(ctx, snap, a, e.opts.MaxDiagnostics)
}

// OnChanged implements fetch.Engine.
func (e *Engine) OnChanged(fn func(doc source.DocumentID, kinds diag.KindSet)) func() {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Invalidate drops cached results of kinds for doc and tells subscribers
// they changed.
func (e *Engine) Invalidate(doc source.DocumentID, kinds diag.KindSet) {
	e.mu.Lock()
	e.dropLocked(doc, kinds)
	e.mu.Unlock()
	e.notify(doc, kinds)
}

// Track evicts cached results of documents closed in dir.
func (e *Engine) Track(dir *source.Directory) (stop func()) {
	return dir.Subscribe(func(c source.Change) {
		if c.Kind != source.ChangeClosed {
			return
		}
		e.mu.Lock()
		e.dropLocked(c.Document, diag.AllKinds)
		e.mu.Unlock()
	})
}

// dropLocked removes cache entries of kinds for doc, or for every document
// when doc is empty, and returns the affected documents.
func (e *Engine) dropLocked(doc source.DocumentID, kinds diag.KindSet) []source.DocumentID {
	seen := make(map[source.DocumentID]bool)
	for key := range e.cache {
		if (doc == "" || key.doc == doc) && kinds.Has(key.kind) {
			delete(e.cache, key)
			seen[key.doc] = true
		}
	}
	docs := make([]source.DocumentID, 0, len(seen))
	for d := range seen {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i] < docs[j] })
	return docs
}

func (e *Engine) notify(doc source.DocumentID, kinds diag.KindSet) {
	e.mu.Lock()
	subs := make([]func(source.DocumentID, diag.KindSet), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()
	for _, fn := range subs {
		fn(doc, kinds)
	}
}
