package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"squiggle/internal/diag"
	"squiggle/internal/fetch"
	"squiggle/internal/source"
	"squiggle/internal/trace"
)

// ServiceOptions configure the push-model service.
type ServiceOptions struct {
	// MaxParallel bounds concurrently running analyzers; zero means unbounded.
	MaxParallel int
	// Debounce delays scheduled analysis after the last change of a document.
	Debounce time.Duration
	Tracer   trace.Tracer
}

type bucketState struct {
	bucket fetch.Bucket
	items  []diag.Diagnostic
}

type docSchedule struct {
	seq    uint64
	cancel context.CancelFunc
	timer  *time.Timer
}

// Service is the push-model diagnostic service. Every analyzer publishes its
// findings for a document into a bucket of its own; a new publication replaces
// the bucket content wholesale.
type Service struct {
	engine *Engine
	opts   ServiceOptions
	tracer trace.Tracer

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu       sync.Mutex
	buckets  map[fetch.BucketID]*bucketState
	byDoc    map[source.DocumentID]map[fetch.BucketID]struct{}
	subs     map[int]func(fetch.Published)
	nextSub  int
	schedule map[source.DocumentID]*docSchedule
}

func NewService(engine *Engine, opts ServiceOptions) *Service {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = trace.Nop
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		engine:     engine,
		opts:       opts,
		tracer:     tracer,
		baseCtx:    ctx,
		baseCancel: cancel,
		buckets:    make(map[fetch.BucketID]*bucketState),
		byDoc:      make(map[source.DocumentID]map[fetch.BucketID]struct{}),
		subs:       make(map[int]func(fetch.Published)),
		schedule:   make(map[source.DocumentID]*docSchedule),
	}
}

// BucketFor returns the bucket analyzer a publishes into for doc.
func BucketFor(doc source.DocumentID, a Analyzer) fetch.Bucket {
	owner := Owner(doc, a)
	return fetch.Bucket{
		ID:       fetch.BucketID(owner),
		Document: doc,
		Owner:    owner,
		Kind:     a.Kind(),
	}
}

// Analyze runs every analyzer over snap and publishes each result as soon as
// it is ready. A failing analyzer does not stop the others; the first error
// is returned after all of them finished.
func (s *Service) Analyze(ctx context.Context, snap *source.Snapshot) error {
	return s.analyze(ctx, snap, nil)
}

func (s *Service) analyze(ctx context.Context, snap *source.Snapshot, current func() bool) error {
	var g errgroup.Group
	if s.opts.MaxParallel > 0 {
		g.SetLimit(s.opts.MaxParallel)
	}
	for _, a := range s.engine.Analyzers() {
		g.Go(func() error {
			items, err := s.engine.run(ctx, snap, a)
			if err != nil {
				return err
			}
			if ctx.Err() != nil || (current != nil && !current()) {
				return ctx.Err()
			}
			s.Publish(fetch.Published{Bucket: BucketFor(snap.Document(), a), Diagnostics: items})
			return nil
		})
	}
	return g.Wait()
}

// Publish replaces the content of p.Bucket and notifies subscribers.
func (s *Service) Publish(p fetch.Published) {
	items := append([]diag.Diagnostic(nil), p.Diagnostics...)
	s.mu.Lock()
	s.buckets[p.Bucket.ID] = &bucketState{bucket: p.Bucket, items: items}
	ids := s.byDoc[p.Bucket.Document]
	if ids == nil {
		ids = make(map[fetch.BucketID]struct{})
		s.byDoc[p.Bucket.Document] = ids
	}
	ids[p.Bucket.ID] = struct{}{}
	subs := s.subscribersLocked()
	s.mu.Unlock()

	p.Diagnostics = items
	for _, fn := range subs {
		fn(p)
	}
}

// Clear empties and forgets every bucket of doc. Subscribers see one empty
// publication per bucket.
func (s *Service) Clear(doc source.DocumentID) {
	s.mu.Lock()
	var cleared []fetch.Bucket
	for id := range s.byDoc[doc] {
		if st, ok := s.buckets[id]; ok {
			cleared = append(cleared, st.bucket)
			delete(s.buckets, id)
		}
	}
	delete(s.byDoc, doc)
	subs := s.subscribersLocked()
	s.mu.Unlock()

	sort.Slice(cleared, func(i, j int) bool { return cleared[i].ID < cleared[j].ID })
	for _, b := range cleared {
		for _, fn := range subs {
			fn(fetch.Published{Bucket: b})
		}
	}
}

func (s *Service) subscribersLocked() []func(fetch.Published) {
	out := make([]func(fetch.Published), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

// OnPublished implements fetch.Service.
func (s *Service) OnPublished(fn func(fetch.Published)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// CurrentBuckets implements fetch.Service.
func (s *Service) CurrentBuckets(doc source.DocumentID) []fetch.Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]fetch.Bucket, 0, len(s.byDoc[doc]))
	for id := range s.byDoc[doc] {
		if st, ok := s.buckets[id]; ok {
			out = append(out, st.bucket)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CurrentDiagnostics implements fetch.Service. An unknown bucket is empty.
func (s *Service) CurrentDiagnostics(ctx context.Context, id fetch.BucketID, includeSuppressed bool) ([]diag.Diagnostic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	st, ok := s.buckets[id]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	out := make([]diag.Diagnostic, 0, len(st.items))
	for _, d := range st.items {
		if d.Suppressed && !includeSuppressed {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Schedule analyses snap after the debounce delay. A newer schedule for the
// same document cancels both the pending timer and a running analysis.
func (s *Service) Schedule(snap *source.Snapshot) {
	doc := snap.Document()
	s.mu.Lock()
	st := s.schedule[doc]
	if st == nil {
		st = &docSchedule{}
		s.schedule[doc] = st
	}
	st.seq++
	seq := st.seq
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(s.opts.Debounce, func() {
		s.runScheduled(snap, seq)
	})
	s.mu.Unlock()
}

// Cancel drops pending and running scheduled analysis of doc.
func (s *Service) Cancel(doc source.DocumentID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.schedule[doc]
	if st == nil {
		return
	}
	if st.cancel != nil {
		st.cancel()
	}
	if st.timer != nil {
		st.timer.Stop()
	}
	delete(s.schedule, doc)
}

func (s *Service) isLatest(doc source.DocumentID, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.schedule[doc]
	return st != nil && st.seq == seq
}

func (s *Service) runScheduled(snap *source.Snapshot, seq uint64) {
	doc := snap.Document()
	s.mu.Lock()
	st := s.schedule[doc]
	if st == nil || st.seq != seq || s.baseCtx.Err() != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	st.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	span := trace.Begin(s.tracer, trace.ScopePass, "analyze", 0).
		WithExtra("doc", string(doc)).
		WithExtra("snapshot", snap.String())
	err := s.analyze(ctx, snap, func() bool { return s.isLatest(doc, seq) })
	switch {
	case err == nil:
		span.End("ok")
	case errors.Is(err, context.Canceled):
		span.End("cancelled")
	default:
		span.End("failed")
		trace.Error(s.tracer, trace.ScopePass, "analyze-failed", err.Error(), map[string]string{"doc": string(doc)})
	}
}

// Track keeps buckets in step with dir: opened and edited documents are
// scheduled for analysis, closed ones are cancelled and cleared.
func (s *Service) Track(dir *source.Directory) (stop func()) {
	return dir.Subscribe(func(c source.Change) {
		switch c.Kind {
		case source.ChangeOpened, source.ChangeEdited:
			s.Schedule(c.Snapshot)
		case source.ChangeClosed:
			s.Cancel(c.Document)
			s.Clear(c.Document)
		}
	})
}

// Close stops scheduled work. Published buckets stay readable.
func (s *Service) Close() {
	s.baseCancel()
	s.mu.Lock()
	for doc, st := range s.schedule {
		if st.cancel != nil {
			st.cancel()
		}
		if st.timer != nil {
			st.timer.Stop()
		}
		delete(s.schedule, doc)
	}
	s.mu.Unlock()
}
