package pipeline

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"squiggle/internal/aggregate"
	"squiggle/internal/coalesce"
	"squiggle/internal/decor"
	"squiggle/internal/diag"
	"squiggle/internal/fetch"
	"squiggle/internal/gate"
	"squiggle/internal/snapmap"
	"squiggle/internal/source"
	"squiggle/internal/suppress"
	"squiggle/internal/trace"
)

type pass struct {
	seq    uint64
	kinds  diag.KindSet
	cancel context.CancelFunc
}

// Source is a subscribable decoration set for one document, kind subset and
// range list. It is shared between identical subscriptions.
type Source struct {
	p      *Provider
	key    sourceKey
	ranges []source.Span

	ctx       context.Context
	cancel    context.CancelFunc
	coalescer *coalesce.Coalescer
	notifier  *coalesce.Notifier
	gate      *gate.Gate[diag.Kind]

	mu       sync.Mutex
	seq      uint64
	latest   map[diag.Kind]uint64
	inflight map[uint64]*pass
	current  map[diag.Kind]decor.Set
	status   map[diag.Kind]*KindStatus
	subs     map[int]func()
	nextSub  int
	stopped  bool
}

func newSource(p *Provider, key sourceKey, ranges []source.Span) *Source {
	ctx, cancel := context.WithCancel(p.ctx)
	s := &Source{
		p:        p,
		key:      key,
		ranges:   ranges,
		ctx:      ctx,
		cancel:   cancel,
		gate:     gate.New[diag.Kind](),
		latest:   make(map[diag.Kind]uint64),
		inflight: make(map[uint64]*pass),
		current:  make(map[diag.Kind]decor.Set),
		status:   make(map[diag.Kind]*KindStatus),
		subs:     make(map[int]func()),
	}
	for _, k := range key.kinds.Kinds() {
		s.status[k] = &KindStatus{Kind: k}
	}
	s.coalescer = coalesce.New(p.opts.RecomputeDelay, key.kinds, s.onRequest)
	s.notifier = coalesce.NewNotifier(p.opts.NotifyAdded, p.opts.NotifyRemoved, s.notify)
	return s
}

func (s *Source) Document() source.DocumentID { return s.key.doc }

func (s *Source) Kinds() diag.KindSet { return s.key.kinds }

// start observes the fetchers and schedules the first pass.
func (s *Source) start() {
	changes := s.p.agg.Watch(s.ctx, s.key.doc, s.key.kinds)
	go func() {
		for sig := range changes {
			s.signal(sig)
		}
	}()
	s.signal(coalesce.Signal{Kind: coalesce.ContextChanged, Document: s.key.doc})
}

func (s *Source) signal(sig coalesce.Signal) {
	kinds := s.key.kinds
	if !sig.Kinds.Empty() {
		kinds = sig.Kinds.Intersect(kinds)
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	for _, k := range kinds.Kinds() {
		if st := s.status[k]; st.State == StateIdle {
			st.State = StateScheduled
		}
	}
	s.mu.Unlock()
	s.coalescer.Signal(sig)
}

func (s *Source) onRequest(req coalesce.Request) {
	ctx, p, ok := s.begin(s.ctx, req.Kinds)
	if !ok {
		return
	}
	go s.run(ctx, p, req.Reasons)
}

// begin registers a pass for kinds. Older passes sharing a kind are
// cancelled and their kinds absorbed, so no kind is left without a pass.
func (s *Source) begin(parent context.Context, kinds diag.KindSet) (context.Context, *pass, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, nil, false
	}
	for seq, old := range s.inflight {
		if old.kinds.Intersect(kinds).Empty() {
			continue
		}
		old.cancel()
		kinds = kinds.Union(old.kinds)
		delete(s.inflight, seq)
	}
	s.seq++
	ctx, cancel := context.WithCancel(parent)
	p := &pass{seq: s.seq, kinds: kinds, cancel: cancel}
	s.inflight[p.seq] = p
	for _, k := range kinds.Kinds() {
		s.latest[k] = p.seq
		s.status[k].State = StateFetching
	}
	return ctx, p, true
}

func (s *Source) run(ctx context.Context, p *pass, reasons coalesce.Reasons) bool {
	defer p.cancel()
	ctx, span := trace.Start(ctx, trace.ScopePass, "pass")
	span.WithExtra("doc", string(s.key.doc)).
		WithExtra("seq", strconv.FormatUint(p.seq, 10)).
		WithExtra("kinds", p.kinds.String()).
		WithExtra("reasons", reasons.String())

	snap, open := s.p.dir.CurrentSnapshot(s.key.doc)
	var results []aggregate.Result
	if open {
		span.WithExtra("snapshot", snap.String())
		results = s.p.agg.Fetch(ctx, p.kinds, fetch.Request{
			Snapshot:          snap,
			Ranges:            s.ranges,
			IncludeSuppressed: s.p.opts.IncludeSuppressed,
		})
	}
	published := s.apply(ctx, p, snap, results)
	span.WithExtra("published", strconv.FormatBool(published))
	span.End("")
	return published
}

// apply publishes results for kinds p is still the latest pass of. A closed
// document clears every kind of the pass. It reports whether anything was
// published.
func (s *Source) apply(ctx context.Context, p *pass, snap *source.Snapshot, results []aggregate.Result) bool {
	set, _ := s.p.registry.Get(s.key.doc)

	s.mu.Lock()
	delete(s.inflight, p.seq)
	if s.stopped || ctx.Err() != nil {
		for _, k := range p.kinds.Kinds() {
			if s.latest[k] == p.seq {
				s.status[k].State = StateIdle
				s.status[k].Outcome = aggregate.OutcomeCancelled
			}
		}
		s.mu.Unlock()
		return false
	}

	if snap == nil {
		results = results[:0]
		for _, k := range p.kinds.Kinds() {
			results = append(results, aggregate.Result{Kind: k})
		}
	}

	var delta gate.Delta
	for _, r := range results {
		if s.latest[r.Kind] != p.seq {
			continue
		}
		st := s.status[r.Kind]
		st.State = StateIdle
		st.Outcome = r.Outcome()
		st.Err = r.Err
		st.Elapsed = r.Elapsed
		st.Skipped = r.Batch.Skipped
		st.Fallbacks = r.Batch.Fallbacks
		st.Truncated = r.Batch.Truncated
		if st.Outcome == aggregate.OutcomeCancelled {
			continue
		}
		st.Passes++

		var items []decor.Decoration
		if st.Outcome == aggregate.OutcomeOK && snap != nil {
			items = suppress.Filter(r.Batch.Decorations, snap, set)
		}
		st.Decorations = len(items)
		s.current[r.Kind] = decor.Set{Snapshot: snap, Items: items}
		d := s.gate.Offer(r.Kind, items)
		delta.Added += d.Added
		delta.Removed += d.Removed
	}
	s.mu.Unlock()

	if delta.Changed() {
		s.notifier.Schedule(delta.Added > 0)
	}
	return true
}

// Refresh runs one pass for every kind of the source in the calling
// goroutine and applies its results. It returns ErrSuperseded when a newer
// pass cancelled it.
func (s *Source) Refresh(ctx context.Context) error {
	ctx = trace.WithTracer(ctx, s.p.tracer)
	linked, stopLink := linkContext(ctx, s.ctx)
	defer stopLink()
	pctx, p, ok := s.begin(linked, s.key.kinds)
	if !ok {
		return ErrClosed
	}
	if s.run(pctx, p, coalesce.Reasons(0).With(coalesce.ContextChanged)) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if linked.Err() != nil {
		return ErrClosed
	}
	return ErrSuperseded
}

// linkContext returns ctx cancelled also when other is done.
func linkContext(ctx, other context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(other, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// GetDecorations returns the published decorations translated edge-exclusive
// onto snap and limited to ranges (all of snap when empty). Suppressed
// regions attached after the last pass are honoured too.
func (s *Source) GetDecorations(snap *source.Snapshot, ranges []source.Span) []decor.Decoration {
	s.mu.Lock()
	sets := make([]decor.Set, 0, len(s.current))
	for _, k := range s.key.kinds.Kinds() {
		if set, ok := s.current[k]; ok && len(set.Items) > 0 {
			sets = append(sets, set)
		}
	}
	s.mu.Unlock()

	var out []decor.Decoration
	for _, set := range sets {
		for _, d := range set.Items {
			span, ok := carry(d.Span, set.Snapshot, snap)
			if !ok || !span.IntersectsAny(ranges) {
				continue
			}
			d.Span = span
			out = append(out, d)
		}
	}
	if regions, ok := s.p.registry.Get(s.key.doc); ok {
		out = suppress.Filter(out, snap, regions)
	}
	return out
}

// carry moves span from the snapshot it was published on to target. Spans
// that cannot be translated are read on target directly.
func carry(span source.Span, from, target *source.Snapshot) (source.Span, bool) {
	if from != nil && from.SameBuffer(target) {
		if mapped, err := snapmap.Map(span, from, target, source.EdgeExclusive); err == nil {
			return mapped, true
		}
	}
	resolved, err := snapmap.Resolve(span, target)
	return resolved, err == nil
}

// OnChanged registers fn for decoration changes. fn runs after the
// notification delay, on a timer goroutine.
func (s *Source) OnChanged(fn func()) (unsubscribe func()) {
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

func (s *Source) notify() {
	s.mu.Lock()
	subs := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// Status reports every kind of the source, ordered by kind.
func (s *Source) Status() []KindStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]KindStatus, 0, len(s.status))
	for _, st := range s.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Release drops one reference. The last Release stops the source.
func (s *Source) Release() {
	s.p.release(s)
}

func (s *Source) stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for seq, p := range s.inflight {
		p.cancel()
		delete(s.inflight, seq)
	}
	s.mu.Unlock()
	s.coalescer.Stop()
	s.notifier.Close()
	s.cancel()
}
