// Package pipeline turns diagnostics into decoration sources that editors
// subscribe to per document, kind subset and range.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"squiggle/internal/aggregate"
	"squiggle/internal/coalesce"
	"squiggle/internal/decor"
	"squiggle/internal/diag"
	"squiggle/internal/fetch"
	"squiggle/internal/source"
	"squiggle/internal/suppress"
	"squiggle/internal/trace"
)

var (
	ErrClosed       = errors.New("provider closed")
	ErrNoKinds      = errors.New("no subscribed kind has a fetcher")
	ErrNoClassifier = errors.New("classifier is required")
	ErrSuperseded   = errors.New("pass superseded by newer work")
)

// Mode selects how diagnostics reach the pipeline. It is global to a
// Provider.
type Mode uint8

const (
	ModePull Mode = iota
	ModePush
)

func (m Mode) String() string {
	switch m {
	case ModePull:
		return "pull"
	case ModePush:
		return "push"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Backend supplies diagnostics. Engine is used in pull mode, Service in
// push mode.
type Backend struct {
	Engine  fetch.Engine
	Service fetch.Service
}

// Options configure a Provider.
type Options struct {
	Mode Mode
	// Kinds limits the fetchers the provider builds; empty means all kinds.
	Kinds             diag.KindSet
	IncludeSuppressed bool

	RecomputeDelay time.Duration
	NotifyAdded    time.Duration
	NotifyRemoved  time.Duration

	CorrelationSize int
	MaxDiagnostics  int
	MaxParallel     int
	// ReportInterval rate-limits out-of-range reports per diagnostic.
	ReportInterval time.Duration

	Classify decor.Classifier
	Tracer   trace.Tracer
}

type sourceKey struct {
	doc    source.DocumentID
	kinds  diag.KindSet
	ranges string
}

func makeKey(doc source.DocumentID, kinds diag.KindSet, ranges []source.Span) sourceKey {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = r.String()
	}
	return sourceKey{doc: doc, kinds: kinds, ranges: strings.Join(parts, ",")}
}

// Provider owns the fetchers, the suppression registry and the buffer
// directory, and hands out shared decoration sources.
type Provider struct {
	opts     Options
	dir      *source.Directory
	registry *suppress.Registry
	agg      *aggregate.Aggregator
	tracer   trace.Tracer

	ctx     context.Context
	cancel  context.CancelFunc
	stopDir func()
	session *trace.Span

	mu      sync.Mutex
	sources map[sourceKey]*Source
	refs    map[*Source]int
	closed  bool
}

// NewProvider builds one fetcher per configured kind for opts.Mode.
func NewProvider(dir *source.Directory, backend Backend, opts Options) (*Provider, error) {
	if opts.Classify == nil {
		return nil, ErrNoClassifier
	}
	if opts.Kinds.Empty() {
		opts.Kinds = diag.AllKinds
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = trace.Nop
	}
	fopts := fetch.Options{
		Classify:       opts.Classify,
		Limiter:        trace.NewLimiter(opts.ReportInterval),
		MaxDiagnostics: opts.MaxDiagnostics,
	}

	fetchers := make([]fetch.Fetcher, 0, opts.Kinds.Len())
	for _, kind := range opts.Kinds.Kinds() {
		switch opts.Mode {
		case ModePull:
			if backend.Engine == nil {
				return nil, fmt.Errorf("%s mode needs an analysis engine", opts.Mode)
			}
			fetchers = append(fetchers, fetch.NewPull(kind, backend.Engine, fopts))
		case ModePush:
			if backend.Service == nil {
				return nil, fmt.Errorf("%s mode needs a diagnostic service", opts.Mode)
			}
			f, err := fetch.NewPush(kind, backend.Service, dir, fopts, opts.CorrelationSize)
			if err != nil {
				closeAll(fetchers)
				return nil, fmt.Errorf("%s fetcher: %w", kind, err)
			}
			fetchers = append(fetchers, f)
		default:
			return nil, fmt.Errorf("unsupported mode %s", opts.Mode)
		}
	}

	ctx, cancel := context.WithCancel(trace.WithTracer(context.Background(), tracer))
	p := &Provider{
		opts:     opts,
		dir:      dir,
		registry: suppress.NewRegistry(),
		agg:      aggregate.New(opts.MaxParallel, fetchers...),
		tracer:   tracer,
		ctx:      ctx,
		cancel:   cancel,
		sources:  make(map[sourceKey]*Source),
		refs:     make(map[*Source]int),
	}
	p.session = trace.Begin(tracer, trace.ScopeSession, "provider", 0).
		WithExtra("mode", opts.Mode.String()).
		WithExtra("kinds", opts.Kinds.String())
	p.stopDir = dir.Subscribe(p.onBufferChange)
	return p, nil
}

func closeAll(fetchers []fetch.Fetcher) {
	for _, f := range fetchers {
		_ = f.Close()
	}
}

func (p *Provider) Mode() Mode { return p.opts.Mode }

// Kinds reports the kinds the provider has fetchers for.
func (p *Provider) Kinds() diag.KindSet { return p.agg.Kinds() }

func (p *Provider) Directory() *source.Directory { return p.dir }

// Subscribe returns the decoration source for doc, kinds and ranges.
// Identical subscriptions share one Source; every Subscribe must be paired
// with a Release. Empty kinds means every kind the provider serves.
func (p *Provider) Subscribe(doc source.DocumentID, kinds diag.KindSet, ranges []source.Span) (*Source, error) {
	if kinds.Empty() {
		kinds = p.agg.Kinds()
	}
	kinds = kinds.Intersect(p.agg.Kinds())
	if kinds.Empty() {
		return nil, ErrNoKinds
	}
	key := makeKey(doc, kinds, ranges)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if s, ok := p.sources[key]; ok {
		p.refs[s]++
		p.mu.Unlock()
		return s, nil
	}
	s := newSource(p, key, append([]source.Span(nil), ranges...))
	p.sources[key] = s
	p.refs[s] = 1
	p.mu.Unlock()

	s.start()
	return s, nil
}

func (p *Provider) release(s *Source) {
	p.mu.Lock()
	n, ok := p.refs[s]
	if !ok {
		p.mu.Unlock()
		return
	}
	if n > 1 {
		p.refs[s] = n - 1
		p.mu.Unlock()
		return
	}
	delete(p.refs, s)
	delete(p.sources, s.key)
	p.mu.Unlock()
	s.stop()
}

func (p *Provider) sourcesFor(doc source.DocumentID) []*Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*Source
	for key, s := range p.sources {
		if key.doc == doc {
			out = append(out, s)
		}
	}
	return out
}

func (p *Provider) broadcast(doc source.DocumentID, sig coalesce.Signal) {
	for _, s := range p.sourcesFor(doc) {
		s.signal(sig)
	}
}

func (p *Provider) onBufferChange(c source.Change) {
	p.broadcast(c.Document, coalesce.Signal{Kind: coalesce.TextChanged, Document: c.Document})
}

// AttachSuppressed sets the suppressed regions of doc and recomputes its
// sources.
func (p *Provider) AttachSuppressed(doc source.DocumentID, set suppress.Set) {
	p.registry.Attach(doc, set)
	p.broadcast(doc, coalesce.Signal{Kind: coalesce.ContextChanged, Document: doc})
}

// DetachSuppressed removes the suppressed regions of doc.
func (p *Provider) DetachSuppressed(doc source.DocumentID) {
	if p.registry.Detach(doc) {
		p.broadcast(doc, coalesce.Signal{Kind: coalesce.ContextChanged, Document: doc})
	}
}

// NotifyContextChanged recomputes every source of doc.
func (p *Provider) NotifyContextChanged(doc source.DocumentID) {
	p.broadcast(doc, coalesce.Signal{Kind: coalesce.ContextChanged, Document: doc})
}

// NotifyRegistrationChanged recomputes kinds on every source.
func (p *Provider) NotifyRegistrationChanged(kinds diag.KindSet) {
	p.mu.Lock()
	all := make([]*Source, 0, len(p.sources))
	for _, s := range p.sources {
		all = append(all, s)
	}
	p.mu.Unlock()
	for _, s := range all {
		s.signal(coalesce.Signal{Kind: coalesce.RegistrationChanged, Document: s.key.doc, Kinds: kinds})
	}
}

// Close stops every source and fetcher. Sources keep their last decorations.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	all := make([]*Source, 0, len(p.sources))
	for _, s := range p.sources {
		all = append(all, s)
	}
	p.sources = map[sourceKey]*Source{}
	p.refs = map[*Source]int{}
	p.mu.Unlock()

	p.stopDir()
	for _, s := range all {
		s.stop()
	}
	p.cancel()
	err := p.agg.Close()
	p.session.End("closed")
	return err
}
