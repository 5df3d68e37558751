package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"squiggle/internal/coalesce"
	"squiggle/internal/diag"
	"squiggle/internal/source"
)

// BucketID is the opaque identity of a push-model bucket.
type BucketID string

// Bucket groups the diagnostics one owner published for one document.
type Bucket struct {
	ID       BucketID
	Document source.DocumentID
	Owner    diag.OwnerID
	Kind     diag.Kind
}

// Published is delivered to subscribers whenever a bucket is replaced.
type Published struct {
	Bucket      Bucket
	Diagnostics []diag.Diagnostic
}

// Service is the push-model diagnostic service.
type Service interface {
	OnPublished(fn func(Published)) (unsubscribe func())
	CurrentBuckets(doc source.DocumentID) []Bucket
	CurrentDiagnostics(ctx context.Context, id BucketID, includeSuppressed bool) ([]diag.Diagnostic, error)
}

// PushFetcher reads the latest published buckets of its kind and re-anchors
// them onto the requested snapshot through its Correlator.
type PushFetcher struct {
	kind    diag.Kind
	service Service
	buffers Buffers
	opts    Options
	corr    *Correlator

	mu          sync.Mutex
	watchers    map[source.DocumentID]map[*pipe]struct{}
	closed      bool
	unsubscribe func()
}

func NewPush(kind diag.Kind, service Service, buffers Buffers, opts Options, correlationSize int) (*PushFetcher, error) {
	corr, err := NewCorrelator(correlationSize)
	if err != nil {
		return nil, fmt.Errorf("correlation cache: %w", err)
	}
	f := &PushFetcher{
		kind:     kind,
		service:  service,
		buffers:  buffers,
		opts:     opts,
		corr:     corr,
		watchers: make(map[source.DocumentID]map[*pipe]struct{}),
	}
	f.unsubscribe = service.OnPublished(f.observe)
	return f, nil
}

func (f *PushFetcher) Kind() diag.Kind { return f.kind }

// Correlator exposes the correlation cache for inspection.
func (f *PushFetcher) Correlator() *Correlator { return f.corr }

func (f *PushFetcher) observe(p Published) {
	if p.Bucket.Kind != f.kind {
		return
	}
	if snap, ok := f.buffers.CurrentSnapshot(p.Bucket.Document); ok {
		f.corr.Observe(p.Bucket.ID, snap)
	} else {
		f.corr.Forget(p.Bucket.ID)
	}

	f.mu.Lock()
	pipes := make([]*pipe, 0, len(f.watchers[p.Bucket.Document]))
	for w := range f.watchers[p.Bucket.Document] {
		pipes = append(pipes, w)
	}
	f.mu.Unlock()
	sig := coalesce.Signal{Kind: coalesce.DiagnosticsChanged, Document: p.Bucket.Document, Kinds: diag.KindsOf(f.kind)}
	for _, w := range pipes {
		w.send(sig)
	}
}

func (f *PushFetcher) Fetch(ctx context.Context, req Request) (Batch, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return Batch{}, ErrClosed
	}
	if req.Snapshot == nil {
		return Batch{}, errors.New("fetch: request without snapshot")
	}

	conv := newConverter(f.kind, f.opts, req)
	for _, b := range f.service.CurrentBuckets(req.Snapshot.Document()) {
		if b.Kind != f.kind {
			continue
		}
		diags, err := f.service.CurrentDiagnostics(ctx, b.ID, req.IncludeSuppressed)
		if err != nil {
			return Batch{}, fmt.Errorf("bucket %s: %w", b.ID, err)
		}
		if err := ctx.Err(); err != nil {
			return Batch{}, err
		}
		origin, _ := f.corr.Lookup(b.ID)
		conv.add(ctx, diags, origin)
	}
	return conv.result(), nil
}

func (f *PushFetcher) Watch(ctx context.Context, doc source.DocumentID) <-chan coalesce.Signal {
	p := newPipe()
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		p.close()
		return p.ch
	}
	set := f.watchers[doc]
	if set == nil {
		set = make(map[*pipe]struct{})
		f.watchers[doc] = set
	}
	set[p] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		if set := f.watchers[doc]; set != nil {
			delete(set, p)
			if len(set) == 0 {
				delete(f.watchers, doc)
			}
		}
		f.mu.Unlock()
		p.close()
	}()
	return p.ch
}

func (f *PushFetcher) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	watchers := f.watchers
	f.watchers = make(map[source.DocumentID]map[*pipe]struct{})
	f.mu.Unlock()

	f.unsubscribe()
	for _, set := range watchers {
		for p := range set {
			p.close()
		}
	}
	return nil
}
