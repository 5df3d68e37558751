package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"squiggle/internal/coalesce"
	"squiggle/internal/diag"
	"squiggle/internal/source"
)

// Engine is the pull-model analysis engine.
type Engine interface {
	// FetchDiagnostics returns diagnostics of kind intersecting span, computed
	// against snap. The result must not be modified by the caller.
	FetchDiagnostics(ctx context.Context, snap *source.Snapshot, span source.Span, kind diag.Kind, includeSuppressed bool) ([]diag.Diagnostic, error)
	// OnChanged registers fn for "diagnostics of these kinds changed for doc".
	OnChanged(fn func(doc source.DocumentID, kinds diag.KindSet)) (unsubscribe func())
}

// PullFetcher asks the engine on every fetch. Identical concurrent requests
// share a single engine call.
type PullFetcher struct {
	kind   diag.Kind
	engine Engine
	opts   Options
	group  singleflight.Group
	closed atomic.Bool
}

func NewPull(kind diag.Kind, engine Engine, opts Options) *PullFetcher {
	return &PullFetcher{kind: kind, engine: engine, opts: opts}
}

func (f *PullFetcher) Kind() diag.Kind { return f.kind }

func (f *PullFetcher) Fetch(ctx context.Context, req Request) (Batch, error) {
	if f.closed.Load() {
		return Batch{}, ErrClosed
	}
	if req.Snapshot == nil {
		return Batch{}, errors.New("fetch: request without snapshot")
	}
	span := req.cover()
	key := fmt.Sprintf("%s/%d/%s/%t", req.Snapshot, f.kind, span, req.IncludeSuppressed)
	call := func() (any, error) {
		return f.engine.FetchDiagnostics(ctx, req.Snapshot, span, f.kind, req.IncludeSuppressed)
	}

	var diags []diag.Diagnostic
	select {
	case <-ctx.Done():
		return Batch{}, ctx.Err()
	case res := <-f.group.DoChan(key, call):
		err := res.Err
		if err == nil {
			diags, _ = res.Val.([]diag.Diagnostic)
		} else if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			// the shared call belonged to a cancelled caller
			diags, err = f.engine.FetchDiagnostics(ctx, req.Snapshot, span, f.kind, req.IncludeSuppressed)
		}
		if err != nil {
			return Batch{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}

	conv := newConverter(f.kind, f.opts, req)
	conv.add(ctx, diags, req.Snapshot)
	return conv.result(), nil
}

func (f *PullFetcher) Watch(ctx context.Context, doc source.DocumentID) <-chan coalesce.Signal {
	p := newPipe()
	if f.closed.Load() {
		p.close()
		return p.ch
	}
	unsubscribe := f.engine.OnChanged(func(changed source.DocumentID, kinds diag.KindSet) {
		if changed != doc || !(kinds.Empty() || kinds.Has(f.kind)) {
			return
		}
		p.send(coalesce.Signal{Kind: coalesce.DiagnosticsChanged, Document: doc, Kinds: diag.KindsOf(f.kind)})
	})
	go func() {
		<-ctx.Done()
		unsubscribe()
		p.close()
	}()
	return p.ch
}

func (f *PullFetcher) Close() error {
	f.closed.Store(true)
	return nil
}
