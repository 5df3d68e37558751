package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"squiggle/internal/coalesce"
	"squiggle/internal/decor"
	"squiggle/internal/diag"
	"squiggle/internal/source"
	"squiggle/internal/trace"
)

func classify(sev diag.Severity, tags []string) (decor.RenderKind, bool) {
	for _, tag := range tags {
		if tag == diag.TagUnnecessary {
			return decor.RenderFade, true
		}
	}
	switch sev {
	case diag.SevError:
		return decor.RenderError, true
	case diag.SevWarning:
		return decor.RenderWarning, true
	case diag.SevInfo:
		return decor.RenderInfo, true
	}
	return decor.RenderNone, false
}

func mkDiag(doc source.DocumentID, id string, sev diag.Severity, start, end uint32) diag.Diagnostic {
	d := diag.New(sev, diag.SynUnclosedOpen, diag.Location{Document: doc, Span: source.Span{Start: start, End: end}}, id)
	d.ID = diag.ID(id)
	return d
}

type fakeEngine struct {
	mu      sync.Mutex
	diags   []diag.Diagnostic
	err     error
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	subs    map[int]func(source.DocumentID, diag.KindSet)
	next    int
}

func (e *fakeEngine) FetchDiagnostics(ctx context.Context, snap *source.Snapshot, span source.Span, kind diag.Kind, includeSuppressed bool) ([]diag.Diagnostic, error) {
	e.calls.Add(1)
	if e.entered != nil {
		e.entered <- struct{}{}
	}
	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.diags, e.err
}

func (e *fakeEngine) OnChanged(fn func(source.DocumentID, diag.KindSet)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subs == nil {
		e.subs = make(map[int]func(source.DocumentID, diag.KindSet))
	}
	e.next++
	id := e.next
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

func (e *fakeEngine) changed(doc source.DocumentID, kinds diag.KindSet) {
	e.mu.Lock()
	fns := make([]func(source.DocumentID, diag.KindSet), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(doc, kinds)
	}
}

func TestPullFetchConvertsAndSkips(t *testing.T) {
	dir := source.NewDirectory(0)
	snap := dir.Open("a.sq", []byte("0123456789"))
	suppressed := mkDiag("a.sq", "s", diag.SevError, 0, 1).WithSuppressed(true)
	engine := &fakeEngine{diags: []diag.Diagnostic{
		mkDiag("a.sq", "a", diag.SevError, 1, 3),
		mkDiag("a.sq", "b", diag.SevWarning, 40, 42), // за пределами снапшота
		mkDiag("a.sq", "c", diag.SevHidden, 4, 5),    // не рисуется
		mkDiag("other.sq", "d", diag.SevError, 1, 2),
		suppressed,
		mkDiag("a.sq", "e", diag.SevInfo, 7, 9),
	}}
	ring := trace.NewRing(16, trace.LevelError)
	ctx := trace.WithTracer(context.Background(), ring)
	f := NewPull(diag.KindSyntax, engine, Options{Classify: classify, Limiter: trace.NewLimiter(time.Minute)})

	batch, err := f.Fetch(ctx, Request{Snapshot: snap})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if batch.Skipped != 1 {
		t.Fatalf("skipped %d, want 1", batch.Skipped)
	}
	if len(batch.Decorations) != 2 || batch.Decorations[0].Diagnostic != "a" || batch.Decorations[1].Diagnostic != "e" {
		t.Fatalf("decorations %v", batch.Decorations)
	}
	if _, err := f.Fetch(ctx, Request{Snapshot: snap}); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if n := len(ring.Events()); n != 1 {
		t.Fatalf("skip reported %d times, want once", n)
	}

	batch, err = f.Fetch(ctx, Request{Snapshot: snap, IncludeSuppressed: true, Ranges: []source.Span{{Start: 0, End: 2}}})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(batch.Decorations) != 2 || batch.Decorations[1].Diagnostic != "s" || !batch.Decorations[1].Payload.Suppressed {
		t.Fatalf("ranged fetch with suppressed: %v", batch.Decorations)
	}
}

func TestPullFetchPropagatesEngineError(t *testing.T) {
	snap := source.NewBuffer("a.sq", []byte("x"), 0).Current()
	boom := errors.New("boom")
	f := NewPull(diag.KindSemantic, &fakeEngine{err: boom}, Options{Classify: classify})
	if _, err := f.Fetch(context.Background(), Request{Snapshot: snap}); !errors.Is(err, boom) {
		t.Fatalf("err %v, want boom", err)
	}
	f.Close()
	if _, err := f.Fetch(context.Background(), Request{Snapshot: snap}); !errors.Is(err, ErrClosed) {
		t.Fatalf("err %v, want ErrClosed", err)
	}
}

func TestPullFetchSharesIdenticalCalls(t *testing.T) {
	snap := source.NewBuffer("a.sq", []byte("0123"), 0).Current()
	engine := &fakeEngine{
		diags:   []diag.Diagnostic{mkDiag("a.sq", "a", diag.SevError, 0, 1)},
		entered: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
	f := NewPull(diag.KindSyntax, engine, Options{Classify: classify})

	var wg sync.WaitGroup
	results := make([]int, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := f.Fetch(context.Background(), Request{Snapshot: snap})
			if err == nil {
				results[i] = len(b.Decorations)
			}
		}(i)
		if i == 0 {
			<-engine.entered
		}
	}
	time.Sleep(50 * time.Millisecond)
	close(engine.release)
	wg.Wait()

	if n := engine.calls.Load(); n != 1 {
		t.Fatalf("engine called %d times, want 1", n)
	}
	if results[0] != 1 || results[1] != 1 {
		t.Fatalf("results %v", results)
	}
}

func TestPullFetchCancelled(t *testing.T) {
	snap := source.NewBuffer("a.sq", []byte("0123"), 0).Current()
	engine := &fakeEngine{release: make(chan struct{}), entered: make(chan struct{}, 1)}
	f := NewPull(diag.KindSyntax, engine, Options{Classify: classify})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, Request{Snapshot: snap})
		done <- err
	}()
	<-engine.entered
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err %v, want context.Canceled", err)
	}
}

func TestPullWatch(t *testing.T) {
	engine := &fakeEngine{}
	f := NewPull(diag.KindSemantic, engine, Options{Classify: classify})
	ctx, cancel := context.WithCancel(context.Background())
	ch := f.Watch(ctx, "a.sq")

	engine.changed("b.sq", diag.AllKinds)
	engine.changed("a.sq", diag.KindsOf(diag.KindSyntax))
	engine.changed("a.sq", diag.KindsOf(diag.KindSemantic))

	select {
	case s := <-ch:
		if s.Kind != coalesce.DiagnosticsChanged || s.Document != "a.sq" || s.Kinds != diag.KindsOf(diag.KindSemantic) {
			t.Fatalf("signal %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatalf("no signal")
	}
	select {
	case s := <-ch:
		t.Fatalf("unexpected signal %+v", s)
	default:
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("channel still open")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed after cancel")
	}
}

func TestLocationsToTag(t *testing.T) {
	primary := diag.Location{Document: "a.sq", Span: source.Span{Start: 0, End: 10}}
	name := diag.Location{Document: "a.sq", Span: source.Span{Start: 4, End: 5}}
	d := diag.New(diag.SevHidden, diag.SemUnusedBinding, primary, "unused").
		WithTags(diag.TagUnnecessary).
		WithAdditional(name)

	if got := LocationsToTag(&d); len(got) != 1 || got[0] != primary {
		t.Fatalf("default: %v", got)
	}
	withIdx := d.WithUnnecessary(0)
	if got := LocationsToTag(&withIdx); len(got) != 1 || got[0] != name {
		t.Fatalf("unnecessary: %v", got)
	}
	bad := d.WithUnnecessary(7)
	if got := LocationsToTag(&bad); len(got) != 1 || got[0] != primary {
		t.Fatalf("invalid index: %v", got)
	}
}

func TestConverterDedupsSameDiagnostic(t *testing.T) {
	snap := source.NewBuffer("a.sq", []byte("let x = 1"), 0).Current()
	name := diag.Location{Document: "a.sq", Span: source.Span{Start: 4, End: 5}}
	d := mkDiag("a.sq", "u", diag.SevHidden, 0, 9).
		WithTags(diag.TagUnnecessary).
		WithAdditional(name, name).
		WithUnnecessary(0, 1)
	f := NewPull(diag.KindSemantic, &fakeEngine{diags: []diag.Diagnostic{d}}, Options{Classify: classify})
	batch, err := f.Fetch(context.Background(), Request{Snapshot: snap})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(batch.Decorations) != 1 || batch.Decorations[0].Span != name.Span || batch.Decorations[0].Payload.Render != decor.RenderFade {
		t.Fatalf("decorations %v", batch.Decorations)
	}
}

func TestMaxDiagnostics(t *testing.T) {
	snap := source.NewBuffer("a.sq", []byte("0123456789"), 0).Current()
	engine := &fakeEngine{diags: []diag.Diagnostic{
		mkDiag("a.sq", "a", diag.SevError, 0, 1),
		mkDiag("a.sq", "b", diag.SevError, 2, 3),
		mkDiag("a.sq", "c", diag.SevError, 4, 5),
	}}
	f := NewPull(diag.KindSyntax, engine, Options{Classify: classify, MaxDiagnostics: 2})
	batch, err := f.Fetch(context.Background(), Request{Snapshot: snap})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(batch.Decorations) != 2 || !batch.Truncated {
		t.Fatalf("got %d decorations truncated=%v", len(batch.Decorations), batch.Truncated)
	}
}
