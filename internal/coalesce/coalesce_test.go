package coalesce

import (
	"context"
	"sync"
	"testing"
	"time"

	"squiggle/internal/diag"
)

type recorder struct {
	mu   sync.Mutex
	reqs []Request
	ch   chan Request
}

func newRecorder() *recorder { return &recorder{ch: make(chan Request, 16)} }

func (r *recorder) fire(req Request) {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()
	r.ch <- req
}

func (r *recorder) wait(t *testing.T) Request {
	t.Helper()
	select {
	case req := <-r.ch:
		return req
	case <-time.After(2 * time.Second):
		t.Fatalf("no request fired")
	}
	return Request{}
}

func TestCoalescerCollapsesBurst(t *testing.T) {
	rec := newRecorder()
	c := New(30*time.Millisecond, diag.AllKinds, rec.fire)
	defer c.Stop()

	c.Signal(Signal{Kind: TextChanged})
	c.Signal(Signal{Kind: DiagnosticsChanged, Kinds: diag.KindsOf(diag.KindSemantic)})
	c.Signal(Signal{Kind: TextChanged})

	req := rec.wait(t)
	if req.Seq != 1 || req.Signals != 3 {
		t.Fatalf("request %+v, want seq 1 with 3 signals", req)
	}
	if req.Kinds != diag.AllKinds {
		t.Fatalf("kinds %s, want all", req.Kinds)
	}
	if !req.Reasons.Has(TextChanged) || !req.Reasons.Has(DiagnosticsChanged) || req.Reasons.Has(ContextChanged) {
		t.Fatalf("reasons %s", req.Reasons)
	}
	select {
	case extra := <-rec.ch:
		t.Fatalf("unexpected second request %+v", extra)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestCoalescerScopeAndFlush(t *testing.T) {
	rec := newRecorder()
	c := New(time.Hour, diag.KindsOf(diag.KindSyntax), rec.fire)
	defer c.Stop()

	c.Signal(Signal{Kind: DiagnosticsChanged, Kinds: diag.KindsOf(diag.KindSemantic)})
	if c.Flush() {
		t.Fatalf("out-of-scope signal must not produce a request")
	}
	c.Signal(Signal{Kind: RegistrationChanged})
	if !c.Flush() {
		t.Fatalf("flush must fire the pending request")
	}
	req := rec.wait(t)
	if req.Kinds != diag.KindsOf(diag.KindSyntax) || req.Reasons.String() != "registration" {
		t.Fatalf("request %+v (%s)", req, req.Reasons)
	}
}

func TestCoalescerZeroDelayIsInline(t *testing.T) {
	rec := newRecorder()
	c := New(0, diag.AllKinds, rec.fire)
	c.Signal(Signal{Kind: ContextChanged})
	c.Signal(Signal{Kind: ContextChanged})
	rec.mu.Lock()
	n := len(rec.reqs)
	rec.mu.Unlock()
	if n != 2 {
		t.Fatalf("got %d inline requests, want 2", n)
	}
	c.Stop()
	c.Signal(Signal{Kind: ContextChanged})
	if len(rec.reqs) != 2 {
		t.Fatalf("stopped coalescer fired")
	}
}

func TestMerge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := make(chan Signal)
	b := make(chan Signal)
	out := Merge(ctx, a, b)

	go func() {
		a <- Signal{Kind: TextChanged}
		b <- Signal{Kind: ContextChanged}
		close(a)
		close(b)
	}()

	var got Reasons
	for s := range out {
		got = got.With(s.Kind)
	}
	if !got.Has(TextChanged) || !got.Has(ContextChanged) {
		t.Fatalf("merged reasons %s", got)
	}
}

func TestNotifierDelays(t *testing.T) {
	fired := make(chan time.Time, 4)
	n := NewNotifier(time.Hour, 20*time.Millisecond, func() { fired <- time.Now() })
	defer n.Close()

	n.Schedule(true) // ждёт час
	start := time.Now()
	n.Schedule(false) // более ранний дедлайн побеждает
	select {
	case at := <-fired:
		if at.Sub(start) > time.Second {
			t.Fatalf("removal notification too late")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("removal notification never fired")
	}
	select {
	case <-fired:
		t.Fatalf("collapsed notifications fired twice")
	case <-time.After(60 * time.Millisecond):
	}
}
