package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"squiggle/internal/diag"
	"squiggle/internal/fetch"
	"squiggle/internal/source"
)

func TestEngineCachesPerSnapshot(t *testing.T) {
	dir := source.NewDirectory(0)
	snap := dir.Open("a.sq", []byte("(\n"))
	eng := New(Options{}, Brackets{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		items, err := eng.FetchDiagnostics(ctx, snap, snap.Span(), diag.KindSyntax, false)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if len(items) != 1 || items[0].Code != diag.SynUnclosedOpen {
			t.Fatalf("items %+v", items)
		}
	}
	if runs := eng.Runs(); runs != 1 {
		t.Fatalf("runs %d, want 1", runs)
	}

	next, err := dir.Apply("a.sq", source.Edit{Span: source.Span{Start: 1, End: 1}, Text: ")"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	items, err := eng.FetchDiagnostics(ctx, next, next.Span(), diag.KindSyntax, false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("balanced text still reported: %+v", items)
	}
	if runs := eng.Runs(); runs != 2 {
		t.Fatalf("runs %d, want 2", runs)
	}
}

func TestEngineFiltersSpanAndSuppressed(t *testing.T) {
	snap := source.NewBuffer("a.sq", []byte(")\n)\n) // nolint\n"), 0).Current()
	eng := New(Options{}, Brackets{})
	ctx := context.Background()

	all, err := eng.FetchDiagnostics(ctx, snap, snap.Span(), diag.KindSyntax, true)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all: %d items", len(all))
	}
	visible, err := eng.FetchDiagnostics(ctx, snap, snap.Span(), diag.KindSyntax, false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("visible: %d items", len(visible))
	}
	second, err := eng.FetchDiagnostics(ctx, snap, source.Span{Start: 2, End: 3}, diag.KindSyntax, false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(second) != 1 || second[0].Location.Span.Start != 2 {
		t.Fatalf("ranged: %+v", second)
	}
	// другой вид не затрагивает синтаксис
	if sem, err := eng.FetchDiagnostics(ctx, snap, snap.Span(), diag.KindSemantic, true); err != nil || len(sem) != 0 {
		t.Fatalf("semantic: %v %+v", err, sem)
	}
}

func TestEngineCancelled(t *testing.T) {
	snap := source.NewBuffer("a.sq", []byte("("), 0).Current()
	eng := New(Options{}, Brackets{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := eng.FetchDiagnostics(ctx, snap, snap.Span(), diag.KindSyntax, false); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if eng.Runs() != 0 {
		t.Fatalf("cancelled fetch ran analyzers")
	}
}

func TestEngineInvalidateAndRegister(t *testing.T) {
	snap := source.NewBuffer("a.sq", []byte("// TODO\n"), 0).Current()
	eng := New(Options{}, Brackets{})
	ctx := context.Background()

	var mu sync.Mutex
	var got []diag.KindSet
	unsubscribe := eng.OnChanged(func(doc source.DocumentID, kinds diag.KindSet) {
		mu.Lock()
		defer mu.Unlock()
		if doc == "a.sq" {
			got = append(got, kinds)
		}
	})
	defer unsubscribe()

	if _, err := eng.FetchDiagnostics(ctx, snap, snap.Span(), diag.KindSemanticPlugin, false); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	eng.Register(Markers{})
	items, err := eng.FetchDiagnostics(ctx, snap, snap.Span(), diag.KindSemanticPlugin, false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 1 || items[0].Code != diag.MrkTodo {
		t.Fatalf("registered analyzer not used: %+v", items)
	}
	eng.Invalidate("a.sq", diag.KindsOf(diag.KindSyntax))

	mu.Lock()
	defer mu.Unlock()
	want := []diag.KindSet{diag.KindsOf(diag.KindSemanticPlugin), diag.KindsOf(diag.KindSyntax)}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("notifications %v, want %v", got, want)
	}
	if kinds := eng.Kinds(); kinds != diag.KindsOf(diag.KindSyntax, diag.KindSemanticPlugin) {
		t.Fatalf("kinds %s", kinds)
	}
}

func TestServiceAnalyzePublishesBuckets(t *testing.T) {
	snap := source.NewBuffer("a.sq", []byte("let x = 1 // TODO\n) // nolint\n"), 0).Current()
	svc := NewService(New(Options{}, DefaultAnalyzers(DefaultLineWidth)...), ServiceOptions{MaxParallel: 2})

	var mu sync.Mutex
	published := map[fetch.BucketID]int{}
	unsubscribe := svc.OnPublished(func(p fetch.Published) {
		mu.Lock()
		published[p.Bucket.ID] = len(p.Diagnostics)
		mu.Unlock()
	})
	defer unsubscribe()

	if err := svc.Analyze(context.Background(), snap); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	buckets := svc.CurrentBuckets("a.sq")
	wantIDs := []fetch.BucketID{"a.sq/bindings", "a.sq/brackets", "a.sq/markers", "a.sq/whitespace"}
	if len(buckets) != len(wantIDs) {
		t.Fatalf("buckets %+v", buckets)
	}
	for i, b := range buckets {
		if b.ID != wantIDs[i] {
			t.Fatalf("bucket %d: %s, want %s", i, b.ID, wantIDs[i])
		}
	}
	mu.Lock()
	if published["a.sq/bindings"] != 1 || published["a.sq/markers"] != 1 || published["a.sq/brackets"] != 1 {
		t.Fatalf("published %v", published)
	}
	mu.Unlock()

	ctx := context.Background()
	hidden, _ := svc.CurrentDiagnostics(ctx, "a.sq/brackets", false)
	shown, _ := svc.CurrentDiagnostics(ctx, "a.sq/brackets", true)
	if len(hidden) != 0 || len(shown) != 1 {
		t.Fatalf("suppressed filtering: %d/%d", len(hidden), len(shown))
	}
	if items, err := svc.CurrentDiagnostics(ctx, "missing", true); err != nil || items != nil {
		t.Fatalf("unknown bucket: %v %v", items, err)
	}

	svc.Clear("a.sq")
	if len(svc.CurrentBuckets("a.sq")) != 0 {
		t.Fatalf("buckets survived Clear")
	}
	mu.Lock()
	defer mu.Unlock()
	for id, n := range published {
		if n != 0 {
			t.Fatalf("bucket %s not emptied on Clear", id)
		}
	}
}

func TestServiceAnalyzeKeepsOtherBuckets(t *testing.T) {
	snap := source.NewBuffer("a.sq", []byte("("), 0).Current()
	svc := NewService(New(Options{}, Brackets{}, panicky{}), ServiceOptions{})
	if err := svc.Analyze(context.Background(), snap); err == nil {
		t.Fatalf("expected analyzer error")
	}
	buckets := svc.CurrentBuckets("a.sq")
	if len(buckets) != 1 || buckets[0].Kind != diag.KindSyntax {
		t.Fatalf("buckets %+v", buckets)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServiceTrackSchedulesLatest(t *testing.T) {
	dir := source.NewDirectory(0)
	svc := NewService(New(Options{}, Brackets{}), ServiceOptions{Debounce: 20 * time.Millisecond})
	defer svc.Close()
	stop := svc.Track(dir)
	defer stop()

	ctx := context.Background()
	unclosed := func() int {
		items, _ := svc.CurrentDiagnostics(ctx, "a.sq/brackets", true)
		return len(items)
	}

	dir.Open("a.sq", []byte("("))
	for _, text := range []string{"((", "(((", "((("} {
		if _, err := dir.Replace("a.sq", []byte(text)); err != nil {
			t.Fatalf("replace: %v", err)
		}
	}
	waitFor(t, "latest analysis", func() bool { return unclosed() == 3 })

	dir.Close("a.sq")
	waitFor(t, "clear on close", func() bool { return len(svc.CurrentBuckets("a.sq")) == 0 })
}
