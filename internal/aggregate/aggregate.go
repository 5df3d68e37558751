// Package aggregate fans a request out to one fetcher per kind and unions the
// results. One kind failing never hides the others.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"squiggle/internal/coalesce"
	"squiggle/internal/decor"
	"squiggle/internal/diag"
	"squiggle/internal/fetch"
	"squiggle/internal/source"
	"squiggle/internal/trace"
)

// Outcome classifies one kind's part of a pass.
type Outcome uint8

const (
	OutcomeOK Outcome = iota
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Result is one kind's outcome.
type Result struct {
	Kind    diag.Kind
	Batch   fetch.Batch
	Err     error
	Elapsed time.Duration
}

func (r Result) Outcome() Outcome {
	switch {
	case r.Err == nil:
		return OutcomeOK
	case errors.Is(r.Err, context.Canceled), errors.Is(r.Err, context.DeadlineExceeded):
		return OutcomeCancelled
	}
	return OutcomeFailed
}

// Aggregator owns one fetcher per kind.
type Aggregator struct {
	fetchers    map[diag.Kind]fetch.Fetcher
	kinds       diag.KindSet
	maxParallel int
}

// New builds an aggregator. A later fetcher for an already present kind
// replaces the earlier one. maxParallel <= 0 runs every kind at once.
func New(maxParallel int, fetchers ...fetch.Fetcher) *Aggregator {
	a := &Aggregator{fetchers: make(map[diag.Kind]fetch.Fetcher, len(fetchers)), maxParallel: maxParallel}
	for _, f := range fetchers {
		a.fetchers[f.Kind()] = f
		a.kinds = a.kinds.With(f.Kind())
	}
	return a
}

// Kinds reports the kinds that have a fetcher.
func (a *Aggregator) Kinds() diag.KindSet { return a.kinds }

// Fetch runs the fetchers of kinds concurrently and returns one Result per
// kind, ordered by kind. Kinds without a fetcher are ignored. A panicking
// fetcher yields a failed Result for its kind only.
func (a *Aggregator) Fetch(ctx context.Context, kinds diag.KindSet, req fetch.Request) []Result {
	selected := kinds.Intersect(a.kinds).Kinds()
	if len(selected) == 0 {
		return nil
	}
	p := pool.NewWithResults[Result]()
	if a.maxParallel > 0 {
		p = p.WithMaxGoroutines(a.maxParallel)
	}
	for _, k := range selected {
		f := a.fetchers[k]
		p.Go(func() Result {
			return runOne(ctx, f, req)
		})
	}
	results := p.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Kind < results[j].Kind })
	return results
}

func runOne(ctx context.Context, f fetch.Fetcher, req fetch.Request) Result {
	ctx, span := trace.Start(ctx, trace.ScopeFetch, "fetch:"+f.Kind().String())
	start := time.Now()
	res := Result{Kind: f.Kind()}

	var pc panics.Catcher
	pc.Try(func() {
		res.Batch, res.Err = f.Fetch(ctx, req)
	})
	if r := pc.Recovered(); r != nil {
		res.Batch = fetch.Batch{}
		res.Err = fmt.Errorf("%s fetcher panicked: %w", f.Kind(), r.AsError())
	}
	res.Elapsed = time.Since(start)
	res.Batch.Kind = f.Kind()

	span.WithExtra("outcome", res.Outcome().String()).
		WithExtra("decorations", strconv.Itoa(len(res.Batch.Decorations))).
		WithExtra("skipped", strconv.Itoa(res.Batch.Skipped))
	detail := ""
	if res.Err != nil {
		detail = res.Err.Error()
	}
	span.End(detail)
	if res.Outcome() == OutcomeFailed {
		trace.Error(trace.FromContext(ctx), trace.ScopeFetch, "fetch-failed", detail, map[string]string{"kind": f.Kind().String()})
	}
	return res
}

// Union concatenates the decorations of successful results.
func Union(results []Result) []decor.Decoration {
	n := 0
	for _, r := range results {
		if r.Err == nil {
			n += len(r.Batch.Decorations)
		}
	}
	out := make([]decor.Decoration, 0, n)
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Batch.Decorations...)
		}
	}
	return out
}

// Watch merges the change streams of the fetchers of kinds for doc.
// Observing the aggregate observes every constituent; cancelling ctx
// unobserves them all and closes the returned channel.
func (a *Aggregator) Watch(ctx context.Context, doc source.DocumentID, kinds diag.KindSet) <-chan coalesce.Signal {
	selected := kinds.Intersect(a.kinds).Kinds()
	chans := make([]<-chan coalesce.Signal, 0, len(selected))
	for _, k := range selected {
		chans = append(chans, a.fetchers[k].Watch(ctx, doc))
	}
	return coalesce.Merge(ctx, chans...)
}

// Close closes every fetcher and returns the first error.
func (a *Aggregator) Close() error {
	var first error
	for _, k := range a.kinds.Kinds() {
		if err := a.fetchers[k].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
