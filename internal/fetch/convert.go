package fetch

import (
	"context"
	"fmt"

	"squiggle/internal/decor"
	"squiggle/internal/diag"
	"squiggle/internal/snapmap"
	"squiggle/internal/source"
	"squiggle/internal/trace"
)

type itemKey struct {
	id   diag.ID
	span source.Span
}

// converter accumulates one batch. seen keeps a diagnostic from producing the
// same span twice within the batch.
type converter struct {
	opts  Options
	req   Request
	batch Batch
	seen  map[itemKey]struct{}
}

func newConverter(kind diag.Kind, opts Options, req Request) *converter {
	return &converter{
		opts:  opts,
		req:   req,
		batch: Batch{Kind: kind, Snapshot: req.Snapshot},
		seen:  make(map[itemKey]struct{}),
	}
}

// add converts diags computed against origin (nil when unknown).
func (c *converter) add(ctx context.Context, diags []diag.Diagnostic, origin *source.Snapshot) {
	target := c.req.Snapshot
	doc := target.Document()
	tracer := trace.FromContext(ctx)
	for i := range diags {
		d := &diags[i]
		if d.Suppressed && !c.req.IncludeSuppressed {
			continue
		}
		payload, ok := decor.Build(d, c.opts.Classify)
		if !ok {
			continue
		}
		for _, loc := range LocationsToTag(d) {
			if loc.Document != doc {
				continue
			}
			span, placement, err := snapmap.Anchor(loc, origin, target)
			if err != nil {
				c.batch.Skipped++
				c.reportSkip(tracer, d, loc, err)
				continue
			}
			if placement == snapmap.Fallback {
				c.batch.Fallbacks++
			}
			if !span.IntersectsAny(c.req.Ranges) {
				continue
			}
			key := itemKey{id: d.ID, span: span}
			if _, dup := c.seen[key]; dup {
				continue
			}
			if c.opts.MaxDiagnostics > 0 && len(c.batch.Decorations) >= c.opts.MaxDiagnostics {
				c.batch.Truncated = true
				return
			}
			c.seen[key] = struct{}{}
			c.batch.Decorations = append(c.batch.Decorations, decor.Decoration{
				Span:       span,
				Kind:       c.batch.Kind,
				Diagnostic: d.ID,
				Payload:    payload,
			})
		}
	}
}

func (c *converter) reportSkip(tracer trace.Tracer, d *diag.Diagnostic, loc diag.Location, err error) {
	detail := fmt.Sprintf("%s %s: %v", d.Code.ID(), loc.Span, err)
	if c.opts.Limiter == nil {
		trace.Error(tracer, trace.ScopeItem, "skip-diagnostic", detail, map[string]string{"id": string(d.ID)})
		return
	}
	key := fmt.Sprintf("%s|%s|%s", loc.Document, c.batch.Kind, d.ID)
	c.opts.Limiter.Report(tracer, trace.ScopeItem, key, "skip-diagnostic", detail)
}

func (c *converter) result() Batch {
	return c.batch
}
