package coalesce

import (
	"context"
	"sync"
	"time"

	"squiggle/internal/diag"
)

// Request asks for a recompute of Kinds. Seq grows with every request one
// Coalescer fires.
type Request struct {
	Seq     uint64
	Kinds   diag.KindSet
	Reasons Reasons
	Signals int
}

// Coalescer collapses signals arriving within delay of the first one into a
// single Request. The window is not extended by later signals, so a steady
// stream of edits still produces a request every delay.
type Coalescer struct {
	mu      sync.Mutex
	delay   time.Duration
	scope   diag.KindSet
	fire    func(Request)
	timer   *time.Timer
	pending Request
	armed   bool
	gen     uint64
	seq     uint64
	closed  bool
}

// New creates a coalescer. Signals are narrowed to scope (empty Signal.Kinds
// widen to the whole scope). fire runs on the timer goroutine, or inline when
// delay is not positive.
func New(delay time.Duration, scope diag.KindSet, fire func(Request)) *Coalescer {
	return &Coalescer{delay: delay, scope: scope, fire: fire}
}

// Signal folds s into the pending request and arms the timer if needed.
func (c *Coalescer) Signal(s Signal) {
	kinds := c.scope
	if !s.Kinds.Empty() {
		kinds = s.Kinds.Intersect(c.scope)
	}
	if kinds.Empty() {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending.Kinds = c.pending.Kinds.Union(kinds)
	c.pending.Reasons = c.pending.Reasons.With(s.Kind)
	c.pending.Signals++
	if c.delay <= 0 {
		req := c.takeLocked()
		c.mu.Unlock()
		c.fire(req)
		return
	}
	if !c.armed {
		c.armed = true
		c.gen++
		gen := c.gen
		c.timer = time.AfterFunc(c.delay, func() { c.expire(gen) })
	}
	c.mu.Unlock()
}

func (c *Coalescer) expire(gen uint64) {
	c.mu.Lock()
	if c.closed || !c.armed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	req := c.takeLocked()
	c.mu.Unlock()
	c.fire(req)
}

func (c *Coalescer) takeLocked() Request {
	c.seq++
	req := c.pending
	req.Seq = c.seq
	c.pending = Request{}
	c.armed = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	return req
}

// Flush fires the pending request immediately, if any.
func (c *Coalescer) Flush() bool {
	c.mu.Lock()
	if c.closed || c.pending.Signals == 0 {
		c.mu.Unlock()
		return false
	}
	req := c.takeLocked()
	c.mu.Unlock()
	c.fire(req)
	return true
}

// Run feeds signals from in until in closes or ctx is done, then stops.
func (c *Coalescer) Run(ctx context.Context, in <-chan Signal) {
	defer c.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-in:
			if !ok {
				return
			}
			c.Signal(s)
		}
	}
}

// Stop drops any pending request. Later signals are ignored.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.armed = false
	c.pending = Request{}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
