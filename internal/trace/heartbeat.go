package trace

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Probe reports state worth seeing next to a heartbeat, such as open
// documents or passes in flight.
type Probe func() map[string]string

// Heartbeat emits a liveness event every interval. A run whose passes stop
// ending while heartbeats continue is stuck inside a fetch.
type Heartbeat struct {
	tracer Tracer
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	probe Probe
}

// StartHeartbeat returns nil when tracing is off or interval is not positive;
// a nil Heartbeat is safe to use.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Heartbeat{tracer: tracer, cancel: cancel, done: make(chan struct{})}
	go h.run(ctx, interval)
	return h
}

// SetProbe replaces the state reported with each beat.
func (h *Heartbeat) SetProbe(p Probe) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.probe = p
	h.mu.Unlock()
}

func (h *Heartbeat) run(ctx context.Context, interval time.Duration) {
	defer close(h.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	started := time.Now()
	for beat := 1; ; beat++ {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.mu.Lock()
			probe := h.probe
			h.mu.Unlock()
			var extra map[string]string
			if probe != nil {
				extra = probe()
			}
			h.tracer.Emit(&Event{
				Time:   now,
				Seq:    NextSeq(),
				Kind:   KindHeartbeat,
				Scope:  ScopeSession,
				GID:    getGoroutineID(),
				Name:   "heartbeat",
				Detail: "#" + strconv.Itoa(beat) + " up " + now.Sub(started).Round(time.Millisecond).String(),
				Extra:  extra,
			})
		}
	}
}

// Stop ends the heartbeat and waits for its goroutine. It may be called more
// than once.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.cancel()
	<-h.done
}
