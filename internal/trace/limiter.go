package trace

import (
	"strconv"
	"sync"
	"time"
)

const limiterPruneAt = 1024

// Limiter lets one report per key through per interval and counts the rest.
type Limiter struct {
	mu         sync.Mutex
	interval   time.Duration
	last       map[string]time.Time
	suppressed map[string]int
	now        func() time.Time
}

// NewLimiter creates a limiter. A non-positive interval reports every key once
// for the lifetime of the limiter.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{
		interval:   interval,
		last:       make(map[string]time.Time),
		suppressed: make(map[string]int),
		now:        time.Now,
	}
}

// Allow reports whether key may be reported now and how many reports were
// swallowed since the previous allowed one.
func (l *Limiter) Allow(key string) (ok bool, swallowed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if prev, seen := l.last[key]; seen {
		if l.interval <= 0 || now.Sub(prev) < l.interval {
			l.suppressed[key]++
			return false, 0
		}
	}
	if len(l.last) >= limiterPruneAt {
		l.pruneLocked(now)
	}
	swallowed = l.suppressed[key]
	delete(l.suppressed, key)
	l.last[key] = now
	return true, swallowed
}

func (l *Limiter) pruneLocked(now time.Time) {
	if l.interval <= 0 {
		return
	}
	for k, at := range l.last {
		if now.Sub(at) >= l.interval {
			delete(l.last, k)
			delete(l.suppressed, k)
		}
	}
}

// Report emits an error event for key unless it was reported within the
// interval. It returns whether the event was emitted.
func (l *Limiter) Report(t Tracer, scope Scope, key, name, detail string) bool {
	ok, swallowed := l.Allow(key)
	if !ok {
		return false
	}
	extra := map[string]string{"key": key}
	if swallowed > 0 {
		extra["suppressed"] = strconv.Itoa(swallowed)
	}
	Error(t, scope, name, detail, extra)
	return true
}
