package coalesce

import (
	"sync"
	"time"
)

// Notifier delays change notifications. Changes that add decorations wait
// for the added delay, removal-only changes for the removed delay. Pending
// notifications collapse into one call; a shorter deadline wins.
type Notifier struct {
	mu       sync.Mutex
	added    time.Duration
	removed  time.Duration
	notify   func()
	timer    *time.Timer
	deadline time.Time
	gen      uint64
	closed   bool
}

func NewNotifier(added, removed time.Duration, notify func()) *Notifier {
	return &Notifier{added: added, removed: removed, notify: notify}
}

// Schedule queues a notification. withAdditions selects the added delay.
func (n *Notifier) Schedule(withAdditions bool) {
	delay := n.removed
	if withAdditions {
		delay = n.added
	}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	if delay <= 0 {
		n.stopLocked()
		n.mu.Unlock()
		n.notify()
		return
	}
	deadline := time.Now().Add(delay)
	if n.timer != nil && !deadline.Before(n.deadline) {
		n.mu.Unlock()
		return
	}
	n.stopLocked()
	n.deadline = deadline
	n.gen++
	gen := n.gen
	n.timer = time.AfterFunc(delay, func() { n.expire(gen) })
	n.mu.Unlock()
}

func (n *Notifier) expire(gen uint64) {
	n.mu.Lock()
	if n.closed || n.timer == nil || gen != n.gen {
		n.mu.Unlock()
		return
	}
	n.timer = nil
	n.mu.Unlock()
	n.notify()
}

func (n *Notifier) stopLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

// Close drops any pending notification.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.stopLocked()
}
