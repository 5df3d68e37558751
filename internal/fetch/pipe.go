package fetch

import (
	"sync"

	"squiggle/internal/coalesce"
)

// pipe is a signal channel that tolerates sends after close and never blocks
// the sender; one pending signal is enough to trigger a recompute.
type pipe struct {
	mu     sync.Mutex
	ch     chan coalesce.Signal
	closed bool
}

func newPipe() *pipe {
	return &pipe{ch: make(chan coalesce.Signal, 1)}
}

func (p *pipe) send(s coalesce.Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.ch <- s:
	default:
	}
}

func (p *pipe) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}
