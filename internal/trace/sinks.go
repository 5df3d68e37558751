package trace

import (
	"bufio"
	"errors"
	"io"
	"os"
	"sync"
)

// leveled carries the level shared by every sink.
type leveled struct{ level Level }

func (l leveled) Level() Level  { return l.level }
func (l leveled) Enabled() bool { return l.level > LevelOff }

type nop struct{}

func (nop) Emit(*Event) {}
func (nop) Flush() error { return nil }
func (nop) Close() error { return nil }
func (nop) Level() Level { return LevelOff }
func (nop) Enabled() bool { return false }

// Nop drops every event.
var Nop Tracer = nop{}

// Fanout sends every event to each of its tracers.
type Fanout struct {
	leveled
	tracers []Tracer
}

func NewFanout(level Level, tracers ...Tracer) *Fanout {
	return &Fanout{leveled: leveled{level}, tracers: tracers}
}

func (f *Fanout) Emit(ev *Event) {
	for _, t := range f.tracers {
		t.Emit(ev)
	}
}

func (f *Fanout) Flush() error {
	errs := make([]error, 0, len(f.tracers))
	for _, t := range f.tracers {
		errs = append(errs, t.Flush())
	}
	return errors.Join(errs...)
}

func (f *Fanout) Close() error {
	errs := make([]error, 0, len(f.tracers))
	for _, t := range f.tracers {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}

// Ring keeps the most recent events in memory, to be dumped after a failed
// or suspicious run.
type Ring struct {
	leveled
	mu     sync.Mutex
	buf    []Event
	next   int
	filled int
}

func NewRing(capacity int, level Level) *Ring {
	if capacity <= 0 {
		capacity = defaultRingSize
	}
	return &Ring{leveled: leveled{level}, buf: make([]Event, capacity)}
}

func (r *Ring) Emit(ev *Event) {
	if !r.level.Accepts(ev) {
		return
	}
	stored := *ev
	if stored.Seq == 0 {
		stored.Seq = NextSeq()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = stored
	r.next = (r.next + 1) % len(r.buf)
	r.filled = min(r.filled+1, len(r.buf))
}

// Events returns the retained events, oldest first.
func (r *Ring) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, r.filled)
	start := (r.next - r.filled + len(r.buf)) % len(r.buf)
	for i := 0; i < r.filled; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// Dump writes the retained events to w.
func (r *Ring) Dump(w io.Writer, format Format) error {
	events := r.Events()
	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Ring) Flush() error { return nil }
func (r *Ring) Close() error { return nil }

// Stream writes each accepted event as it arrives. Output is buffered until
// Flush or Close.
type Stream struct {
	leveled
	format Format
	mu     sync.Mutex
	dst    io.Writer
	w      *bufio.Writer
}

func NewStream(w io.Writer, level Level, format Format) *Stream {
	return &Stream{leveled: leveled{level}, format: format, dst: w, w: bufio.NewWriter(w)}
}

func (s *Stream) Emit(ev *Event) {
	if !s.level.Accepts(ev) {
		return
	}
	if ev.Seq == 0 {
		ev.Seq = NextSeq()
	}
	data := FormatEvent(ev, s.format)
	s.mu.Lock()
	defer s.mu.Unlock()
	// ошибки записи трассы не должны ронять конвейер
	_, _ = s.w.Write(data)
}

func (s *Stream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

// Close flushes and closes the destination unless it is stdout or stderr.
func (s *Stream) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if s.dst == os.Stdout || s.dst == os.Stderr {
		return nil
	}
	if c, ok := s.dst.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
