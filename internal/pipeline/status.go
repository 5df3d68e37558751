package pipeline

import (
	"fmt"
	"time"

	"squiggle/internal/aggregate"
	"squiggle/internal/diag"
)

// State is where one kind of a Source currently is.
type State uint8

const (
	StateIdle State = iota
	StateScheduled
	StateFetching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateFetching:
		return "fetching"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// KindStatus describes one kind of a Source after its most recent pass.
type KindStatus struct {
	Kind    diag.Kind
	State   State
	Outcome aggregate.Outcome
	// Err is set when the last pass for the kind failed.
	Err         error
	Decorations int
	Skipped     int
	Fallbacks   int
	Truncated   bool
	Elapsed     time.Duration
	// Passes counts completed passes, cancelled ones excluded.
	Passes int
}

// Degraded reports whether the kind currently shows no decorations because
// its last fetch failed.
func (s KindStatus) Degraded() bool {
	return s.Outcome == aggregate.OutcomeFailed
}
