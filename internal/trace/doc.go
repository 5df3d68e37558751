// Package trace provides structured tracing for the decoration pipeline.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	squiggle check --trace=- --trace-level=detail main.sq
//
// # Architecture
//
// New picks the sinks from Config.Mode:
//
//   - Stream writes events to a file or stderr as they happen
//   - Ring keeps the last RingSize events for a dump on exit
//   - Fanout feeds both
//
// Nop is used when tracing is off. Limiter keeps repetitive errors to one
// report per key and interval, and Heartbeat marks liveness with an
// optional Probe of pipeline state.
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: error events only
//   - LevelPhase: session and pass boundaries
//   - LevelDetail: per-kind fetches
//   - LevelDebug: everything, including per-diagnostic events
//
// Error and heartbeat events pass every level above LevelOff.
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.Start(ctx, trace.ScopePass, "pass")
//	defer span.End("")
package trace
