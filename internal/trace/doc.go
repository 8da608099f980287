// Package trace records irkit pipeline phases: configuration, per-target
// builds, verification, encoding and file writes.
//
// Enable it from the command line:
//
//	irkit build --trace=- --trace-level=detail
//
// Tracers:
//
//   - Nop: used when tracing is off
//   - StreamTracer: writes each event as it happens (text or NDJSON)
//   - RingTracer: keeps the last N events for a dump after a failure
//   - MultiTracer: fans out to several tracers
//
// Levels gate scopes. LevelPhase shows driver and pass spans, LevelDetail adds
// per-target module spans and LevelDebug adds per-function events.
//
// Tracers travel through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "verify", parentID)
//	defer span.End("")
package trace
