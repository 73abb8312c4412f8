// Package trace records what the exporter is doing while it runs.
//
// Events are emitted at four scopes: the driver (one run), passes (load,
// link, classify, names, emit), modules and single declarations. A Level
// decides the deepest scope that reaches a sink.
//
// Sinks: Nop, StreamTracer (text or NDJSON as events arrive), RingTracer
// (flight recorder written on Close), MultiTracer and ZapTracer (--log-json).
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "classify", 0)
//	defer span.End("")
//
// Renames and downgrades are point events, see Point.
package trace
