// Package otel provides OpenTelemetry bindings for mfacore counters.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine metric
// plus one for dropped events. A single callback reads the engine's metrics
// snapshot on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate engine state.
package otel
