// Package otel binds authcenter counters and latency histograms to
// OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter, a set of
// Int64ObservableGauge instruments per histogram bucket and a
// Float64ObservableGauge for each histogram sum. A single callback reads
// [authcenter.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
