// Package otel binds clinicAuth metrics to an OpenTelemetry Meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per clinicAuth counter
// and an Int64ObservableGauge per latency bucket. One callback reads
// [clinicAuth.Client.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate client state.
package otel
