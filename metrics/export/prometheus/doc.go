// Package prometheus exposes clinicAuth counters and the request latency
// histogram through prometheus/client_golang.
//
// [PrometheusExporter] implements prometheus.Collector, so it can be
// registered with any registry. [PrometheusExporter.Handler] serves a private
// registry holding only the exporter. Counter names are clinicauth_*_total;
// the histogram is clinicauth_request_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate client state.
package prometheus
