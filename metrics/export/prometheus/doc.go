// Package prometheus renders authcenter metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] wraps an [authcenter.Engine] and exposes an
// [http.Handler]. Counters are named authcenter_*_total and latency
// histograms authcenter_*_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
