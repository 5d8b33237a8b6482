// Package prometheus renders engine metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts an [mfacore.Engine] and exposes an
// [net/http.Handler] that serves every counter from
// [mfacore.MetricDefinitions] plus mfa_events_dropped_total. The exporter
// never registers anything in a global Prometheus registry; callers mount the
// Handler where they want it.
package prometheus
