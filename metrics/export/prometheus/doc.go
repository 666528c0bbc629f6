// Package prometheus renders gosession engine metrics in Prometheus
// text exposition format. [NewExporter] accepts a [gosession.Engine]
// and exposes an [net/http.Handler]; counter names are prefixed
// gosession_*_total, the single histogram is
// gosession_verify_latency_seconds.
//
// The exporter never registers anything in a global Prometheus
// registry; callers mount the Handler themselves.
package prometheus
