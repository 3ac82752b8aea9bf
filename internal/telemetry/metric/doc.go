// Package metric provides Prometheus metrics for respkv.
//
//   - prometheus.go: the Metrics registry, command observer and HTTP handler
//   - collector.go: a collector reading key space statistics at scrape time
//
// Metrics are exposed at /metrics by the HTTP server.
package metric
