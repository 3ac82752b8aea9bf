// Package httpserver exposes the operational HTTP endpoints:
//
//   - GET /healthz: liveness and key space summary as JSON
//   - GET /metrics: Prometheus metrics
//   - GET /ws: RESP over WebSocket, one binary message per reply
package httpserver
