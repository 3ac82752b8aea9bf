// Package redisserver serves the RESP protocol over stream transports.
//
// Each client gets one goroutine running ServeStream: bytes accumulate in a
// session buffer, complete requests are decoded and executed in order, and
// every reply is flushed before the next request is decoded. A malformed
// frame closes the connection without a reply.
//
// Listeners are provided for TCP, TLS and unix sockets; the HTTP server
// reuses ServeStream for WebSocket clients.
package redisserver
