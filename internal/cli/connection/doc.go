// Package connection provides the RESP client used by respkv-cli.
//
// A Client owns one connection. Requests are written in order and their
// reply channels queued; a reader goroutine decodes replies and hands each
// to the oldest waiting request, so several requests may be in flight.
package connection
