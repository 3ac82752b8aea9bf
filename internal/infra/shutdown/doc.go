// Package shutdown coordinates graceful termination of respkv-server.
//
// Components register named hooks as they start; on SIGINT, SIGTERM or
// context cancellation the hooks run in reverse registration order under
// a shared deadline, so listeners stop before the final snapshot is
// written and the store is released last.
package shutdown
