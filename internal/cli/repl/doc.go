// Package repl provides interactive mode for respkv-cli.
//
//   - repl.go: read loop, prompt and local commands (help, clear, exit)
//   - args.go: redis-cli compatible argument splitting
//   - completer.go: command name lookup used by help
//   - history.go: history persistence in ~/.respkv_history
package repl
