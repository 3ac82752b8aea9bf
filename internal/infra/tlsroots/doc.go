// Package tlsroots builds TLS configurations for the RESP listener and
// respkv-cli.
//
//   - roots.go: CA pools from PEM files and client/server tls.Config helpers
//   - watcher.go: server certificate hot-reload via fsnotify
package tlsroots
