// Package buildinfo exposes version information for respkv-server and
// respkv-cli.
//
// Version, Commit and BuildTime are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/respkv-go/internal/infra/buildinfo.Version=v1.0.0"
//
// When a value is not injected, Get falls back to the module and VCS
// metadata recorded by the Go toolchain.
package buildinfo
